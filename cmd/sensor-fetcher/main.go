package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/config"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/database"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/logger"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/publisher"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/repository"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/sensor"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/service"
)

const (
	exitOK     = 0
	exitConfig = 1
	exitUsage  = 2

	legacyExitCodesFlag = "legacy-exit-codes"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run 解析命令行并执行一次完整采集，返回进程退出码
func run(args []string, out, errOut io.Writer) int {
	err := NewApp(out, errOut).Run(args)
	if err == nil {
		return exitOK
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			fmt.Fprintln(errOut, msg)
		}
		return exitErr.ExitCode()
	}
	fmt.Fprintln(errOut, err)
	return exitUsage
}

// NewApp 创建命令行应用
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "sensor-fetcher",
		Usage:           "poll the configured sensors and store each reading",
		ArgsUsage:       "<config.yml>",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		// exit codes are mapped in run, never by os.Exit inside the app
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  legacyExitCodesFlag,
				Usage: "exit 0 on a usage error, as the cron wrapper expects",
			},
		},
		Action: fetch,
	}
}

func fetch(c *cli.Context) error {
	if c.NArg() != 1 {
		_ = cli.ShowAppHelp(c)
		if c.Bool(legacyExitCodesFlag) {
			return cli.Exit("", exitOK)
		}
		return cli.Exit("", exitUsage)
	}

	cfg, err := config.Load(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, logger.ServiceName)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to initialize logger: %v", err), exitConfig)
	}
	defer log.Sync()

	log, runID := logger.WithRun(log, "")

	log.Info("Starting sensor-fetcher",
		zap.String("config", c.Args().First()),
		zap.String("db_type", cfg.Database.Engine()),
		zap.String("db_host", cfg.Database.Host),
	)

	clk := clock.New()

	devices := sensor.NewI2CDevices(cfg.Devices.I2CBus, nil, log)
	defer func() {
		if err := devices.Close(); err != nil {
			log.Warn("failed to release i2c devices", zap.Error(err))
		}
	}()

	registry, err := sensor.NewDefaultRegistry(cfg, devices, clk)
	if err != nil {
		log.Error("invalid sensor settings", zap.Error(err))
		return cli.Exit(err.Error(), exitConfig)
	}

	store := repository.NewMeasureRepository(database.NewOpener(&cfg.Database), cfg.Database.Engine(), log)

	opts := service.Options{
		Reader: registry,
		Store:  store,
		Clock:  clk,
		RunID:  runID,
	}
	pubs := publisher.New(cfg.Publish, log)
	defer func() {
		if err := pubs.Close(); err != nil {
			log.Warn("failed to close publishers", zap.Error(err))
		}
	}()
	if pubs.Len() > 0 {
		opts.Publisher = pubs
	}

	summary := service.NewFetcherService(cfg, opts, log).Run(context.Background())

	log.Info("Sensor fetcher run finished",
		zap.Int("cycles", summary.Cycles),
		zap.Int("readings", summary.Totals.Readings),
		zap.Int("inserted", summary.Totals.Inserted),
		zap.Int("read_failures", summary.Totals.ReadFailures),
		zap.Int("insert_failures", summary.Totals.InsertFailures),
		zap.Int("publish_failures", summary.Totals.PublishFailures),
		zap.Int("skipped", summary.Totals.Skipped),
		zap.Duration("duration", summary.Duration),
	)
	return nil
}
