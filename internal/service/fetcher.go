package service

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/config"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/sensor"
)

// SensorReader 按描述读取一个传感器（sensor.Registry）
type SensorReader interface {
	Read(ctx context.Context, d models.SensorDescriptor) (float64, error)
}

// MeasurementStore 读数持久化（repository.MeasureRepository）
type MeasurementStore interface {
	Insert(ctx context.Context, reading models.Reading) error
}

// MeasurementPublisher 读数发布（publisher.Fanout），可为 nil
type MeasurementPublisher interface {
	Publish(ctx context.Context, m models.Measurement) error
}

// CycleResult 一轮轮询的计数
type CycleResult struct {
	Readings        int `json:"readings"`
	ReadFailures    int `json:"read_failures"`
	Skipped         int `json:"skipped"`
	Inserted        int `json:"inserted"`
	InsertFailures  int `json:"insert_failures"`
	PublishFailures int `json:"publish_failures"`
}

func (r *CycleResult) add(o CycleResult) {
	r.Readings += o.Readings
	r.ReadFailures += o.ReadFailures
	r.Skipped += o.Skipped
	r.Inserted += o.Inserted
	r.InsertFailures += o.InsertFailures
	r.PublishFailures += o.PublishFailures
}

// RunSummary 整次运行的汇总
type RunSummary struct {
	RunID    string
	Cycles   int
	Totals   CycleResult
	Duration time.Duration
}

// FetcherService 采集服务：按配置轮询传感器并写入 measures
type FetcherService struct {
	sensors    []models.SensorDescriptor
	pollAmount int
	pollDelay  time.Duration

	reader    SensorReader
	store     MeasurementStore
	publisher MeasurementPublisher
	clock     clock.Clock
	runID     string
	logger    *zap.Logger
}

// Options FetcherService 的依赖
type Options struct {
	Reader    SensorReader
	Store     MeasurementStore
	Publisher MeasurementPublisher
	Clock     clock.Clock
	RunID     string
}

// NewFetcherService 创建采集服务
// 传感器列表在启动时确定，运行期间只读
func NewFetcherService(cfg *config.Config, opts Options, logger *zap.Logger) *FetcherService {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &FetcherService{
		sensors:    cfg.Descriptors(),
		pollAmount: cfg.General.PollAmount,
		pollDelay:  cfg.General.PollDelay(),
		reader:     opts.Reader,
		store:      opts.Store,
		publisher:  opts.Publisher,
		clock:      clk,
		runID:      opts.RunID,
		logger:     logger,
	}
}

// Run 执行 pollAmount 轮，轮与轮之间等待 pollDelay（最后一轮之后不等待）
// 单个传感器或单次插入的失败不会提前结束运行
func (s *FetcherService) Run(ctx context.Context) RunSummary {
	start := s.clock.Now()
	summary := RunSummary{RunID: s.runID}

	s.logger.Info("Starting sensor fetcher run",
		zap.Int("sensors", len(s.sensors)),
		zap.Int("poll_amount", s.pollAmount),
		zap.Duration("poll_delay", s.pollDelay),
	)

	for cycle := 1; cycle <= s.pollAmount; cycle++ {
		res := s.PollCycle(ctx, cycle)
		summary.Totals.add(res)
		summary.Cycles++

		if cycle < s.pollAmount {
			s.clock.Sleep(s.pollDelay)
		}
	}

	summary.Duration = s.clock.Since(start)
	return summary
}

// PollCycle 按配置顺序读取每个传感器，成功的读数立即插入并发布
func (s *FetcherService) PollCycle(ctx context.Context, cycle int) CycleResult {
	var res CycleResult
	logger := s.logger.With(zap.Int("cycle", cycle))

	for _, d := range s.sensors {
		s.pollSensor(ctx, logger, d, &res)
	}

	logger.Info("Poll cycle completed",
		zap.Int("readings", res.Readings),
		zap.Int("read_failures", res.ReadFailures),
		zap.Int("skipped", res.Skipped),
		zap.Int("inserted", res.Inserted),
		zap.Int("insert_failures", res.InsertFailures),
	)
	return res
}

func (s *FetcherService) pollSensor(ctx context.Context, logger *zap.Logger, d models.SensorDescriptor, res *CycleResult) {
	logger = logger.With(
		zap.String("sensor", d.Name),
		zap.String("sensor_type", d.Type),
		zap.Int64("sensor_id", d.SensorID),
		zap.String("probe_id", d.ProbeID),
	)

	value, err := s.reader.Read(ctx, d)
	switch {
	case errors.Is(err, sensor.ErrUnknownSensorType):
		res.Skipped++
		logger.Warn("unknown sensor type, skipped")
		return
	case err != nil:
		res.ReadFailures++
		logger.Error("no reading produced", zap.Error(err))
		return
	}

	res.Readings++
	t, _ := d.SensorType()
	logger.Info("reading produced", zap.Float64("value", value), zap.String("unit", t.Unit()))

	// 插入失败已由仓库记录，这里只计数
	if err := s.store.Insert(ctx, models.Reading{SensorID: d.SensorID, Value: value}); err != nil {
		res.InsertFailures++
	} else {
		res.Inserted++
	}

	if s.publisher == nil {
		return
	}
	m := models.Measurement{
		RunID:     s.runID,
		SensorID:  d.SensorID,
		Name:      d.Name,
		Type:      t.String(),
		Value:     value,
		Unit:      t.Unit(),
		Timestamp: s.clock.Now(),
	}
	if err := s.publisher.Publish(ctx, m); err != nil {
		res.PublishFailures++
		logger.Warn("publish failed", zap.Error(err))
	}
}
