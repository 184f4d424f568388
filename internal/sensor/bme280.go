package sensor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

// BME280Metric 外部工具输出的指标
type BME280Metric struct {
	Flag  string
	Field int
}

// read_bme280 prints one line per metric; the value sits at a fixed
// space-separated position.
var (
	BME280Temperature = BME280Metric{Flag: "--temperature", Field: 2}
	BME280Humidity    = BME280Metric{Flag: "--humidity", Field: 2}
	BME280Pressure    = BME280Metric{Flag: "--pressure", Field: 0}
)

// CommandRunner 运行外部命令并返回标准输出
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner 使用 os/exec 运行命令，ctx 结束时进程被杀死
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return nil, fmt.Errorf("%s exited with %d: %s", name, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return out, nil
}

// BME280Reader 通过外部工具读取 bme280
// 工具只访问默认总线地址，probe_id 不参与
type BME280Reader struct {
	command string
	metric  BME280Metric
	run     CommandRunner
}

// NewBME280Reader 创建 bme280 读取器，run 为 nil 时使用 ExecRunner
func NewBME280Reader(command string, metric BME280Metric, run CommandRunner) *BME280Reader {
	if run == nil {
		run = ExecRunner
	}
	return &BME280Reader{command: command, metric: metric, run: run}
}

// Read implements Reader.
func (r *BME280Reader) Read(ctx context.Context, _ models.SensorDescriptor) (float64, error) {
	out, err := r.run(ctx, r.command, r.metric.Flag)
	if err != nil {
		return 0, err
	}
	return ParseUtilityOutput(out, r.metric.Field)
}

// ParseUtilityOutput 取首行按单个空格切分后的第 field 个字段
func ParseUtilityOutput(out []byte, field int) (float64, error) {
	line, _, _ := strings.Cut(string(out), "\n")
	line = strings.TrimRight(line, "\r")

	fields := strings.Split(line, " ")
	if field < 0 || field >= len(fields) {
		return 0, fmt.Errorf("field %d missing in output %q", field, line)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(fields[field]), 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable output %q: %w", line, err)
	}
	return v, nil
}
