package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/config"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/driver/tsl2561"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/driver/w1"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

// Registry 传感器类型到 Reader 的分发表
type Registry struct {
	readers map[models.SensorType]Reader
	timeout time.Duration
}

// NewRegistry 创建空分发表，timeout 为单次读取的等待上限（0 表示不限）
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		readers: make(map[models.SensorType]Reader),
		timeout: timeout,
	}
}

// Register 注册某类型的 Reader
func (r *Registry) Register(t models.SensorType, reader Reader) {
	r.readers[t] = reader
}

// Lookup 查找描述对应的 Reader
func (r *Registry) Lookup(d models.SensorDescriptor) (Reader, models.SensorType, bool) {
	t, ok := d.SensorType()
	if !ok {
		return nil, models.SensorTypeUnknown, false
	}
	reader, ok := r.readers[t]
	if !ok {
		return nil, t, false
	}
	return reader, t, true
}

// Read 分发到对应 Reader
// 未知类型返回 ErrUnknownSensorType（不调用任何 Reader），其余失败均为 *ReadError
func (r *Registry) Read(ctx context.Context, d models.SensorDescriptor) (float64, error) {
	reader, t, ok := r.Lookup(d)
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownSensorType, d.Type)
	}

	v, err := readBounded(ctx, r.timeout, reader, d)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = fmt.Errorf("non-finite value %v", v)
	}
	if err != nil {
		return 0, &ReadError{Sensor: d.Name, Type: t.String(), Err: err}
	}
	return v, nil
}

// readBounded 在超时内完成读取，并把 panic 转为错误
// 超时后读取协程被放弃，由各 Reader 的锁保证句柄不会被并发使用
func readBounded(ctx context.Context, timeout time.Duration, reader Reader, d models.SensorDescriptor) (float64, error) {
	if timeout <= 0 {
		return safeRead(ctx, reader, d)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value float64
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := safeRead(ctx, reader, d)
		done <- result{value: v, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("read timed out after %s: %w", timeout, ctx.Err())
		}
		return 0, ctx.Err()
	}
}

func safeRead(ctx context.Context, reader Reader, d models.SensorDescriptor) (v float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return reader.Read(ctx, d)
}

// NewDefaultRegistry 按配置注册全部内置传感器类型
func NewDefaultRegistry(cfg *config.Config, devices *I2CDevices, clk clock.Clock) (*Registry, error) {
	gain, err := tsl2561.ParseGain(cfg.Devices.TSL2561.Gain)
	if err != nil {
		return nil, err
	}
	integ, err := tsl2561.ParseIntegrationTime(cfg.Devices.TSL2561.IntegrationTime)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry(cfg.General.ReadTimeoutDuration())

	reg.Register(models.SensorTypeDS18B20, NewDS18B20Reader(w1.NewBus(cfg.Devices.W1DevicesDir)))

	cmd := cfg.Devices.BME280Command
	reg.Register(models.SensorTypeBME280Temperature, NewBME280Reader(cmd, BME280Temperature, nil))
	reg.Register(models.SensorTypeBME280Humidity, NewBME280Reader(cmd, BME280Humidity, nil))
	reg.Register(models.SensorTypeBME280Pressure, NewBME280Reader(cmd, BME280Pressure, nil))

	reg.Register(models.SensorTypeBME680Temperature, NewBME680Reader(devices.BME680, BME680Temperature))
	reg.Register(models.SensorTypeBME680Humidity, NewBME680Reader(devices.BME680, BME680Humidity))
	reg.Register(models.SensorTypeBME680Pressure, NewBME680Reader(devices.BME680, BME680Pressure))
	reg.Register(models.SensorTypeBME680Gas, NewBME680Reader(devices.BME680, BME680Gas))

	reg.Register(models.SensorTypeTSL2561, NewIlluminanceReader(devices.TSL2561, IlluminanceSettings{
		Gain:            gain,
		IntegrationTime: integ,
		SunriseHour:     cfg.General.SunriseHour,
		SunsetHour:      cfg.General.SunsetHour,
	}, clk))

	return reg, nil
}
