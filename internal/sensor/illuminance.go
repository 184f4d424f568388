package sensor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/driver/tsl2561"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

const (
	// SettleTime the device is not trusted right after power-on.
	SettleTime = 100 * time.Millisecond

	// UnderexposedLux is reported for "no valid lux" at night.
	UnderexposedLux = 0.0
	// SaturatedLux is reported for "no valid lux" during the day, one above the device maximum.
	SaturatedLux = tsl2561.MaxLux + 1
)

// LuxSensor 光照传感器句柄，增益与积分时间在每次读取前原地修改
type LuxSensor interface {
	SetEnabled(on bool) error
	SetGain(g tsl2561.Gain) error
	SetIntegrationTime(t tsl2561.IntegrationTime) error
	Broadband() (uint16, error)
	Infrared() (uint16, error)
	// Lux reports ok=false when the device saturated or was underexposed.
	Lux() (lux float64, ok bool, err error)
}

// IlluminanceSettings 采集参数与昼夜判定
type IlluminanceSettings struct {
	Gain            tsl2561.Gain
	IntegrationTime tsl2561.IntegrationTime
	SunriseHour     int
	SunsetHour      int
}

// IlluminanceReader tsl2561 读取器
type IlluminanceReader struct {
	mu       sync.Mutex
	open     func(probeID string) (LuxSensor, error)
	settings IlluminanceSettings
	clock    clock.Clock
}

// NewIlluminanceReader 创建光照读取器
func NewIlluminanceReader(open func(probeID string) (LuxSensor, error), settings IlluminanceSettings, clk clock.Clock) *IlluminanceReader {
	if clk == nil {
		clk = clock.New()
	}
	return &IlluminanceReader{open: open, settings: settings, clock: clk}
}

// Read implements Reader.
func (r *IlluminanceReader) Read(_ context.Context, d models.SensorDescriptor) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, err := r.open(d.ProbeID)
	if err != nil {
		return 0, err
	}

	if err := dev.SetEnabled(true); err != nil {
		return 0, err
	}
	r.clock.Sleep(SettleTime)

	if err := dev.SetGain(r.settings.Gain); err != nil {
		return 0, err
	}
	if err := dev.SetIntegrationTime(r.settings.IntegrationTime); err != nil {
		return 0, err
	}

	// raw channels only prove the device answers
	if _, err := dev.Broadband(); err != nil {
		return 0, err
	}
	if _, err := dev.Infrared(); err != nil {
		return 0, err
	}

	lux, ok, err := dev.Lux()
	if err != nil {
		return 0, err
	}
	if ok {
		return RoundLux(lux), nil
	}
	return ResolveNoLux(r.clock.Now().Hour(), r.settings.SunriseHour, r.settings.SunsetHour), nil
}

// RoundLux 保留两位小数
func RoundLux(v float64) float64 {
	return math.Round(v*100) / 100
}

// ResolveNoLux 设备无法区分饱和与曝光不足，按时间推断：
// 夜间（hour >= sunset 或 hour <= sunrise）视为曝光不足，白天视为饱和
func ResolveNoLux(hour, sunriseHour, sunsetHour int) float64 {
	if hour >= sunsetHour || hour <= sunriseHour {
		return UnderexposedLux
	}
	return SaturatedLux
}
