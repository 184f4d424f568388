package sensor

import (
	"context"
	"fmt"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

// EnvironmentSensor 常驻的 bme680 句柄，每个属性读取都是一次实时测量
type EnvironmentSensor interface {
	Temperature() (float64, error)
	Humidity() (float64, error)
	Pressure() (float64, error)
	Gas() (float64, error)
}

// BME680Property 读取的属性
type BME680Property int

// Properties exposed by the handle.
const (
	BME680Temperature BME680Property = iota
	BME680Humidity
	BME680Pressure
	BME680Gas
)

// BME680Reader 从常驻句柄读取一个属性
type BME680Reader struct {
	open     func(probeID string) (EnvironmentSensor, error)
	property BME680Property
}

// NewBME680Reader 创建 bme680 读取器，open 按 probe_id 返回缓存的句柄
func NewBME680Reader(open func(probeID string) (EnvironmentSensor, error), property BME680Property) *BME680Reader {
	return &BME680Reader{open: open, property: property}
}

// Read implements Reader.
func (r *BME680Reader) Read(_ context.Context, d models.SensorDescriptor) (float64, error) {
	dev, err := r.open(d.ProbeID)
	if err != nil {
		return 0, err
	}

	switch r.property {
	case BME680Temperature:
		return dev.Temperature()
	case BME680Humidity:
		return dev.Humidity()
	case BME680Pressure:
		return dev.Pressure()
	case BME680Gas:
		return dev.Gas()
	default:
		return 0, fmt.Errorf("unsupported bme680 property %d", r.property)
	}
}
