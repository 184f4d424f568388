package sensor

import (
	"context"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

// ThermalProbe 单总线温度探头驱动
type ThermalProbe interface {
	ReadTemperature(probeID string) (float64, error)
}

// DS18B20Reader 读取 ds18b20 探头温度（°C）
type DS18B20Reader struct {
	probe ThermalProbe
}

// NewDS18B20Reader 创建 ds18b20 读取器
func NewDS18B20Reader(probe ThermalProbe) *DS18B20Reader {
	return &DS18B20Reader{probe: probe}
}

// Read implements Reader.
func (r *DS18B20Reader) Read(_ context.Context, d models.SensorDescriptor) (float64, error) {
	return r.probe.ReadTemperature(d.ProbeID)
}
