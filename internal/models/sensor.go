package models

import (
	"strings"
)

// SensorType 传感器类型（封闭枚举）
type SensorType int

const (
	SensorTypeUnknown SensorType = iota
	SensorTypeDS18B20
	SensorTypeBME280Temperature
	SensorTypeBME280Humidity
	SensorTypeBME280Pressure
	SensorTypeBME680Temperature
	SensorTypeBME680Humidity
	SensorTypeBME680Pressure
	SensorTypeBME680Gas
	SensorTypeTSL2561
)

var sensorTypeTags = map[string]SensorType{
	"ds18b20":           SensorTypeDS18B20,
	"bme280temperature": SensorTypeBME280Temperature,
	"bme280humidity":    SensorTypeBME280Humidity,
	"bme280pressure":    SensorTypeBME280Pressure,
	"bme680temperature": SensorTypeBME680Temperature,
	"bme680humidity":    SensorTypeBME680Humidity,
	"bme680pressure":    SensorTypeBME680Pressure,
	"bme680gas":         SensorTypeBME680Gas,
	"tsl2561":           SensorTypeTSL2561,
}

// ParseSensorType maps a configuration tag to a SensorType. Matching ignores
// case, '_' and '-', so "bme280Temperature" and "bme280_temperature" are the same tag.
func ParseSensorType(tag string) (SensorType, bool) {
	t, ok := sensorTypeTags[normalizeTag(tag)]
	if !ok {
		return SensorTypeUnknown, false
	}
	return t, true
}

func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return strings.NewReplacer("_", "", "-", "").Replace(tag)
}

// String 返回规范化的类型标签
func (t SensorType) String() string {
	for tag, st := range sensorTypeTags {
		if st == t {
			return tag
		}
	}
	return "unknown"
}

// Unit 返回该类型读数的自然单位
func (t SensorType) Unit() string {
	switch t {
	case SensorTypeDS18B20, SensorTypeBME280Temperature, SensorTypeBME680Temperature:
		return "°C"
	case SensorTypeBME280Humidity, SensorTypeBME680Humidity:
		return "%RH"
	case SensorTypeBME280Pressure, SensorTypeBME680Pressure:
		return "hPa"
	case SensorTypeBME680Gas:
		return "Ω"
	case SensorTypeTSL2561:
		return "lux"
	default:
		return ""
	}
}

// SensorDescriptor 传感器描述（来自配置，运行期间只读）
type SensorDescriptor struct {
	Name string
	// Type is the raw tag as written in the configuration.
	Type string
	// SensorID is the foreign key written to measures.sensor_id.
	SensorID int64
	// ProbeID is passed through to the driver untouched.
	ProbeID string
}

// SensorType resolves the descriptor's tag.
func (d SensorDescriptor) SensorType() (SensorType, bool) {
	return ParseSensorType(d.Type)
}
