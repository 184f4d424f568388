// Package sensor turns sensor descriptors into numeric readings.
//
// Every supported sensor type maps to one Reader in a Registry. Reads are
// isolated: a failing, panicking or hung reader produces a ReadError for its
// own sensor and nothing else.
package sensor

import (
	"context"
	"errors"
	"fmt"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

// Reader 读取单个传感器
type Reader interface {
	Read(ctx context.Context, d models.SensorDescriptor) (float64, error)
}

// ReaderFunc 函数形式的 Reader
type ReaderFunc func(ctx context.Context, d models.SensorDescriptor) (float64, error)

// Read implements Reader.
func (f ReaderFunc) Read(ctx context.Context, d models.SensorDescriptor) (float64, error) {
	return f(ctx, d)
}

// ErrUnknownSensorType 配置中的类型没有对应的 Reader
var ErrUnknownSensorType = errors.New("unknown sensor type")

// ReadError 单个传感器读取失败
type ReadError struct {
	Sensor string
	Type   string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s (%s) failed: %v", e.Sensor, e.Type, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
