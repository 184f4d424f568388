package bme680

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

var (
	testCoeff1 = []byte{
		0x00, 0x90, 0x66, 0x03, 0x00, 0xE5, 0x8D, 0x2D, 0xD7, 0x58, 0x00, 0xF6, 0x1B,
		0x7E, 0xFF, 0x39, 0x1E, 0x00, 0x00, 0xA4, 0xF2, 0xEE, 0xF5, 0x1E, 0x00,
	}
	testCoeff2 = []byte{
		0x3F, 0x95, 0x2F, 0x00, 0x2D, 0x14, 0x78, 0x9C, 0x9A, 0x66, 0x08, 0xD5, 0xEF, 0x12, 0x00, 0x00,
	}
	// temp adc 500000, press adc 350000, hum adc 20000, gas adc 400 range 5, valid + stable
	testField = []byte{0x80, 0x00, 0x55, 0x73, 0x00, 0x7A, 0x12, 0x00, 0x4E, 0x20, 0x00, 0x00, 0x00, 0x64, 0x35}
)

func initOps(addr uint16) []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: addr, W: []byte{0xE0, 0xB6}},
		{Addr: addr, W: []byte{0xD0}, R: []byte{0x61}},
		{Addr: addr, W: []byte{0x89}, R: testCoeff1},
		{Addr: addr, W: []byte{0xE1}, R: testCoeff2},
		{Addr: addr, W: []byte{0x02}, R: []byte{0x10}},
		{Addr: addr, W: []byte{0x00}, R: []byte{0x2C}},
		{Addr: addr, W: []byte{0x04}, R: []byte{0x10}},
	}
}

func senseOps(addr uint16, notReady int) []i2ctest.IO {
	ops := []i2ctest.IO{
		{Addr: addr, W: []byte{0x72, 0x01}},
		{Addr: addr, W: []byte{0x75, 0x00}},
		{Addr: addr, W: []byte{0x5A, 0xB3}},
		{Addr: addr, W: []byte{0x64, 0x65}},
		{Addr: addr, W: []byte{0x71, 0x10}},
		{Addr: addr, W: []byte{0x74, 0x25}},
	}
	for i := 0; i < notReady; i++ {
		ops = append(ops, i2ctest.IO{Addr: addr, W: []byte{0x1D}, R: make([]byte, fieldLen)})
	}
	return append(ops, i2ctest.IO{Addr: addr, W: []byte{0x1D}, R: testField})
}

func TestParseCalibration(t *testing.T) {
	c := parseCalibration(append(append([]byte{}, testCoeff1...), testCoeff2...), 0x10, 0x2C, 0x10)

	assert.Equal(t, uint16(26266), c.t1)
	assert.Equal(t, int16(26256), c.t2)
	assert.Equal(t, int8(3), c.t3)
	assert.Equal(t, uint16(36325), c.p1)
	assert.Equal(t, int16(-10451), c.p2)
	assert.Equal(t, int16(-130), c.p5)
	assert.Equal(t, int8(30), c.p6)
	assert.Equal(t, int8(57), c.p7)
	assert.Equal(t, int16(-2578), c.p9)
	assert.Equal(t, uint16(757), c.h1)
	assert.Equal(t, uint16(1017), c.h2)
	assert.Equal(t, int8(-100), c.h7)
	assert.Equal(t, int8(-17), c.gh1)
	assert.Equal(t, int16(-11000), c.gh2)
	assert.Equal(t, uint8(1), c.resHeatRange)
	assert.Equal(t, int8(44), c.resHeatVal)
	assert.Equal(t, int8(1), c.rangeSwErr)
}

func TestDev_Sense(t *testing.T) {
	ops := append(initOps(DefaultAddress), senseOps(DefaultAddress, 1)...)
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}

	dev, err := New(bus, 0)
	require.NoError(t, err)
	dev.sleep = func(time.Duration) {}

	s, err := dev.Sense()
	require.NoError(t, err)
	assert.InDelta(t, 24.963016, s.Temperature, 1e-5)
	assert.InDelta(t, 1003.920184, s.Pressure, 1e-4)
	assert.InDelta(t, 39.769384, s.Humidity, 1e-4)
	assert.InDelta(t, 271061.855, s.GasResistance, 0.01)
	assert.True(t, s.GasValid)

	require.NoError(t, bus.Close())
}

func TestDev_PropertiesTriggerMeasurement(t *testing.T) {
	ops := initOps(0x76)
	ops = append(ops, senseOps(0x76, 0)...)
	ops = append(ops, senseOps(0x76, 0)...)
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}

	dev, err := New(bus, 0x76)
	require.NoError(t, err)
	dev.sleep = func(time.Duration) {}

	h, err := dev.Humidity()
	require.NoError(t, err)
	assert.InDelta(t, 39.769384, h, 1e-4)

	g, err := dev.Gas()
	require.NoError(t, err)
	assert.InDelta(t, 271061.855, g, 0.01)

	require.NoError(t, bus.Close())
}

func TestDev_GasInvalid(t *testing.T) {
	field := append([]byte{}, testField...)
	field[14] &^= gasValid

	ops := initOps(DefaultAddress)
	sense := senseOps(DefaultAddress, 0)
	sense[len(sense)-1].R = field
	bus := &i2ctest.Playback{Ops: append(ops, sense...), DontPanic: true}

	dev, err := New(bus, 0)
	require.NoError(t, err)
	dev.sleep = func(time.Duration) {}

	_, err = dev.Gas()
	assert.ErrorIs(t, err, ErrGasInvalid)
}

func TestNew_WrongChip(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x77, W: []byte{0xE0, 0xB6}},
			{Addr: 0x77, W: []byte{0xD0}, R: []byte{0x60}},
		},
		DontPanic: true,
	}

	_, err := New(bus, 0)
	assert.Error(t, err)
}

func TestGasWaitDuration(t *testing.T) {
	assert.Equal(t, byte(0x65), gasWaitDuration(150*time.Millisecond))
	assert.Equal(t, byte(63), gasWaitDuration(63*time.Millisecond))
	assert.Equal(t, byte(0xFF), gasWaitDuration(5*time.Second))
}
