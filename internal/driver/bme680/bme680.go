// Package bme680 drives the Bosch BME680 environmental sensor over I²C in
// forced mode: every property read triggers one measurement.
package bme680

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
)

const (
	// DefaultAddress SDO pulled high.
	DefaultAddress uint16 = 0x77

	chipID = 0x61

	regResHeatVal   = 0x00
	regResHeatRange = 0x02
	regRangeSwErr   = 0x04
	regField0       = 0x1D
	regResHeat0     = 0x5A
	regGasWait0     = 0x64
	regCtrlGas1     = 0x71
	regCtrlHum      = 0x72
	regCtrlMeas     = 0x74
	regConfig       = 0x75
	regCoeff1       = 0x89
	regChipID       = 0xD0
	regSoftReset    = 0xE0
	regCoeff2       = 0xE1

	coeff1Len = 25
	coeff2Len = 16
	fieldLen  = 15

	softResetCmd = 0xB6

	statusNewData = 0x80
	gasValid      = 0x20
	heatStable    = 0x10
	gasRangeMask  = 0x0F

	modeForced = 0x01
	runGas     = 0x10

	// 1x oversampling on every channel, IIR filter off.
	oversample1x = 0x01

	defaultHeaterTemp     = 320 // °C
	defaultHeaterDuration = 150 * time.Millisecond
	pollInterval          = 10 * time.Millisecond
	pollAttempts          = 50
)

// ErrGasInvalid the heater did not stabilise or the gas conversion was not valid.
var ErrGasInvalid = errors.New("bme680: gas reading not valid")

// Sample 一次强制模式测量结果
type Sample struct {
	Temperature   float64 // °C
	Humidity      float64 // %RH
	Pressure      float64 // hPa
	GasResistance float64 // Ω
	GasValid      bool
}

// Dev BME680 设备句柄
type Dev struct {
	mu    sync.Mutex
	d     i2c.Dev
	calib calibration

	ambient float64
	sleep   func(time.Duration)
}

// New 复位设备并读取校准参数
func New(bus i2c.Bus, addr uint16) (*Dev, error) {
	if addr == 0 {
		addr = DefaultAddress
	}
	dev := &Dev{
		d:       i2c.Dev{Bus: bus, Addr: addr},
		ambient: 25,
		sleep:   time.Sleep,
	}

	if err := dev.writeReg(regSoftReset, softResetCmd); err != nil {
		return nil, fmt.Errorf("bme680: soft reset failed: %w", err)
	}
	dev.sleep(5 * time.Millisecond)

	id, err := dev.readReg(regChipID, 1)
	if err != nil {
		return nil, fmt.Errorf("bme680: failed to read chip id: %w", err)
	}
	if id[0] != chipID {
		return nil, fmt.Errorf("bme680: unexpected chip id 0x%02x", id[0])
	}

	if err := dev.readCalibration(); err != nil {
		return nil, err
	}
	return dev, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("bme680{%s}", &d.d)
}

func (d *Dev) readCalibration() error {
	c1, err := d.readReg(regCoeff1, coeff1Len)
	if err != nil {
		return fmt.Errorf("bme680: failed to read calibration: %w", err)
	}
	c2, err := d.readReg(regCoeff2, coeff2Len)
	if err != nil {
		return fmt.Errorf("bme680: failed to read calibration: %w", err)
	}
	heatRange, err := d.readReg(regResHeatRange, 1)
	if err != nil {
		return fmt.Errorf("bme680: failed to read heater range: %w", err)
	}
	heatVal, err := d.readReg(regResHeatVal, 1)
	if err != nil {
		return fmt.Errorf("bme680: failed to read heater value: %w", err)
	}
	swErr, err := d.readReg(regRangeSwErr, 1)
	if err != nil {
		return fmt.Errorf("bme680: failed to read range switching error: %w", err)
	}

	d.calib = parseCalibration(append(c1, c2...), heatRange[0], heatVal[0], swErr[0])
	return nil
}

// Sense 触发一次强制模式测量并返回补偿后的结果
func (d *Dev) Sense() (Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	setup := [][2]byte{
		{regCtrlHum, oversample1x},
		{regConfig, 0x00},
		{regResHeat0, d.calib.heaterResistance(defaultHeaterTemp, d.ambient)},
		{regGasWait0, gasWaitDuration(defaultHeaterDuration)},
		{regCtrlGas1, runGas},
		{regCtrlMeas, oversample1x<<5 | oversample1x<<2 | modeForced},
	}
	for _, kv := range setup {
		if err := d.writeReg(kv[0], kv[1]); err != nil {
			return Sample{}, fmt.Errorf("bme680: failed to start measurement: %w", err)
		}
	}

	var field []byte
	for i := 0; i < pollAttempts; i++ {
		d.sleep(pollInterval)
		b, err := d.readReg(regField0, fieldLen)
		if err != nil {
			return Sample{}, fmt.Errorf("bme680: failed to read data: %w", err)
		}
		if b[0]&statusNewData != 0 {
			field = b
			break
		}
	}
	if field == nil {
		return Sample{}, errors.New("bme680: measurement timed out")
	}

	s := d.calib.compensate(field)
	d.ambient = s.Temperature
	return s, nil
}

// Temperature 温度（°C）
func (d *Dev) Temperature() (float64, error) {
	s, err := d.Sense()
	return s.Temperature, err
}

// Humidity 相对湿度（%RH）
func (d *Dev) Humidity() (float64, error) {
	s, err := d.Sense()
	return s.Humidity, err
}

// Pressure 气压（hPa）
func (d *Dev) Pressure() (float64, error) {
	s, err := d.Sense()
	return s.Pressure, err
}

// Gas 气体电阻（Ω）
func (d *Dev) Gas() (float64, error) {
	s, err := d.Sense()
	if err != nil {
		return 0, err
	}
	if !s.GasValid {
		return 0, ErrGasInvalid
	}
	return s.GasResistance, nil
}

func (d *Dev) readReg(reg byte, n int) ([]byte, error) {
	b := make([]byte, n)
	if err := d.d.Tx([]byte{reg}, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (d *Dev) writeReg(reg, v byte) error {
	return d.d.Tx([]byte{reg, v}, nil)
}

// gasWaitDuration encodes the heater-on time: 6 bit value times a 4^n multiplier.
func gasWaitDuration(dur time.Duration) byte {
	ms := int(dur / time.Millisecond)
	if ms >= 0xFC0 {
		return 0xFF
	}
	factor := 0
	for ms > 0x3F {
		ms /= 4
		factor++
	}
	return byte(ms + factor*64)
}
