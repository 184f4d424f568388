// Package tsl2561 drives the TAOS TSL2561 light-to-digital converter over I²C.
//
// Lux conversion follows the datasheet's floating point approximation,
// which assumes 16x gain and a 402ms integration window; results are scaled
// for the other settings.
package tsl2561

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"periph.io/x/conn/v3/i2c"
)

const (
	// DefaultAddress ADDR pin floating.
	DefaultAddress uint16 = 0x39

	// MaxLux is the largest value the conversion reports.
	MaxLux = 40000.0

	commandBit = 0x80
	wordBit    = 0x20

	regControl  = 0x00
	regTiming   = 0x01
	regID       = 0x0A
	regChan0Low = 0x0C
	regChan1Low = 0x0E

	controlPowerOn  = 0x03
	controlPowerOff = 0x00

	timingGainBit   = 0x10
	timingIntegMask = 0x03

	partNumber = 0x05
)

// Gain 增益
type Gain byte

// Gain settings.
const (
	Gain1x  Gain = 0
	Gain16x Gain = 1
)

// IntegrationTime 积分时间
type IntegrationTime byte

// Integration windows.
const (
	Integration13ms   IntegrationTime = 0
	Integration101ms  IntegrationTime = 1
	Integration402ms  IntegrationTime = 2
	IntegrationManual IntegrationTime = 3
)

var (
	clipThreshold = [...]uint16{4900, 37000, 65000}
	timeScale     = [...]float64{1 / 0.034, 1 / 0.252, 1}
	gainScale     = [...]float64{16, 1}
)

// ErrManualIntegration no lux conversion exists for the manual window.
var ErrManualIntegration = errors.New("tsl2561: lux unavailable with manual integration")

// ParseGain 解析配置中的增益
func ParseGain(s string) (Gain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "1x", "0":
		return Gain1x, nil
	case "high", "16x", "1":
		return Gain16x, nil
	default:
		return 0, fmt.Errorf("tsl2561: unknown gain %q", s)
	}
}

// ParseIntegrationTime 解析配置中的积分时间
func ParseIntegrationTime(s string) (IntegrationTime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "13ms", "13.7ms":
		return Integration13ms, nil
	case "101ms":
		return Integration101ms, nil
	case "402ms":
		return Integration402ms, nil
	case "manual":
		return IntegrationManual, nil
	default:
		return 0, fmt.Errorf("tsl2561: unknown integration time %q", s)
	}
}

// Dev TSL2561 设备句柄
type Dev struct {
	d     i2c.Dev
	gain  Gain
	integ IntegrationTime
}

// New 打开设备并确认芯片型号
func New(bus i2c.Bus, addr uint16) (*Dev, error) {
	if addr == 0 {
		addr = DefaultAddress
	}
	dev := &Dev{d: i2c.Dev{Bus: bus, Addr: addr}}

	id, err := dev.readByte(regID)
	if err != nil {
		return nil, fmt.Errorf("tsl2561: failed to read chip id: %w", err)
	}
	if id>>4 != partNumber {
		return nil, fmt.Errorf("tsl2561: unexpected chip id 0x%02x", id)
	}

	timing, err := dev.readByte(regTiming)
	if err != nil {
		return nil, fmt.Errorf("tsl2561: failed to read timing: %w", err)
	}
	dev.gain = Gain((timing & timingGainBit) >> 4)
	dev.integ = IntegrationTime(timing & timingIntegMask)

	return dev, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("tsl2561{%s}", &d.d)
}

// SetEnabled 上电或断电
func (d *Dev) SetEnabled(on bool) error {
	v := byte(controlPowerOff)
	if on {
		v = controlPowerOn
	}
	return d.writeByte(regControl, v)
}

// Enabled 读取上电状态
func (d *Dev) Enabled() (bool, error) {
	v, err := d.readByte(regControl)
	if err != nil {
		return false, err
	}
	return v&controlPowerOn == controlPowerOn, nil
}

// SetGain 设置增益
func (d *Dev) SetGain(g Gain) error {
	if g > Gain16x {
		return fmt.Errorf("tsl2561: invalid gain %d", g)
	}
	if err := d.writeTiming(g, d.integ); err != nil {
		return err
	}
	d.gain = g
	return nil
}

// SetIntegrationTime 设置积分时间
func (d *Dev) SetIntegrationTime(t IntegrationTime) error {
	if t > IntegrationManual {
		return fmt.Errorf("tsl2561: invalid integration time %d", t)
	}
	if err := d.writeTiming(d.gain, t); err != nil {
		return err
	}
	d.integ = t
	return nil
}

// Broadband 通道0原始计数（可见光+红外）
func (d *Dev) Broadband() (uint16, error) {
	return d.readWord(regChan0Low)
}

// Infrared 通道1原始计数（红外）
func (d *Dev) Infrared() (uint16, error) {
	return d.readWord(regChan1Low)
}

// Lux 读取两个通道并换算照度
// ok 为 false 表示传感器饱和或曝光不足，无法给出有效值
func (d *Dev) Lux() (lux float64, ok bool, err error) {
	if d.integ == IntegrationManual {
		return 0, false, ErrManualIntegration
	}
	ch0, err := d.Broadband()
	if err != nil {
		return 0, false, err
	}
	ch1, err := d.Infrared()
	if err != nil {
		return 0, false, err
	}
	lux, ok = ComputeLux(ch0, ch1, d.gain, d.integ)
	return lux, ok, nil
}

// ComputeLux 按数据手册公式换算照度，结果限制在 [0, MaxLux]
func ComputeLux(ch0, ch1 uint16, gain Gain, integ IntegrationTime) (float64, bool) {
	if integ >= IntegrationManual || gain > Gain16x {
		return 0, false
	}
	if ch0 == 0 {
		return 0, false
	}
	clip := clipThreshold[integ]
	if ch0 > clip || ch1 > clip {
		return 0, false
	}

	c0, c1 := float64(ch0), float64(ch1)
	ratio := c1 / c0

	var lux float64
	switch {
	case ratio <= 0.50:
		lux = 0.0304*c0 - 0.062*c0*math.Pow(ratio, 1.4)
	case ratio <= 0.61:
		lux = 0.0224*c0 - 0.031*c1
	case ratio <= 0.80:
		lux = 0.0128*c0 - 0.0153*c1
	case ratio <= 1.30:
		lux = 0.00146*c0 - 0.00112*c1
	default:
		lux = 0
	}

	lux *= gainScale[gain]
	lux *= timeScale[integ]

	return math.Min(math.Max(lux, 0), MaxLux), true
}

func (d *Dev) writeTiming(g Gain, t IntegrationTime) error {
	v := byte(t) & timingIntegMask
	if g == Gain16x {
		v |= timingGainBit
	}
	return d.writeByte(regTiming, v)
}

func (d *Dev) readByte(reg byte) (byte, error) {
	var b [1]byte
	if err := d.d.Tx([]byte{commandBit | reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Dev) writeByte(reg, v byte) error {
	return d.d.Tx([]byte{commandBit | reg, v}, nil)
}

func (d *Dev) readWord(reg byte) (uint16, error) {
	var b [2]byte
	if err := d.d.Tx([]byte{commandBit | wordBit | reg}, b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}
