package sensor

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/driver/bme680"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/driver/tsl2561"
)

// DefaultCloseTimeout 释放设备时等待挂起读取的上限
const DefaultCloseTimeout = 2 * time.Second

// BusOpener 打开 I²C 总线
type BusOpener func(name string) (i2c.BusCloser, error)

// OpenHostBus 初始化 periph host 驱动并打开总线，name 为空时取第一条
func OpenHostBus(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", name, err)
	}
	return bus, nil
}

// I2CDevices 进程内常驻的 I²C 设备句柄
// 总线在第一次使用时才打开，只配置单总线/外部工具传感器时不会触碰 I²C
type I2CDevices struct {
	mu      sync.Mutex
	busName string
	openBus BusOpener
	logger  *zap.Logger

	closeTimeout time.Duration

	bus     i2c.BusCloser
	bme680  map[uint16]*bme680.Dev
	tsl2561 map[uint16]*tsl2561.Dev
}

// NewI2CDevices 创建设备缓存，openBus 为 nil 时使用 OpenHostBus
func NewI2CDevices(busName string, openBus BusOpener, logger *zap.Logger) *I2CDevices {
	if openBus == nil {
		openBus = OpenHostBus
	}
	return &I2CDevices{
		busName:      busName,
		openBus:      openBus,
		logger:       logger,
		closeTimeout: DefaultCloseTimeout,
		bme680:       make(map[uint16]*bme680.Dev),
		tsl2561:      make(map[uint16]*tsl2561.Dev),
	}
}

func (d *I2CDevices) busLocked() (i2c.Bus, error) {
	if d.bus != nil {
		return d.bus, nil
	}
	bus, err := d.openBus(d.busName)
	if err != nil {
		return nil, err
	}
	d.logger.Info("i2c bus opened", zap.String("bus", bus.String()))
	d.bus = bus
	return bus, nil
}

// BME680 返回 probe_id 对应地址的 bme680 句柄
func (d *I2CDevices) BME680(probeID string) (EnvironmentSensor, error) {
	addr, err := ParseAddress(probeID, bme680.DefaultAddress)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if dev, ok := d.bme680[addr]; ok {
		return dev, nil
	}
	bus, err := d.busLocked()
	if err != nil {
		return nil, err
	}
	dev, err := bme680.New(bus, addr)
	if err != nil {
		return nil, err
	}
	d.logger.Info("bme680 handle opened", zap.String("addr", fmt.Sprintf("0x%02x", addr)))
	d.bme680[addr] = dev
	return dev, nil
}

// TSL2561 返回 probe_id 对应地址的 tsl2561 句柄
func (d *I2CDevices) TSL2561(probeID string) (LuxSensor, error) {
	addr, err := ParseAddress(probeID, tsl2561.DefaultAddress)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if dev, ok := d.tsl2561[addr]; ok {
		return dev, nil
	}
	bus, err := d.busLocked()
	if err != nil {
		return nil, err
	}
	dev, err := tsl2561.New(bus, addr)
	if err != nil {
		return nil, err
	}
	d.logger.Info("tsl2561 handle opened", zap.String("addr", fmt.Sprintf("0x%02x", addr)))
	d.tsl2561[addr] = dev
	return dev, nil
}

// Close 关闭光照传感器电源并释放总线
// 超时放弃的读取可能仍占用句柄或总线，最多等待 closeTimeout 后跳过释放
func (d *I2CDevices) Close() error {
	done := make(chan error, 1)
	go func() { done <- d.release() }()

	select {
	case err := <-done:
		return err
	case <-time.After(d.closeTimeout):
		d.logger.Warn("i2c devices still busy, release skipped", zap.Duration("waited", d.closeTimeout))
		return fmt.Errorf("i2c devices still busy after %s, release skipped", d.closeTimeout)
	}
}

func (d *I2CDevices) release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	for _, dev := range d.tsl2561 {
		err = multierr.Append(err, dev.SetEnabled(false))
	}
	if d.bus != nil {
		err = multierr.Append(err, d.bus.Close())
		d.bus = nil
	}
	d.bme680 = make(map[uint16]*bme680.Dev)
	d.tsl2561 = make(map[uint16]*tsl2561.Dev)
	return err
}

// ParseAddress 解析 I²C 地址，支持 "0x39" 和十进制写法，空值取默认地址
func ParseAddress(probeID string, def uint16) (uint16, error) {
	s := strings.TrimSpace(probeID)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil || v > 0x7F {
		return 0, fmt.Errorf("invalid i2c address %q", probeID)
	}
	return uint16(v), nil
}
