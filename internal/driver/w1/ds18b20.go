// Package w1 reads DS18B20 temperature probes through the kernel w1-therm
// driver's sysfs files.
package w1

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	familyDS18B20 = "28"
	// resetValue is what the probe reports before its first conversion.
	resetValue = 85000
)

var (
	// ErrCRC the probe answered but the checksum did not match.
	ErrCRC = errors.New("w1: crc check failed")
	// ErrResetValue the probe returned its power-on value instead of a conversion.
	ErrResetValue = errors.New("w1: probe returned power-on reset value")
)

// Bus 单总线设备目录
type Bus struct {
	Dir string
}

// NewBus 创建总线读取器，dir 通常为 /sys/bus/w1/devices
func NewBus(dir string) *Bus {
	return &Bus{Dir: dir}
}

// SlavePath 返回探头的 w1_slave 文件路径
func (b *Bus) SlavePath(probeID string) string {
	name := probeID
	if !strings.HasPrefix(name, familyDS18B20+"-") {
		name = familyDS18B20 + "-" + name
	}
	return filepath.Join(b.Dir, name, "w1_slave")
}

// ReadTemperature 读取探头温度（°C）
func (b *Bus) ReadTemperature(probeID string) (float64, error) {
	if strings.TrimSpace(probeID) == "" {
		return 0, errors.New("w1: empty probe id")
	}

	f, err := os.Open(b.SlavePath(probeID))
	if err != nil {
		return 0, fmt.Errorf("w1: probe %s not found: %w", probeID, err)
	}
	defer f.Close()

	return parseSlave(f)
}

// parseSlave 解析 w1_slave 内容，例如：
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseSlave(r io.Reader) (float64, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		return 0, errors.New("w1: empty slave file")
	}
	if !strings.HasSuffix(strings.TrimSpace(scanner.Text()), "YES") {
		return 0, ErrCRC
	}

	if !scanner.Scan() {
		return 0, errors.New("w1: missing temperature line")
	}
	line := scanner.Text()
	idx := strings.LastIndex(line, "t=")
	if idx < 0 {
		return 0, fmt.Errorf("w1: no temperature in %q", line)
	}

	milli, err := strconv.Atoi(strings.TrimSpace(line[idx+2:]))
	if err != nil {
		return 0, fmt.Errorf("w1: invalid temperature %q: %w", line[idx+2:], err)
	}
	if milli == resetValue {
		return 0, ErrResetValue
	}

	return float64(milli) / 1000, nil
}
