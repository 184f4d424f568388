package w1

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSlave(t *testing.T, dir, probe, content string) {
	t.Helper()
	probeDir := filepath.Join(dir, "28-"+probe)
	require.NoError(t, os.MkdirAll(probeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(probeDir, "w1_slave"), []byte(content), 0o644))
}

func TestReadTemperature(t *testing.T) {
	dir := t.TempDir()
	writeSlave(t, dir, "000001", "58 01 4b 46 7f ff 0c 10 46 : crc=46 YES\n58 01 4b 46 7f ff 0c 10 46 t=21500\n")
	bus := NewBus(dir)

	v, err := bus.ReadTemperature("000001")
	require.NoError(t, err)
	assert.Equal(t, 21.5, v)

	v, err = bus.ReadTemperature("28-000001")
	require.NoError(t, err)
	assert.Equal(t, 21.5, v)
}

func TestReadTemperature_Negative(t *testing.T) {
	dir := t.TempDir()
	writeSlave(t, dir, "000002", "5e ff 4b 46 7f ff 02 10 0d : crc=0d YES\n5e ff 4b 46 7f ff 02 10 0d t=-10125\n")

	v, err := NewBus(dir).ReadTemperature("000002")
	require.NoError(t, err)
	assert.Equal(t, -10.125, v)
}

func TestReadTemperature_Errors(t *testing.T) {
	dir := t.TempDir()
	writeSlave(t, dir, "crc", "58 01 4b 46 7f ff 0c 10 46 : crc=46 NO\n58 01 4b 46 7f ff 0c 10 46 t=21500\n")
	writeSlave(t, dir, "reset", "50 05 4b 46 7f ff 0c 10 1c : crc=1c YES\n50 05 4b 46 7f ff 0c 10 1c t=85000\n")
	writeSlave(t, dir, "garbage", "xx : crc=00 YES\nxx t=abc\n")
	writeSlave(t, dir, "short", "xx : crc=00 YES\n")
	bus := NewBus(dir)

	_, err := bus.ReadTemperature("crc")
	assert.ErrorIs(t, err, ErrCRC)

	_, err = bus.ReadTemperature("reset")
	assert.ErrorIs(t, err, ErrResetValue)

	_, err = bus.ReadTemperature("garbage")
	assert.Error(t, err)

	_, err = bus.ReadTemperature("short")
	assert.Error(t, err)

	_, err = bus.ReadTemperature("missing")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = bus.ReadTemperature("")
	assert.Error(t, err)
}
