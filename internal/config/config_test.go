package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

const sampleConfig = `
DATABASE:
  DB_TYPE: mysql
  DB_HOST: db.local
  DB_USER: pi
  DB_PASSWORD: raspberry
  DB_TABLE: sensors
general:
  SENSORS_POLL_DELAY: 30
  SENSORS_POLL_AMOUNT: 3
  SUNRISE: 7
  SUNSET: 21
sensors:
  - name: greenhouse
    sensor_type: ds18b20
    sensor_id: 1
    probe_id: "000001"
  - name: light
    sensor_type: tsl2561
    sensor_id: 2
    probe_id: "0x39"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_SampleDocument(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Engine())
	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, "pi", cfg.Database.User)
	assert.Equal(t, "raspberry", cfg.Database.Password)
	assert.Equal(t, "sensors", cfg.Database.Database)

	assert.Equal(t, 3, cfg.General.PollAmount)
	assert.Equal(t, 30*time.Second, cfg.General.PollDelay())
	assert.Equal(t, 7, cfg.General.SunriseHour)
	assert.Equal(t, 21, cfg.General.SunsetHour)

	require.Len(t, cfg.Sensors, 2)
	assert.Equal(t, []models.SensorDescriptor{
		{Name: "greenhouse", Type: "ds18b20", SensorID: 1, ProbeID: "000001"},
		{Name: "light", Type: "tsl2561", SensorID: 2, ProbeID: "0x39"},
	}, cfg.Descriptors())
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, "sensors: []\n"))
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Engine())
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5*time.Second, cfg.Database.ConnectTimeoutDuration())
	assert.Equal(t, 1, cfg.General.PollAmount)
	assert.Equal(t, time.Duration(0), cfg.General.PollDelay())
	assert.Equal(t, time.Duration(0), cfg.General.ReadTimeoutDuration())
	assert.Equal(t, "/sys/bus/w1/devices", cfg.Devices.W1DevicesDir)
	assert.Equal(t, "/home/pi/.local/bin/read_bme280", cfg.Devices.BME280Command)
	assert.Equal(t, "low", cfg.Devices.TSL2561.Gain)
	assert.Equal(t, "101ms", cfg.Devices.TSL2561.IntegrationTime)
	assert.Equal(t, "sensors:readings", cfg.Publish.Redis.Stream)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DB_HOST", "env-host")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_PASSWORD", "env-password")
	t.Setenv("DB_NAME", "env-db")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "env-password", cfg.Database.Password)
	assert.Equal(t, "env-db", cfg.Database.Database)
	assert.Equal(t, "pi", cfg.Database.User)
	assert.Equal(t, "redis:6380", cfg.Publish.Redis.Addr)
	assert.Equal(t, "tcp://broker:1883", cfg.Publish.MQTT.Broker)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Path, "missing.yml")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed yaml", "general: [\n"},
		{"zero poll amount", "general:\n  SENSORS_POLL_AMOUNT: 0\n"},
		{"negative delay", "general:\n  SENSORS_POLL_DELAY: -1\n"},
		{"sunrise out of range", "general:\n  SUNRISE: 24\n"},
		{"sunset out of range", "general:\n  SUNSET: -2\n"},
		{"negative read timeout", "general:\n  READ_TIMEOUT: -5\n"},
		{"unknown engine", "DATABASE:\n  DB_TYPE: oracle\n"},
		{"bad gain", "devices:\n  tsl2561:\n    gain: medium\n"},
		{"bad integration time", "devices:\n  tsl2561:\n    integration_time: 1s\n"},
		{"sensor without name", "sensors:\n  - sensor_type: ds18b20\n    sensor_id: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.doc)
			_, err := Load(path)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, path, cfgErr.Path)
		})
	}
}

func TestLoad_UnknownSensorTypeIsNotAConfigError(t *testing.T) {
	doc := "sensors:\n  - name: typo\n    sensor_type: unknown_model\n    sensor_id: 9\n"
	cfg, err := Load(writeConfig(t, doc))
	require.NoError(t, err)
	require.Len(t, cfg.Sensors, 1)

	_, ok := cfg.Descriptors()[0].SensorType()
	assert.False(t, ok)
}

func TestDatabaseConfig_Engine(t *testing.T) {
	assert.Equal(t, "mysql", DatabaseConfig{Type: "MariaDB"}.Engine())
	assert.Equal(t, "postgres", DatabaseConfig{Type: "postgresql"}.Engine())
	assert.Equal(t, "postgres", DatabaseConfig{Type: " Postgres "}.Engine())
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yml"))
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Engine())
	assert.Equal(t, 3, cfg.General.PollAmount)
	assert.Len(t, cfg.Descriptors(), 6)
	assert.Equal(t, "0x39", cfg.Descriptors()[5].ProbeID)
}
