package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type           string `yaml:"DB_TYPE"`
	Host           string `yaml:"DB_HOST"`
	Port           int    `yaml:"DB_PORT"`
	User           string `yaml:"DB_USER"`
	Password       string `yaml:"DB_PASSWORD"`
	Database       string `yaml:"DB_TABLE"`
	SSLMode        string `yaml:"DB_SSLMODE"`
	ConnectTimeout int    `yaml:"CONNECT_TIMEOUT"`
}

// GeneralConfig 轮询参数
type GeneralConfig struct {
	PollDelaySeconds int `yaml:"SENSORS_POLL_DELAY"`
	PollAmount       int `yaml:"SENSORS_POLL_AMOUNT"`
	SunriseHour      int `yaml:"SUNRISE"`
	SunsetHour       int `yaml:"SUNSET"`
	ReadTimeout      int `yaml:"READ_TIMEOUT"`
}

// TSL2561Config 光照传感器采集参数
type TSL2561Config struct {
	Gain            string `yaml:"gain"`
	IntegrationTime string `yaml:"integration_time"`
}

// DevicesConfig 驱动相关配置
type DevicesConfig struct {
	I2CBus        string        `yaml:"i2c_bus"`
	W1DevicesDir  string        `yaml:"w1_devices_dir"`
	BME280Command string        `yaml:"bme280_command"`
	TSL2561       TSL2561Config `yaml:"tsl2561"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// HTTPConfig HTTP推送配置
type HTTPConfig struct {
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout"`
}

// PublishConfig 可选的读数发布通道，留空即关闭
type PublishConfig struct {
	Redis RedisConfig `yaml:"redis"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
	HTTP  HTTPConfig  `yaml:"http"`
}

// SensorConfig 单个传感器配置项
type SensorConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"sensor_type"`
	SensorID int64  `yaml:"sensor_id"`
	ProbeID  string `yaml:"probe_id"`
}

// Config sensor-fetcher 配置
type Config struct {
	Database DatabaseConfig `yaml:"DATABASE"`
	General  GeneralConfig  `yaml:"general"`
	Devices  DevicesConfig  `yaml:"devices"`
	Publish  PublishConfig  `yaml:"publish"`
	Sensors  []SensorConfig `yaml:"sensors"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// ConfigError 配置缺失或格式错误，启动阶段致命
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load 从 YAML 文件加载配置，再用环境变量覆盖
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	cfg, err := Parse(raw)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Path = path
			return nil, cfgErr
		}
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// Parse 解析配置文档并校验
func Parse(raw []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to parse yaml: %w", err)}
	}

	cfg.Database.LoadFromEnv("DB")
	cfg.Publish.Redis.LoadFromEnv("REDIS")
	cfg.Publish.MQTT.LoadFromEnv("MQTT")
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Database.Type = "mysql"
	cfg.Database.Host = "localhost"
	cfg.Database.SSLMode = "disable"
	cfg.Database.ConnectTimeout = 5

	cfg.General.PollAmount = 1
	cfg.General.SunriseHour = 6
	cfg.General.SunsetHour = 20

	cfg.Devices.W1DevicesDir = "/sys/bus/w1/devices"
	cfg.Devices.BME280Command = "/home/pi/.local/bin/read_bme280"
	cfg.Devices.TSL2561.Gain = "low"
	cfg.Devices.TSL2561.IntegrationTime = "101ms"

	cfg.Publish.Redis.Stream = "sensors:readings"
	cfg.Publish.MQTT.ClientID = "sensor-fetcher"
	cfg.Publish.MQTT.Topic = "sensors"
	cfg.Publish.HTTP.Timeout = 5

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Validate 校验配置取值范围
func (c *Config) Validate() error {
	switch c.Database.Engine() {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.Database.Type)
	}
	if c.Database.ConnectTimeout < 0 {
		return errors.New("CONNECT_TIMEOUT must be >= 0")
	}

	g := c.General
	if g.PollAmount < 1 {
		return fmt.Errorf("SENSORS_POLL_AMOUNT must be >= 1, got %d", g.PollAmount)
	}
	if g.PollDelaySeconds < 0 {
		return fmt.Errorf("SENSORS_POLL_DELAY must be >= 0, got %d", g.PollDelaySeconds)
	}
	if g.SunriseHour < 0 || g.SunriseHour > 23 {
		return fmt.Errorf("SUNRISE must be within 0..23, got %d", g.SunriseHour)
	}
	if g.SunsetHour < 0 || g.SunsetHour > 23 {
		return fmt.Errorf("SUNSET must be within 0..23, got %d", g.SunsetHour)
	}
	if g.ReadTimeout < 0 {
		return errors.New("READ_TIMEOUT must be >= 0")
	}

	switch strings.ToLower(c.Devices.TSL2561.Gain) {
	case "low", "high", "1x", "16x":
	default:
		return fmt.Errorf("unsupported tsl2561 gain %q", c.Devices.TSL2561.Gain)
	}
	switch strings.ToLower(c.Devices.TSL2561.IntegrationTime) {
	case "13ms", "13.7ms", "101ms", "402ms", "manual":
	default:
		return fmt.Errorf("unsupported tsl2561 integration_time %q", c.Devices.TSL2561.IntegrationTime)
	}

	if c.Publish.HTTP.Timeout < 0 {
		return errors.New("publish.http.timeout must be >= 0")
	}

	for i, s := range c.Sensors {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("sensors[%d]: name is required", i)
		}
	}
	return nil
}

// Engine 返回规范化的数据库引擎名
func (c DatabaseConfig) Engine() string {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "mysql", "mariadb":
		return "mysql"
	case "postgres", "postgresql", "pgsql":
		return "postgres"
	default:
		return strings.ToLower(c.Type)
	}
}

// LoadFromEnv 从环境变量加载配置
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	if host := os.Getenv(prefix + "_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv(prefix + "_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}
	if user := os.Getenv(prefix + "_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if database := os.Getenv(prefix + "_NAME"); database != "" {
		c.Database = database
	}
	if sslMode := os.Getenv(prefix + "_SSLMODE"); sslMode != "" {
		c.SSLMode = sslMode
	}
}

// LoadFromEnv 从环境变量加载Redis配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
}

// LoadFromEnv 从环境变量加载MQTT配置
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	if broker := os.Getenv(prefix + "_BROKER"); broker != "" {
		c.Broker = broker
	}
	if username := os.Getenv(prefix + "_USERNAME"); username != "" {
		c.Username = username
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
}

// PollDelay 两次轮询之间的间隔
func (g GeneralConfig) PollDelay() time.Duration {
	return time.Duration(g.PollDelaySeconds) * time.Second
}

// ReadTimeoutDuration 单次读数的等待上限，0 表示不限
func (g GeneralConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(g.ReadTimeout) * time.Second
}

// ConnectTimeoutDuration 数据库连接超时，0 表示不限
func (c DatabaseConfig) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// Descriptors 把配置项转换为传感器描述
func (c *Config) Descriptors() []models.SensorDescriptor {
	out := make([]models.SensorDescriptor, 0, len(c.Sensors))
	for _, s := range c.Sensors {
		out = append(out, models.SensorDescriptor{
			Name:     s.Name,
			Type:     s.Type,
			SensorID: s.SensorID,
			ProbeID:  s.ProbeID,
		})
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
