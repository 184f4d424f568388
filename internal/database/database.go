package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/config"
)

const (
	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
)

// DriverName 返回 database/sql 驱动名
func DriverName(cfg *config.DatabaseConfig) string {
	return cfg.Engine()
}

// DSN 根据引擎生成连接字符串
func DSN(cfg *config.DatabaseConfig) (string, error) {
	switch cfg.Engine() {
	case "postgres":
		port := cfg.Port
		if port == 0 {
			port = defaultPostgresPort
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			quoteValue(cfg.Host), port, quoteValue(cfg.User), quoteValue(cfg.Password),
			quoteValue(cfg.Database), quoteValue(cfg.SSLMode))
		if t := cfg.ConnectTimeout; t > 0 {
			dsn += fmt.Sprintf(" connect_timeout=%d", t)
		}
		return dsn, nil
	case "mysql":
		port := cfg.Port
		if port == 0 {
			port = defaultMySQLPort
		}
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		mc.DBName = cfg.Database
		mc.ParseTime = true
		mc.Timeout = cfg.ConnectTimeoutDuration()
		return mc.FormatDSN(), nil
	default:
		return "", fmt.Errorf("unsupported database engine %q", cfg.Type)
	}
}

// quoteValue 按 libpq 关键字格式给取值加引号，转义反斜杠和单引号
func quoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Open 为单次插入打开一个独立连接并确认可用
// 失败时已打开的句柄会被关闭，调用方无需清理
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(DriverName(cfg), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 每次插入独占一条连接，不复用
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	pingCtx := ctx
	if timeout := cfg.ConnectTimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Opener 按需打开数据库连接
type Opener func(ctx context.Context) (*sql.DB, error)

// NewOpener 绑定配置的 Opener
func NewOpener(cfg *config.DatabaseConfig) Opener {
	return func(ctx context.Context) (*sql.DB, error) {
		return Open(ctx, cfg)
	}
}
