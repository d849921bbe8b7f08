package database

import (
	"fmt"
	"time"
)

// 支援的資料庫
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config 定義資料庫連線與連線池的配置
type Config struct {
	Driver   string `yaml:"driver" envconfig:"DRIVER"`     // "mysql" 或 "postgres"
	Host     string `yaml:"host" envconfig:"HOST"`         // 資料庫主機地址
	Port     int    `yaml:"port" envconfig:"PORT"`         // 資料庫埠號 (mysql 3306 / postgres 5432)
	User     string `yaml:"user" envconfig:"USER"`         // 使用者名稱
	Password string `yaml:"password" envconfig:"PASSWORD"` // 密碼
	DBName   string `yaml:"dbname" envconfig:"DBNAME"`     // 資料庫名稱
	SSLMode  string `yaml:"sslmode" envconfig:"SSLMODE"`   // postgres 專用
	// DSNOverride 有值時直接使用，忽略上面的欄位
	DSNOverride string `yaml:"dsn" envconfig:"DSN"`

	// 連線池設定 (Connection Pool)
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`       // 最大開啟連線數
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`       // 最大閒置連線數
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"` // 連線最大存活時間

	// 連線重試
	ConnectRetries int           `yaml:"connect_retries" envconfig:"CONNECT_RETRIES"`
	RetryInterval  time.Duration `yaml:"retry_interval" envconfig:"RETRY_INTERVAL"`

	// GORM 設定
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"` // Log 等級: "silent", "error", "warn", "info"
}

// WithDefaults 補全未設定的欄位
func (c Config) WithDefaults() Config {
	if c.Driver == "" {
		c.Driver = DriverMySQL
	}
	if c.Port == 0 {
		if c.Driver == DriverPostgres {
			c.Port = 5432
		} else {
			c.Port = 3306
		}
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 100
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.ConnectRetries == 0 {
		c.ConnectRetries = 10
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 2 * time.Second
	}
	return c
}

// DSN (Data Source Name) 產生連線字串
//
//	mysql:    user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=UTC
//	postgres: host=... port=... user=... password=... dbname=... sslmode=...
func (c *Config) DSN() string {
	if c.DSNOverride != "" {
		return c.DSNOverride
	}
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	}
}
