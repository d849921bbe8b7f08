package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
)

// EnvPrefix 環境變數前綴，例如 LEDGER_HTTP_ADDR
const EnvPrefix = "LEDGER"

// 儲存層種類
const (
	StoreMemory   = "memory"
	StoreMySQL    = database.DriverMySQL
	StorePostgres = database.DriverPostgres
)

type HTTPConfig struct {
	Addr         string        `yaml:"addr" envconfig:"ADDR"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	AccessLog    bool          `yaml:"access_log" envconfig:"ACCESS_LOG"`
}

type GRPCConfig struct {
	Addr       string `yaml:"addr" envconfig:"ADDR"`
	Reflection bool   `yaml:"reflection" envconfig:"REFLECTION"`
}

// StoreConfig driver 為 memory 時使用 WAL，其餘走 database 設定
type StoreConfig struct {
	Driver  string `yaml:"driver" envconfig:"DRIVER"`
	WALPath string `yaml:"wal_path" envconfig:"WAL_PATH"`
	Migrate bool   `yaml:"migrate" envconfig:"MIGRATE"`
}

type LedgerConfig struct {
	LockTimeout time.Duration `yaml:"lock_timeout" envconfig:"LOCK_TIMEOUT"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"ENABLED"`
	Brokers      []string      `yaml:"brokers" envconfig:"BROKERS"`
	Topic        string        `yaml:"topic" envconfig:"TOPIC"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
}

// SeedAccount 種子帳戶，餘額用字串避免浮點誤差
type SeedAccount struct {
	AccountNumber  string `yaml:"account_number"`
	InitialBalance string `yaml:"initial_balance"`
}

// Config 服務設定
type Config struct {
	Env      string          `yaml:"env" envconfig:"ENV"`
	HTTP     HTTPConfig      `yaml:"http" envconfig:"HTTP"`
	GRPC     GRPCConfig      `yaml:"grpc" envconfig:"GRPC"`
	Store    StoreConfig     `yaml:"store" envconfig:"STORE"`
	Database database.Config `yaml:"database" envconfig:"DATABASE"`
	Ledger   LedgerConfig    `yaml:"ledger" envconfig:"LEDGER"`
	Log      logger.Config   `yaml:"log" envconfig:"LOG"`
	Kafka    KafkaConfig     `yaml:"kafka" envconfig:"KAFKA"`
	Seed     []SeedAccount   `yaml:"seed" ignored:"true"`
}

// DefaultSeeds 沒有設定 seed 時使用
var DefaultSeeds = []SeedAccount{
	{AccountNumber: "1001-1", InitialBalance: "1000.00"},
	{AccountNumber: "1002-2", InitialBalance: "500.00"},
	{AccountNumber: "1003-3", InitialBalance: "0.00"},
	{AccountNumber: "1004-4", InitialBalance: "2500.75"},
}

// Load 讀取設定
//
// 順序: YAML 檔 (path 為空或不存在時略過) -> .env -> 環境變數 (LEDGER_ 前綴) -> 補預設值
func Load(path string, log *slog.Logger) (*Config, error) {
	if log == nil {
		log = slog.Default()
	}
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Warn("config file not found, using environment only", slog.String("path", path))
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err == nil {
		log.Info("environment variables loaded from .env file")
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults 補全 YAML 與環境變數都沒有設定的欄位
func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 10 * time.Second
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":50051"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreMemory
	}
	if c.Store.WALPath == "" {
		c.Store.WALPath = "data/ledger.wal"
	}
	if c.Store.Driver != StoreMemory && c.Database.Driver == "" {
		c.Database.Driver = c.Store.Driver
	}
	c.Database = c.Database.WithDefaults()
	if c.Ledger.LockTimeout == 0 {
		c.Ledger.LockTimeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "ledger.batches"
	}
	if c.Kafka.WriteTimeout == 0 {
		c.Kafka.WriteTimeout = 5 * time.Second
	}
	if c.Seed == nil {
		c.Seed = DefaultSeeds
	}
}

// Validate 檢查設定是否合理
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StoreMySQL, StorePostgres:
		if c.Database.Driver != c.Store.Driver {
			return fmt.Errorf("store driver %q does not match database driver %q", c.Store.Driver, c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka enabled but no brokers configured")
	}
	if _, err := c.SeedAccounts(); err != nil {
		return err
	}
	return nil
}

// SeedAccounts 轉成 usecase 使用的種子帳戶
func (c *Config) SeedAccounts() ([]usecase.SeedAccount, error) {
	out := make([]usecase.SeedAccount, 0, len(c.Seed))
	for _, s := range c.Seed {
		balance, err := decimal.NewFromString(strings.TrimSpace(s.InitialBalance))
		if err != nil {
			return nil, fmt.Errorf("seed %s: invalid initial balance %q: %w", s.AccountNumber, s.InitialBalance, err)
		}
		out = append(out, usecase.SeedAccount{Number: s.AccountNumber, InitialBalance: balance})
	}
	return out, nil
}
