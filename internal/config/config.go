// Package config loads the application configuration from a YAML file and
// applies environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ashrafr/papertrade/internal/models"
)

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Trading TradingConfig `yaml:"trading"`
	Market  MarketConfig  `yaml:"market"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is one of "postgres", "sqlite", "memory".
	Backend    string         `yaml:"backend"`
	Postgres   PostgresConfig `yaml:"postgres"`
	SQLitePath string         `yaml:"sqlite_path"`

	// SeedAccounts are provisioned at startup. Seeding is additive, so it is
	// meant for the memory backend and throwaway databases.
	SeedAccounts []SeedAccountConfig `yaml:"seed_accounts"`
}

// SeedAccountConfig is one account provisioned at startup.
type SeedAccountConfig struct {
	Username string  `yaml:"username"`
	Balance  float64 `yaml:"balance"`
}

// PostgresConfig holds the PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// TradingConfig controls the settlement layer.
type TradingConfig struct {
	Workers    int `yaml:"workers"`
	MaxRetries int `yaml:"max_retries"`

	// VerifyPrice rejects orders whose price deviates more than
	// PriceTolerancePct percent from the live feed quote. Off by default:
	// the wire contract trusts the caller-supplied execution price.
	VerifyPrice       bool    `yaml:"verify_price"`
	PriceTolerancePct float64 `yaml:"price_tolerance_pct"`
}

// MarketConfig controls the simulated price feed.
type MarketConfig struct {
	// Seed pins the random walk; 0 seeds from the clock.
	Seed                  int64         `yaml:"seed"`
	StreamIntervalSeconds int           `yaml:"stream_interval_seconds"`
	Stocks                []StockConfig `yaml:"stocks"`
}

// StockConfig is one catalog entry.
type StockConfig struct {
	Symbol    string  `yaml:"symbol"`
	Name      string  `yaml:"name"`
	Sector    string  `yaml:"sector"`
	BasePrice float64 `yaml:"base_price"`
}

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "",
			Port: "8080",
		},
		Store: StoreConfig{
			Backend: "postgres",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     "5433",
				User:     "trader",
				Password: "trading123",
				DBName:   "trading_db",
				SSLMode:  "disable",
			},
			SQLitePath: "papertrade.db",
		},
		Trading: TradingConfig{
			Workers:           5,
			MaxRetries:        3,
			VerifyPrice:       false,
			PriceTolerancePct: 5,
		},
		Market: MarketConfig{
			StreamIntervalSeconds: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("store.backend must be postgres, sqlite, or memory, got %q", c.Store.Backend)
	}
	if c.Trading.Workers < 1 {
		return fmt.Errorf("trading.workers must be >= 1, got %d", c.Trading.Workers)
	}
	if c.Trading.MaxRetries < 0 {
		return fmt.Errorf("trading.max_retries must be >= 0, got %d", c.Trading.MaxRetries)
	}
	return nil
}

// Catalog converts the configured stock list for the feed. An empty list
// means the caller should fall back to the built-in catalog.
func (m MarketConfig) Catalog() []models.Stock {
	stocks := make([]models.Stock, 0, len(m.Stocks))
	for _, s := range m.Stocks {
		stocks = append(stocks, models.Stock{
			Symbol:    s.Symbol,
			Name:      s.Name,
			Sector:    s.Sector,
			BasePrice: decimal.NewFromFloat(s.BasePrice),
		})
	}
	return stocks
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding fields when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Store.Postgres.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		cfg.Store.Postgres.Port = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Store.Postgres.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Store.Postgres.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Store.Postgres.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.Store.Postgres.SSLMode = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("NUM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trading.Workers = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
