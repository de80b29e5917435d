package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Secrets can be overridden
// through environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Binance struct {
			RestURL   string `yaml:"rest_url"`
			WSURL     string `yaml:"ws_url"`
			APIKey    string `yaml:"api_key"`
			APISecret string `yaml:"api_secret"`
			Testnet   bool   `yaml:"testnet"`
		} `yaml:"binance"`
		Sentiment struct {
			URL        string `yaml:"url"`
			TimeoutSec int    `yaml:"timeout_sec"`
		} `yaml:"sentiment"`
	} `yaml:"api"`

	Trading struct {
		TimeInForce  string `yaml:"time_in_force"`
		RecvWindowMS int    `yaml:"recv_window_ms"`
	} `yaml:"trading"`

	Backtest struct {
		CSVPath     string          `yaml:"csv_path"`
		InitialCash decimal.Decimal `yaml:"initial_cash"`
	} `yaml:"backtest"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.Binance.RestURL, "https://") {
		return fmt.Errorf("invalid Binance REST URL: %s", c.API.Binance.RestURL)
	}
	if !strings.HasPrefix(c.API.Binance.WSURL, "ws://") && !strings.HasPrefix(c.API.Binance.WSURL, "wss://") {
		return fmt.Errorf("invalid Binance WS URL: %s", c.API.Binance.WSURL)
	}

	if c.Trading.RecvWindowMS < 0 {
		return fmt.Errorf("recv window must be non-negative")
	}

	if c.Backtest.InitialCash.IsNegative() {
		return fmt.Errorf("backtest initial cash must be non-negative")
	}

	return nil
}

// overrideWithEnv replaces secrets with environment values when set.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("BINANCE_API_KEY"); key != "" {
		cfg.API.Binance.APIKey = key
	}
	if secret := os.Getenv("BINANCE_API_SECRET"); secret != "" {
		cfg.API.Binance.APISecret = secret
	}
	if os.Getenv("BINANCE_TESTNET") == "true" {
		cfg.API.Binance.Testnet = true
	}
}
