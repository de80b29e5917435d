package app

import (
	"context"
	"log/slog"

	"futures_go/internal/domain"
	"futures_go/internal/infra"
	"futures_go/internal/infra/binance"
	"futures_go/internal/storage"
	"futures_go/internal/validate"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage
	Client    *binance.Client
	Sentiment *infra.SentimentClient
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB,
// exchange client).
func (b *Bootstrap) Initialize(configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage()
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Exchange client
	b.Client = binance.NewClient(cfg)
	b.Sentiment = infra.NewSentimentClient(cfg.API.Sentiment.URL, cfg.API.Sentiment.TimeoutSec)

	slog.Info("🚀 Futures Go ready",
		slog.String("version", cfg.App.Version),
		slog.Bool("testnet", cfg.API.Binance.Testnet))
	return nil
}

// LoadRules fetches and validates the exchange trading rules; a
// failure here aborts before any order is attempted.
func (b *Bootstrap) LoadRules(ctx context.Context) (*validate.Validator, error) {
	rules, err := b.Client.ExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, &domain.ConfigError{Field: "exchange_info", Err: domain.ErrConfigNotFound}
	}
	return validate.New(rules), nil
}
