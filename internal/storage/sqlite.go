// Package storage persists order and fill history in a local SQLite
// database, so past CLI runs and backtests stay inspectable.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"futures_go/internal/domain"
)

// OrderRecord is one placed (or attempted) order. Decimal values are
// stored as their exact string forms.
type OrderRecord struct {
	ID           uint   `gorm:"primaryKey"`
	ExchangeID   string `gorm:"index"`
	Symbol       string `gorm:"index"`
	Side         string
	Kind         string
	Quantity     string
	LimitPrice   string
	TriggerPrice string
	Status       string
	CreatedAt    time.Time
}

// FillRecord is one executed fill, live or simulated.
type FillRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Source    string `gorm:"index"` // "live" or "backtest"
	Symbol    string `gorm:"index"`
	Side      string
	Price     string
	Quantity  string
	FilledAt  time.Time
	CreatedAt time.Time
}

// Storage defines the interface for data persistence
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance
func NewStorage() (*Storage, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}
	return NewStorageAt(dbPath)
}

// NewStorageAt opens (or creates) the database at an explicit path.
func NewStorageAt(dbPath string) (*Storage, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&OrderRecord{}, &FillRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "FuturesGo", "data", "futures.db"), nil
}

// RecordOrder persists a placed order with its exchange ID.
func (s *Storage) RecordOrder(o domain.Order) error {
	rec := OrderRecord{
		ExchangeID:   o.ID,
		Symbol:       o.Symbol,
		Side:         string(o.Side),
		Kind:         string(o.Kind),
		Quantity:     o.Quantity.String(),
		LimitPrice:   o.LimitPrice.String(),
		TriggerPrice: o.TriggerPrice.String(),
		Status:       string(o.Status),
	}
	return s.db.Create(&rec).Error
}

// UpdateOrderStatus updates the stored status for an exchange order ID.
func (s *Storage) UpdateOrderStatus(exchangeID string, status domain.Status) error {
	return s.db.Model(&OrderRecord{}).
		Where("exchange_id = ?", exchangeID).
		Update("status", string(status)).Error
}

// RecordFill persists one fill.
func (s *Storage) RecordFill(source, symbol string, side domain.Side, price, qty decimal.Decimal, filledAt time.Time) error {
	rec := FillRecord{
		Source:   source,
		Symbol:   symbol,
		Side:     string(side),
		Price:    price.String(),
		Quantity: qty.String(),
		FilledAt: filledAt,
	}
	return s.db.Create(&rec).Error
}

// RecentOrders returns the latest orders, newest first.
func (s *Storage) RecentOrders(limit int) ([]OrderRecord, error) {
	var orders []OrderRecord
	err := s.db.Order("id DESC").Limit(limit).Find(&orders).Error
	return orders, err
}

// FillsBySource returns all fills recorded under a source tag.
func (s *Storage) FillsBySource(source string) ([]FillRecord, error) {
	var fills []FillRecord
	err := s.db.Where("source = ?", source).Order("id ASC").Find(&fills).Error
	return fills, err
}
