package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// TradingRule holds the exchange-published filters for one symbol:
// the LOT_SIZE filter for quantities and the PRICE_FILTER for prices.
// Values are exact decimals parsed from the exchange's decimal strings.
// Immutable once fetched; refreshing is the caller's job.
type TradingRule struct {
	Symbol   string
	MinQty   decimal.Decimal
	MaxQty   decimal.Decimal
	StepQty  decimal.Decimal
	MinPrice decimal.Decimal
	// MaxPrice of exactly zero means unbounded, a documented exchange
	// convention.
	MaxPrice decimal.Decimal
	TickSize decimal.Decimal
}

// RuleSet maps symbol to its trading rule.
type RuleSet map[string]TradingRule

// Rule looks up the trading rule for a symbol. An unknown symbol is a
// validation error, not a crash.
func (rs RuleSet) Rule(symbol string) (TradingRule, error) {
	rule, ok := rs[symbol]
	if !ok {
		return TradingRule{}, &ValidationError{Reason: ReasonSymbolUnknown, Symbol: symbol}
	}
	return rule, nil
}

// RuleSource defines where trading rules come from (the exchange's
// published filter set).
type RuleSource interface {
	ExchangeInfo(ctx context.Context) (RuleSet, error)
}

// PlaceResult is what the exchange returns for an accepted order.
type PlaceResult struct {
	OrderID string
	Status  string
}

// CancelOutcome reports how a cancel request resolved at the exchange.
type CancelOutcome string

const (
	CancelDone          CancelOutcome = "CANCELLED"
	CancelAlreadyFilled CancelOutcome = "ALREADY_FILLED"
)

// Gateway defines the exchange order interface. Implementations are
// synchronous; retry and backoff belong to the caller.
type Gateway interface {
	// Place submits a new order and returns the exchange-assigned ID.
	Place(ctx context.Context, order Order) (PlaceResult, error)

	// Cancel cancels a live order by exchange ID. Cancelling an order
	// that already filled is reported, not an error.
	Cancel(ctx context.Context, symbol, orderID string) (CancelOutcome, error)
}
