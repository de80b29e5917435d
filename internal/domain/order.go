package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side of an order.
type Side string

// Kind of an order. Trigger kinds stay dormant until the mark price
// crosses the trigger price.
type Kind string

// Status of an order. Filled and Cancelled are terminal.
type Status string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"

	KindMarket           Kind = "MARKET"
	KindLimit            Kind = "LIMIT"
	KindStopLimit        Kind = "STOP_LIMIT"
	KindStopMarket       Kind = "STOP_MARKET"
	KindTakeProfitMarket Kind = "TAKE_PROFIT_MARKET"

	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusFilled    Status = "FILLED"
	StatusCancelled Status = "CANCELLED"
)

// NoPeer marks an order that is not half of an OCO pair.
const NoPeer = -1

// Order represents one trading order through its whole lifecycle.
// All monetary values are decimal, never float64.
type Order struct {
	ID           string // assigned by the exchange, empty until placed
	Symbol       string
	Kind         Kind
	Side         Side
	Quantity     decimal.Decimal
	LimitPrice   decimal.Decimal // zero for kinds without a limit leg
	TriggerPrice decimal.Decimal // zero for kinds without a trigger
	Status       Status
	CreatedAt    time.Time
	FilledAt     time.Time
	FilledPrice  decimal.Decimal

	// Peer is the book index of the OCO counterpart, NoPeer otherwise.
	// The relation is resolved through the book, never by pointer.
	Peer int
}

// NewOrder builds a Pending order and enforces the per-kind price
// requirements: Limit/StopLimit need a limit price, trigger kinds need
// a trigger price.
func NewOrder(symbol string, kind Kind, side Side, qty, limitPrice, triggerPrice decimal.Decimal) (Order, error) {
	o := Order{
		Symbol:       symbol,
		Kind:         kind,
		Side:         side,
		Quantity:     qty,
		LimitPrice:   limitPrice,
		TriggerPrice: triggerPrice,
		Status:       StatusPending,
		Peer:         NoPeer,
	}

	if o.HasLimitPrice() && limitPrice.IsZero() {
		return Order{}, &ConfigError{Field: "limit_price", Err: ErrLimitPriceRequired}
	}
	if o.NeedsTrigger() && triggerPrice.IsZero() {
		return Order{}, &ConfigError{Field: "trigger_price", Err: ErrTriggerPriceRequired}
	}

	return o, nil
}

// IsBuy checks if the order buys the base asset.
func (o *Order) IsBuy() bool {
	return o.Side == SideBuy
}

// IsSell checks if the order sells the base asset.
func (o *Order) IsSell() bool {
	return o.Side == SideSell
}

// IsDone checks if the order reached a terminal state.
func (o *Order) IsDone() bool {
	return o.Status == StatusFilled || o.Status == StatusCancelled
}

// NeedsTrigger checks if the kind stays dormant until the trigger price
// is crossed.
func (o *Order) NeedsTrigger() bool {
	switch o.Kind {
	case KindStopLimit, KindStopMarket, KindTakeProfitMarket:
		return true
	}
	return false
}

// HasLimitPrice checks if the kind carries a limit leg.
func (o *Order) HasLimitPrice() bool {
	return o.Kind == KindLimit || o.Kind == KindStopLimit
}
