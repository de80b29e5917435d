// Package validate checks order parameters against the exchange's
// published trading rules before anything is sent to the gateway.
// All arithmetic is exact decimal: the step and tick checks are
// modulo-equality tests that binary floats cannot satisfy reliably.
package validate

import (
	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
)

// Params holds order parameters that passed every filter.
type Params struct {
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal // zero when no price was supplied
}

// Validator validates order parameters against a rule set.
type Validator struct {
	rules domain.RuleSet
}

// New creates a validator over a fetched rule set.
func New(rules domain.RuleSet) *Validator {
	return &Validator{rules: rules}
}

// Check validates quantity and, if non-nil, price for a symbol.
// It has no side effects: the caller decides whether to abort.
func (v *Validator) Check(symbol string, qty decimal.Decimal, price *decimal.Decimal) (Params, error) {
	rule, err := v.rules.Rule(symbol)
	if err != nil {
		return Params{}, err
	}

	if err := CheckQuantity(rule, qty); err != nil {
		return Params{}, err
	}

	p := Params{Symbol: symbol, Quantity: qty}
	if price != nil {
		if err := CheckPrice(rule, *price); err != nil {
			return Params{}, err
		}
		p.Price = *price
	}
	return p, nil
}

// CheckOrder validates an order's quantity and, for kinds with a limit
// leg, its limit price.
func (v *Validator) CheckOrder(o domain.Order) (Params, error) {
	if o.HasLimitPrice() {
		price := o.LimitPrice
		return v.Check(o.Symbol, o.Quantity, &price)
	}
	return v.Check(o.Symbol, o.Quantity, nil)
}

// CheckQuantity validates a quantity against the LOT_SIZE filter.
// Checks run in a fixed order: min, max, then step.
func CheckQuantity(rule domain.TradingRule, qty decimal.Decimal) error {
	if qty.LessThan(rule.MinQty) {
		return &domain.ValidationError{
			Reason: domain.ReasonQuantityTooSmall,
			Symbol: rule.Symbol,
			Value:  qty,
			Bound:  rule.MinQty,
		}
	}
	if qty.GreaterThan(rule.MaxQty) {
		return &domain.ValidationError{
			Reason: domain.ReasonQuantityTooLarge,
			Symbol: rule.Symbol,
			Value:  qty,
			Bound:  rule.MaxQty,
		}
	}

	if rule.StepQty.IsZero() {
		return nil
	}
	base := qty.Sub(rule.MinQty)
	rem := base.Mod(rule.StepQty)
	if !rem.IsZero() {
		// Suggest the nearest valid quantity below the request:
		// floor (qty - minQty) to a step multiple, add minQty back.
		return &domain.ValidationError{
			Reason:       domain.ReasonQuantityStep,
			Symbol:       rule.Symbol,
			Value:        qty,
			Bound:        rule.StepQty,
			SuggestedQty: base.Sub(rem).Add(rule.MinQty),
		}
	}
	return nil
}

// SnapQuantity floors a quantity to the nearest valid step multiple
// above minQty. Quantities below minQty snap to zero.
func SnapQuantity(rule domain.TradingRule, qty decimal.Decimal) decimal.Decimal {
	if qty.LessThan(rule.MinQty) {
		return decimal.Zero
	}
	if rule.StepQty.IsZero() {
		return qty
	}
	base := qty.Sub(rule.MinQty)
	return base.Sub(base.Mod(rule.StepQty)).Add(rule.MinQty)
}

// CheckPrice validates a price against the PRICE_FILTER.
// A MaxPrice of exactly zero means the filter is unbounded above.
func CheckPrice(rule domain.TradingRule, price decimal.Decimal) error {
	if price.LessThan(rule.MinPrice) {
		return &domain.ValidationError{
			Reason: domain.ReasonPriceTooLow,
			Symbol: rule.Symbol,
			Value:  price,
			Bound:  rule.MinPrice,
		}
	}
	if rule.MaxPrice.IsPositive() && price.GreaterThan(rule.MaxPrice) {
		return &domain.ValidationError{
			Reason: domain.ReasonPriceTooHigh,
			Symbol: rule.Symbol,
			Value:  price,
			Bound:  rule.MaxPrice,
		}
	}

	if rule.TickSize.IsZero() {
		return nil
	}
	if !price.Sub(rule.MinPrice).Mod(rule.TickSize).IsZero() {
		return &domain.ValidationError{
			Reason: domain.ReasonPriceTick,
			Symbol: rule.Symbol,
			Value:  price,
			Bound:  rule.TickSize,
		}
	}
	return nil
}
