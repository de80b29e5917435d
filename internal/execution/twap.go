package execution

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
	"futures_go/internal/validate"
)

// twapInterval is the spacing between child orders.
const twapInterval = 30 * time.Second

// TWAP splits a large order into randomized market-order slices spread
// over a duration, so the fill price tracks the time-weighted average
// instead of sweeping the book at once.
type TWAP struct {
	gw        domain.Gateway
	validator *validate.Validator
	log       *slog.Logger

	// interval is overridable for tests.
	interval time.Duration
	rng      *rand.Rand
}

// NewTWAP creates a TWAP executor.
func NewTWAP(gw domain.Gateway, v *validate.Validator) *TWAP {
	return &TWAP{
		gw:        gw,
		validator: v,
		log:       slog.Default().With("module", "twap"),
		interval:  twapInterval,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Slices computes the child-order quantities for a total quantity and
// duration. Each slice is randomized by ±20% to stay unpredictable,
// snapped to the symbol's quantity step, and the final slice carries
// whatever remains so the total is exact.
func (t *TWAP) Slices(rule domain.TradingRule, total decimal.Decimal, duration time.Duration) ([]decimal.Decimal, error) {
	n := int(duration / t.interval)
	if n == 0 {
		return nil, &domain.ConfigError{Field: "duration", Err: errors.New("too short for a single interval")}
	}
	if err := validate.CheckQuantity(rule, total); err != nil {
		return nil, err
	}

	per := total.Div(decimal.NewFromInt(int64(n)))
	slices := make([]decimal.Decimal, 0, n)
	remaining := total

	for i := 0; i < n-1; i++ {
		// Randomize within [0.8, 1.2] of the even slice.
		factor := decimal.NewFromFloat(0.8 + t.rng.Float64()*0.4)
		qty := validate.SnapQuantity(rule, per.Mul(factor))
		if qty.GreaterThan(remaining) {
			qty = validate.SnapQuantity(rule, remaining)
		}
		if qty.IsZero() {
			continue
		}
		slices = append(slices, qty)
		remaining = remaining.Sub(qty)
	}
	if remaining.IsPositive() {
		slices = append(slices, remaining)
	}
	return slices, nil
}

// Execute places the slices as market orders, one per interval, until
// the context is cancelled or the total quantity is placed.
func (t *TWAP) Execute(ctx context.Context, rule domain.TradingRule, symbol string, side domain.Side, total decimal.Decimal, duration time.Duration) error {
	slices, err := t.Slices(rule, total, duration)
	if err != nil {
		return err
	}

	t.log.Info("Starting TWAP execution",
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.String("total", total.String()),
		slog.Int("slices", len(slices)))

	executed := decimal.Zero
	for i, qty := range slices {
		order, err := domain.NewOrder(symbol, domain.KindMarket, side, qty, decimal.Zero, decimal.Zero)
		if err != nil {
			return err
		}

		res, err := t.gw.Place(ctx, order)
		if err != nil {
			// Callers own retry policy; report how far we got.
			t.log.Error("TWAP slice rejected, stopping",
				slog.Int("slice", i+1),
				slog.String("executed", executed.String()),
				slog.Any("error", err))
			return err
		}
		executed = executed.Add(qty)
		t.log.Info("TWAP slice placed",
			slog.Int("slice", i+1),
			slog.Int("of", len(slices)),
			slog.String("qty", qty.String()),
			slog.String("order_id", res.OrderID))

		if i == len(slices)-1 {
			break
		}
		select {
		case <-ctx.Done():
			t.log.Warn("TWAP interrupted",
				slog.String("executed", executed.String()))
			return ctx.Err()
		case <-time.After(t.interval):
		}
	}

	t.log.Info("TWAP complete", slog.String("executed", executed.String()))
	return nil
}
