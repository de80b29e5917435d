package execution

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
	"futures_go/internal/validate"
)

// GridLevel is one rung of the grid: a price and the side to quote there.
type GridLevel struct {
	Price decimal.Decimal
	Side  domain.Side
}

// Grid places a static ladder of limit orders across a price range:
// buys below the current mark price, sells above it. Refreshing filled
// rungs is a separate long-running concern and not handled here.
type Grid struct {
	gw  domain.Gateway
	log *slog.Logger
}

// NewGrid creates a grid placer.
func NewGrid(gw domain.Gateway) *Grid {
	return &Grid{
		gw:  gw,
		log: slog.Default().With("module", "grid"),
	}
}

// Levels computes evenly spaced grid prices over [bottom, top] and
// assigns sides relative to the current price. Levels that land exactly
// on the current price, or that violate the symbol's price filter, are
// skipped.
func Levels(rule domain.TradingRule, bottom, top, current decimal.Decimal, count int) ([]GridLevel, error) {
	if bottom.GreaterThanOrEqual(top) {
		return nil, &domain.ConfigError{Field: "grid_range", Err: errors.New("bottom must be below top")}
	}
	if count < 2 {
		return nil, &domain.ConfigError{Field: "grids", Err: errors.New("need at least two grid lines")}
	}

	span := top.Sub(bottom)
	step := span.Div(decimal.NewFromInt(int64(count - 1)))

	levels := make([]GridLevel, 0, count)
	for i := 0; i < count; i++ {
		price := bottom.Add(step.Mul(decimal.NewFromInt(int64(i))))
		if !rule.TickSize.IsZero() {
			// Evenly spaced levels rarely land on the tick grid; snap down.
			off := price.Sub(rule.MinPrice).Mod(rule.TickSize)
			price = price.Sub(off)
		}
		if err := validate.CheckPrice(rule, price); err != nil {
			continue
		}

		switch {
		case price.LessThan(current):
			levels = append(levels, GridLevel{Price: price, Side: domain.SideBuy})
		case price.GreaterThan(current):
			levels = append(levels, GridLevel{Price: price, Side: domain.SideSell})
		default:
			// A resting order at the current price would fill instantly.
		}
	}
	return levels, nil
}

// Place submits one limit order per grid level and returns how many
// buys and sells went live.
func (g *Grid) Place(ctx context.Context, rule domain.TradingRule, symbol string, levels []GridLevel, qtyPerLevel decimal.Decimal) (buys, sells int, err error) {
	if err := validate.CheckQuantity(rule, qtyPerLevel); err != nil {
		return 0, 0, err
	}

	for _, lvl := range levels {
		order, err := domain.NewOrder(symbol, domain.KindLimit, lvl.Side, qtyPerLevel, lvl.Price, decimal.Zero)
		if err != nil {
			return buys, sells, err
		}

		res, err := g.gw.Place(ctx, order)
		if err != nil {
			g.log.Error("Grid level rejected, stopping placement",
				slog.String("price", lvl.Price.String()),
				slog.Any("error", err))
			return buys, sells, err
		}

		g.log.Info("Grid level placed",
			slog.String("side", string(lvl.Side)),
			slog.String("price", lvl.Price.String()),
			slog.String("order_id", res.OrderID))
		if lvl.Side == domain.SideBuy {
			buys++
		} else {
			sells++
		}
	}
	return buys, sells, nil
}
