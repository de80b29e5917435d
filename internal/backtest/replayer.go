package backtest

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
	"futures_go/internal/engine"
)

// Fill is one ledger entry: a filled order applied to cash and position.
// The trade log is append-only; cancelled orders never touch it.
type Fill struct {
	Ts    time.Time
	Side  domain.Side
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// Report summarizes a finished replay.
type Report struct {
	InitialCash decimal.Decimal
	FinalCash   decimal.Decimal
	Position    decimal.Decimal
	LastPrice   decimal.Decimal
	FinalValue  decimal.Decimal // cash + position * last price
	PnL         decimal.Decimal
	PnLPct      decimal.Decimal
	Trades      []Fill
}

// Replayer drives a book of orders and a cash+position ledger from an
// ordered tick feed. Processing is strictly sequential: each tick runs
// to a fixed point (cascade cancels included) before the next one, and
// a fill's ledger update commits in the same step as its cascade. That
// sequential discipline is what upholds the OCO guarantee.
type Replayer struct {
	book *engine.Book

	initialCash decimal.Decimal
	cash        decimal.Decimal
	position    decimal.Decimal
	trades      []Fill

	log *slog.Logger
}

// NewReplayer creates a replayer with a starting cash balance and a
// flat position.
func NewReplayer(initialCash decimal.Decimal) *Replayer {
	return &Replayer{
		book:        engine.NewBook(),
		initialCash: initialCash,
		cash:        initialCash,
		log:         slog.Default().With("module", "backtest"),
	}
}

// Book exposes the working order set for seeding.
func (r *Replayer) Book() *engine.Book {
	return r.book
}

// SeedPosition simulates an entry fill before replay: buy qty at price,
// paid from cash.
func (r *Replayer) SeedPosition(qty, price decimal.Decimal) {
	r.cash = r.cash.Sub(price.Mul(qty))
	r.position = r.position.Add(qty)
	r.log.Info("Seeded entry position",
		slog.String("qty", qty.String()),
		slog.String("price", price.String()))
}

// PlaceOCO seeds a protective pair for a long position: a take-profit
// limit sell and a stop-limit sell whose trigger equals its limit.
func (r *Replayer) PlaceOCO(qty, takeProfit, stopLoss decimal.Decimal) error {
	tp, err := domain.NewOrder("", domain.KindLimit, domain.SideSell, qty, takeProfit, decimal.Zero)
	if err != nil {
		return err
	}
	sl, err := domain.NewOrder("", domain.KindStopLimit, domain.SideSell, qty, stopLoss, stopLoss)
	if err != nil {
		return err
	}

	ti := r.book.Add(tp)
	si := r.book.Add(sl)
	r.book.Link(ti, si)

	r.log.Info("Seeded OCO pair",
		slog.String("take_profit", takeProfit.String()),
		slog.String("stop_loss", stopLoss.String()))
	return nil
}

// Run replays the ticks in feed order and returns the final report.
//
// Per tick: every order in the open set is observed in insertion order
// (a documented behavior, not price priority); orders that fill are
// applied to the ledger immediately; terminal orders leave the open set
// before the next tick.
func (r *Replayer) Run(ticks []engine.Tick) Report {
	var lastPrice decimal.Decimal

	for _, tick := range ticks {
		lastPrice = tick.Price
		for _, i := range r.book.Open() {
			if r.book.Observe(i, tick.Ts, tick.Price) {
				r.applyFill(r.book.Order(i))
			}
		}
	}

	finalValue := r.cash.Add(r.position.Mul(lastPrice))
	pnl := finalValue.Sub(r.initialCash)
	report := Report{
		InitialCash: r.initialCash,
		FinalCash:   r.cash,
		Position:    r.position,
		LastPrice:   lastPrice,
		FinalValue:  finalValue,
		PnL:         pnl,
		Trades:      r.trades,
	}
	if r.initialCash.IsPositive() {
		report.PnLPct = pnl.Div(r.initialCash).Mul(decimal.NewFromInt(100))
	}

	r.log.Info("Replay finished",
		slog.String("final_value", report.FinalValue.String()),
		slog.String("pnl", report.PnL.String()),
		slog.Int("trades", len(report.Trades)))
	return report
}

func (r *Replayer) applyFill(o *domain.Order) {
	notional := o.FilledPrice.Mul(o.Quantity)
	if o.IsBuy() {
		r.cash = r.cash.Sub(notional)
		r.position = r.position.Add(o.Quantity)
	} else {
		r.cash = r.cash.Add(notional)
		r.position = r.position.Sub(o.Quantity)
	}
	r.trades = append(r.trades, Fill{
		Ts:    o.FilledAt,
		Side:  o.Side,
		Price: o.FilledPrice,
		Qty:   o.Quantity,
	})

	r.log.Info("Fill applied to ledger",
		slog.String("side", string(o.Side)),
		slog.String("price", o.FilledPrice.String()),
		slog.String("qty", o.Quantity.String()))
}
