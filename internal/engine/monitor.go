package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
)

// Tick is one price observation, from a live stream or a historical
// feed. The lifecycle rules treat both identically.
type Tick struct {
	Ts    time.Time
	Price decimal.Decimal
}

// Monitor drives a book of live orders from a price tick stream. When a
// fill cascade-cancels an OCO peer locally, the monitor mirrors that
// cancel to the exchange so the peer does not stay live there.
//
// Single consumer, single goroutine: ticks are processed one at a time,
// each to completion, which is the same sequential-commit discipline
// the replayer uses.
type Monitor struct {
	book  *Book
	gw    domain.Gateway
	ticks <-chan Tick
	log   *slog.Logger
}

// NewMonitor creates a monitor over a book and a tick source.
func NewMonitor(book *Book, gw domain.Gateway, ticks <-chan Tick) *Monitor {
	return &Monitor{
		book:  book,
		gw:    gw,
		ticks: ticks,
		log:   slog.Default().With("module", "monitor"),
	}
}

// Run consumes ticks until every order in the book is terminal, the
// stream closes, or the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if len(m.book.Open()) == 0 {
			m.log.Info("All orders terminal, monitor done")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-m.ticks:
			if !ok {
				return nil
			}
			m.observeAll(ctx, tick)
		}
	}
}

func (m *Monitor) observeAll(ctx context.Context, tick Tick) {
	for _, i := range m.book.Open() {
		if !m.book.Observe(i, tick.Ts, tick.Price) {
			continue
		}

		o := m.book.Order(i)
		m.log.Info("Order filled",
			slog.String("id", o.ID),
			slog.String("symbol", o.Symbol),
			slog.String("side", string(o.Side)),
			slog.String("price", o.FilledPrice.String()))

		if o.Peer == domain.NoPeer {
			continue
		}
		peer := m.book.Order(o.Peer)
		if peer.ID == "" {
			continue
		}

		outcome, err := m.gw.Cancel(ctx, peer.Symbol, peer.ID)
		if err != nil {
			// The peer is cancelled locally but may still be live at
			// the exchange. Surface loudly; retrying is the operator's
			// call.
			m.log.Error("FAILED TO CANCEL OCO PEER AT EXCHANGE",
				slog.String("peer_id", peer.ID),
				slog.String("symbol", peer.Symbol),
				slog.Any("error", err))
			continue
		}
		m.log.Info("OCO peer cancelled at exchange",
			slog.String("peer_id", peer.ID),
			slog.String("outcome", string(outcome)))
	}
}
