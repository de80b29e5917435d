// Package execution places orders at the exchange gateway and owns the
// multi-leg placement protocols built on top of it.
package execution

import (
	"context"
	"log/slog"
	"time"

	"futures_go/internal/domain"
	"futures_go/internal/engine"
)

// PairResult holds the gateway results for both legs of an OCO pair.
type PairResult struct {
	LegA domain.PlaceResult
	LegB domain.PlaceResult
}

// Compensator places linked OCO pairs and undoes partial placements.
// The exchange has no native OCO for futures, so the pair is two plain
// orders plus a compensation rule: if the second leg cannot be placed,
// the first must not be left live alone.
type Compensator struct {
	gw  domain.Gateway
	log *slog.Logger
}

// NewCompensator creates a compensator over a gateway.
func NewCompensator(gw domain.Gateway) *Compensator {
	return &Compensator{
		gw:  gw,
		log: slog.Default().With("module", "oco"),
	}
}

// PlacePair links legA and legB as OCO peers in the book, then places
// both at the gateway.
//
//   - legA fails: abort with its error; nothing was created, nothing to
//     undo.
//   - legB fails: cancel legA once (the compensating action) and return
//     legB's placement error.
//   - the compensating cancel fails too: escalate CompensationError.
//     A live order with no tracked peer needs a human.
//
// On success both orders carry their exchange IDs and are live; the
// book's cascade rule keeps them mutually cancelling from then on.
func (c *Compensator) PlacePair(ctx context.Context, book *engine.Book, legA, legB domain.Order) (PairResult, error) {
	ia := book.Add(legA)
	ib := book.Add(legB)
	book.Link(ia, ib)

	resA, err := c.gw.Place(ctx, *book.Order(ia))
	if err != nil {
		book.Cancel(ia, time.Now())
		book.Cancel(ib, time.Now())
		c.log.Error("First OCO leg rejected, pair abandoned",
			slog.String("symbol", legA.Symbol), slog.Any("error", err))
		return PairResult{}, err
	}
	book.Order(ia).ID = resA.OrderID

	resB, err := c.gw.Place(ctx, *book.Order(ib))
	if err != nil {
		c.log.Warn("Second OCO leg rejected, cancelling the first",
			slog.String("symbol", legB.Symbol),
			slog.String("leg_a_id", resA.OrderID),
			slog.Any("error", err))

		outcome, cancelErr := c.gw.Cancel(ctx, legA.Symbol, resA.OrderID)
		if cancelErr != nil {
			return PairResult{}, &domain.CompensationError{
				OrderID:   resA.OrderID,
				Symbol:    legA.Symbol,
				PlaceErr:  err,
				CancelErr: cancelErr,
			}
		}

		book.Cancel(ia, time.Now())
		book.Cancel(ib, time.Now())
		c.log.Info("Orphaned OCO leg cancelled",
			slog.String("leg_a_id", resA.OrderID),
			slog.String("outcome", string(outcome)))
		return PairResult{}, err
	}
	book.Order(ib).ID = resB.OrderID

	c.log.Info("OCO pair live",
		slog.String("symbol", legA.Symbol),
		slog.String("leg_a_id", resA.OrderID),
		slog.String("leg_b_id", resB.OrderID))
	return PairResult{LegA: resA, LegB: resB}, nil
}
