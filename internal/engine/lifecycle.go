// Package engine holds the order lifecycle state machine. It is pure
// state: no I/O, no clocks, no goroutines. The same transition rules
// serve live tick monitoring and historical replay, which is what keeps
// the two in lockstep.
package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
)

// Book is an indexed collection of orders. OCO peers reference each
// other by book index, so the pair never forms an ownership cycle.
// Single-threaded by design: one tick is processed to a fixed point,
// cascade cancels included, before the next is admitted.
type Book struct {
	orders []domain.Order
}

// NewBook creates an empty order book.
func NewBook() *Book {
	return &Book{}
}

// Add appends an order and returns its index. Orders enter unlinked;
// OCO relations are established afterwards with Link.
func (b *Book) Add(o domain.Order) int {
	if o.Status == "" {
		o.Status = domain.StatusPending
	}
	o.Peer = domain.NoPeer
	b.orders = append(b.orders, o)
	return len(b.orders) - 1
}

// Link records a mutual OCO relation between two orders.
func (b *Book) Link(i, j int) {
	b.orders[i].Peer = j
	b.orders[j].Peer = i
}

// Order returns a pointer to the order at index i.
func (b *Book) Order(i int) *domain.Order {
	return &b.orders[i]
}

// Len returns the number of orders ever added.
func (b *Book) Len() int {
	return len(b.orders)
}

// Open returns the indices of non-terminal orders in insertion order.
// Insertion order is the documented evaluation order for replay.
func (b *Book) Open() []int {
	open := make([]int, 0, len(b.orders))
	for i := range b.orders {
		if !b.orders[i].IsDone() {
			open = append(open, i)
		}
	}
	return open
}

// Observe feeds one price observation to the order at index i and
// returns true if the order reached Filled during this call.
//
// Transition rules:
//   - terminal orders ignore observations
//   - a Pending trigger kind activates when the price crosses its
//     trigger (Buy: price >= trigger, Sell: price <= trigger)
//   - an order is fill-eligible once Active, or immediately if its kind
//     has no trigger; a plain Limit order fills while still Pending,
//     which mirrors how the exchange treats resting limit orders
//   - a fill-eligible order fills when the price crosses its limit
//     (Buy: price <= limit, Sell: price >= limit); kinds without a
//     limit leg fill at the observed price
//   - a fill cascade-cancels a non-terminal OCO peer in the same step
func (b *Book) Observe(i int, ts time.Time, price decimal.Decimal) bool {
	o := &b.orders[i]
	if o.IsDone() {
		return false
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = ts
	}

	if o.NeedsTrigger() && o.Status == domain.StatusPending {
		if (o.IsBuy() && price.GreaterThanOrEqual(o.TriggerPrice)) ||
			(o.IsSell() && price.LessThanOrEqual(o.TriggerPrice)) {
			o.Status = domain.StatusActive
		}
	}

	fillEligible := o.Status == domain.StatusActive || !o.NeedsTrigger()
	if !fillEligible {
		return false
	}

	if o.HasLimitPrice() {
		crossed := (o.IsBuy() && price.LessThanOrEqual(o.LimitPrice)) ||
			(o.IsSell() && price.GreaterThanOrEqual(o.LimitPrice))
		if !crossed {
			return false
		}
	}

	b.fill(i, ts, price)
	return true
}

// fill marks the order Filled and cascade-cancels its OCO peer. The
// cascade is synchronous and never re-checks the peer for a fill, so
// the pair can never both end up Filled.
func (b *Book) fill(i int, ts time.Time, price decimal.Decimal) {
	o := &b.orders[i]
	o.Status = domain.StatusFilled
	o.FilledAt = ts
	o.FilledPrice = price

	if o.Peer != domain.NoPeer && !b.orders[o.Peer].IsDone() {
		b.Cancel(o.Peer, ts)
	}
}

// Cancel moves the order at index i to Cancelled. Cancelling a terminal
// order is a safe no-op, never an error, so the call is idempotent.
func (b *Book) Cancel(i int, ts time.Time) {
	o := &b.orders[i]
	if o.IsDone() {
		return
	}
	o.Status = domain.StatusCancelled
}
