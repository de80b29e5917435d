package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ts(sec int) time.Time {
	return time.Unix(int64(sec), 0)
}

func mustOrder(t *testing.T, kind domain.Kind, side domain.Side, limit, trigger string) domain.Order {
	t.Helper()
	var lp, tp decimal.Decimal
	if limit != "" {
		lp = d(limit)
	}
	if trigger != "" {
		tp = d(trigger)
	}
	o, err := domain.NewOrder("BTCUSDT", kind, side, d("1"), lp, tp)
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}
	return o
}

func TestObserve_StopLimitActivatesThenFills(t *testing.T) {
	book := NewBook()
	// Sell stop-limit: trigger 98, limit 98.
	i := book.Add(mustOrder(t, domain.KindStopLimit, domain.SideSell, "98", "98"))

	// Above the trigger: still dormant.
	if book.Observe(i, ts(1), d("100")) {
		t.Fatal("Should not fill above the trigger")
	}
	if book.Order(i).Status != domain.StatusPending {
		t.Errorf("Expected PENDING, got %s", book.Order(i).Status)
	}

	// Price drops through the trigger: activates, and at 97 the sell
	// limit of 98 is not crossed upward, so it activates and fills in
	// the same observation only if price >= limit. 97 < 98: no fill.
	if book.Observe(i, ts(2), d("97")) {
		t.Fatal("97 does not cross a sell limit of 98")
	}
	if book.Order(i).Status != domain.StatusActive {
		t.Errorf("Expected ACTIVE after trigger cross, got %s", book.Order(i).Status)
	}

	// Recovery through the limit fills.
	if !book.Observe(i, ts(3), d("99")) {
		t.Fatal("99 crosses the active sell limit of 98")
	}
	o := book.Order(i)
	if o.Status != domain.StatusFilled {
		t.Errorf("Expected FILLED, got %s", o.Status)
	}
	if !o.FilledPrice.Equal(d("99")) {
		t.Errorf("Expected fill at 99, got %s", o.FilledPrice)
	}
	if !o.FilledAt.Equal(ts(3)) {
		t.Errorf("Expected FilledAt ts(3), got %v", o.FilledAt)
	}
}

func TestObserve_BuyStopActivatesUpward(t *testing.T) {
	book := NewBook()
	i := book.Add(mustOrder(t, domain.KindStopMarket, domain.SideBuy, "", "105"))

	if book.Observe(i, ts(1), d("104")) {
		t.Fatal("Below the buy trigger, must stay dormant")
	}
	if !book.Observe(i, ts(2), d("105")) {
		t.Fatal("At the trigger a stop-market activates and fills at once")
	}
	if !book.Order(i).FilledPrice.Equal(d("105")) {
		t.Errorf("Market kinds fill at the observed price, got %s", book.Order(i).FilledPrice)
	}
}

// A resting limit order fills without ever passing through ACTIVE.
func TestObserve_LimitFillsWhilePending(t *testing.T) {
	book := NewBook()
	i := book.Add(mustOrder(t, domain.KindLimit, domain.SideBuy, "95", ""))

	if book.Order(i).Status != domain.StatusPending {
		t.Fatalf("Expected PENDING, got %s", book.Order(i).Status)
	}
	if book.Observe(i, ts(1), d("96")) {
		t.Fatal("96 does not cross a buy limit of 95")
	}
	if !book.Observe(i, ts(2), d("95")) {
		t.Fatal("95 crosses the buy limit")
	}
}

func TestObserve_TerminalOrdersIgnoreTicks(t *testing.T) {
	book := NewBook()
	i := book.Add(mustOrder(t, domain.KindLimit, domain.SideSell, "100", ""))
	book.Cancel(i, ts(1))

	if book.Observe(i, ts(2), d("200")) {
		t.Error("Cancelled order must not fill")
	}
	if book.Order(i).Status != domain.StatusCancelled {
		t.Errorf("Status changed after terminal: %s", book.Order(i).Status)
	}
}

func TestCancel_IdempotentOnTerminal(t *testing.T) {
	book := NewBook()
	i := book.Add(mustOrder(t, domain.KindLimit, domain.SideSell, "100", ""))

	if !book.Observe(i, ts(1), d("101")) {
		t.Fatal("Expected fill")
	}
	// Cancel after fill: no-op, the fill stands.
	book.Cancel(i, ts(2))
	if book.Order(i).Status != domain.StatusFilled {
		t.Errorf("Cancel overwrote a terminal fill: %s", book.Order(i).Status)
	}

	book.Cancel(i, ts(3))
	book.Cancel(i, ts(4))
	if book.Order(i).Status != domain.StatusFilled {
		t.Errorf("Repeated cancels changed state: %s", book.Order(i).Status)
	}
}

func TestFill_CascadeCancelsPeer(t *testing.T) {
	book := NewBook()
	tp := book.Add(mustOrder(t, domain.KindLimit, domain.SideSell, "105", ""))
	sl := book.Add(mustOrder(t, domain.KindStopLimit, domain.SideSell, "98", "98"))
	book.Link(tp, sl)

	if !book.Observe(tp, ts(1), d("105")) {
		t.Fatal("Take-profit should fill at 105")
	}

	if book.Order(sl).Status != domain.StatusCancelled {
		t.Errorf("Peer not cascade-cancelled: %s", book.Order(sl).Status)
	}
	if len(book.Open()) != 0 {
		t.Errorf("Both legs should be terminal, open set: %v", book.Open())
	}
}

// Even when one tick satisfies both legs, only the first observed leg
// fills; the cascade removes the peer before it is observed.
func TestFill_PairNeverBothFilled(t *testing.T) {
	book := NewBook()
	a := book.Add(mustOrder(t, domain.KindLimit, domain.SideSell, "100", ""))
	b := book.Add(mustOrder(t, domain.KindLimit, domain.SideSell, "100", ""))
	book.Link(a, b)

	filled := 0
	for _, i := range book.Open() {
		if book.Observe(i, ts(1), d("100")) {
			filled++
		}
	}

	if filled != 1 {
		t.Fatalf("Expected exactly one fill, got %d", filled)
	}
	if book.Order(a).Status != domain.StatusFilled {
		t.Errorf("Insertion order says a fills first, got %s", book.Order(a).Status)
	}
	if book.Order(b).Status != domain.StatusCancelled {
		t.Errorf("Peer should be cancelled, got %s", book.Order(b).Status)
	}
}

func TestOpen_InsertionOrder(t *testing.T) {
	book := NewBook()
	a := book.Add(mustOrder(t, domain.KindLimit, domain.SideSell, "105", ""))
	b := book.Add(mustOrder(t, domain.KindLimit, domain.SideSell, "110", ""))
	c := book.Add(mustOrder(t, domain.KindLimit, domain.SideSell, "115", ""))

	book.Cancel(b, ts(1))

	open := book.Open()
	if len(open) != 2 || open[0] != a || open[1] != c {
		t.Errorf("Expected open set [%d %d], got %v", a, c, open)
	}
}
