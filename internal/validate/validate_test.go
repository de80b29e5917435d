package validate

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func btcRule() domain.TradingRule {
	return domain.TradingRule{
		Symbol:   "BTCUSDT",
		MinQty:   d("0.001"),
		MaxQty:   d("1000"),
		StepQty:  d("0.001"),
		MinPrice: d("0.01"),
		MaxPrice: d("1000000"),
		TickSize: d("0.01"),
	}
}

func testRules() domain.RuleSet {
	return domain.RuleSet{"BTCUSDT": btcRule()}
}

func TestCheckQuantity_StepMismatchSuggestsNearestValid(t *testing.T) {
	// 0.0015 clears the minimum but sits between step multiples.
	err := CheckQuantity(btcRule(), d("0.0015"))

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if verr.Reason != domain.ReasonQuantityStep {
		t.Errorf("Expected step mismatch, got %s", verr.Reason)
	}
	if !verr.SuggestedQty.Equal(d("0.001")) {
		t.Errorf("Expected suggested qty 0.001, got %s", verr.SuggestedQty)
	}
}

func TestCheckQuantity_Bounds(t *testing.T) {
	rule := btcRule()

	err := CheckQuantity(rule, d("0.0005"))
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Reason != domain.ReasonQuantityTooSmall {
		t.Errorf("Expected QUANTITY_TOO_SMALL, got %v", err)
	}

	err = CheckQuantity(rule, d("1000.001"))
	if !errors.As(err, &verr) || verr.Reason != domain.ReasonQuantityTooLarge {
		t.Errorf("Expected QUANTITY_TOO_LARGE, got %v", err)
	}

	if err := CheckQuantity(rule, d("0.001")); err != nil {
		t.Errorf("Exact minimum should pass, got %v", err)
	}
	if err := CheckQuantity(rule, d("1000")); err != nil {
		t.Errorf("Exact maximum should pass, got %v", err)
	}
}

// The suggested quantity must itself pass validation, and must be the
// largest such value at or below the rejected request.
func TestCheckQuantity_SuggestionIsValid(t *testing.T) {
	rule := domain.TradingRule{
		Symbol:  "ETHUSDT",
		MinQty:  d("0.004"),
		MaxQty:  d("100"),
		StepQty: d("0.003"),
	}

	for _, raw := range []string{"0.0055", "0.0095", "0.0129", "99.9999"} {
		err := CheckQuantity(rule, d(raw))
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected rejection, got %v", raw, err)
		}
		if err := CheckQuantity(rule, verr.SuggestedQty); err != nil {
			t.Errorf("%s: suggested qty %s does not validate: %v", raw, verr.SuggestedQty, err)
		}
		if verr.SuggestedQty.GreaterThan(d(raw)) {
			t.Errorf("%s: suggested qty %s exceeds the request", raw, verr.SuggestedQty)
		}
		if verr.SuggestedQty.Add(rule.StepQty).LessThanOrEqual(d(raw)) {
			t.Errorf("%s: suggested qty %s is not the largest valid value below the request", raw, verr.SuggestedQty)
		}
	}
}

func TestCheckQuantity_ZeroStepSkipsModulo(t *testing.T) {
	rule := btcRule()
	rule.StepQty = decimal.Zero

	if err := CheckQuantity(rule, d("0.0015")); err != nil {
		t.Errorf("Zero step should disable the step check, got %v", err)
	}
}

func TestCheckPrice_ZeroMaxMeansUnbounded(t *testing.T) {
	rule := btcRule()
	rule.MaxPrice = decimal.Zero

	if err := CheckPrice(rule, d("99999999.99")); err != nil {
		t.Errorf("Zero maxPrice should be unbounded above, got %v", err)
	}
}

func TestCheckPrice_TickMismatch(t *testing.T) {
	err := CheckPrice(btcRule(), d("100.005"))

	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Reason != domain.ReasonPriceTick {
		t.Errorf("Expected PRICE_TICK_MISMATCH, got %v", err)
	}

	if err := CheckPrice(btcRule(), d("100.01")); err != nil {
		t.Errorf("On-tick price should pass, got %v", err)
	}
}

func TestCheck_UnknownSymbol(t *testing.T) {
	v := New(testRules())

	_, err := v.Check("DOGEUSDT", d("1"), nil)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Reason != domain.ReasonSymbolUnknown {
		t.Errorf("Expected SYMBOL_UNKNOWN, got %v", err)
	}
}

func TestCheck_QuantityAndPrice(t *testing.T) {
	v := New(testRules())

	price := d("50000.00")
	p, err := v.Check("BTCUSDT", d("0.002"), &price)
	if err != nil {
		t.Fatalf("Valid params rejected: %v", err)
	}
	if !p.Quantity.Equal(d("0.002")) || !p.Price.Equal(price) {
		t.Errorf("Params not echoed back: %+v", p)
	}

	// Price is only checked when supplied.
	if _, err := v.Check("BTCUSDT", d("0.002"), nil); err != nil {
		t.Errorf("Nil price should skip the price filter, got %v", err)
	}
}

func TestCheckOrder_LimitKindsCheckPrice(t *testing.T) {
	v := New(testRules())

	limit, _ := domain.NewOrder("BTCUSDT", domain.KindLimit, domain.SideBuy, d("0.002"), d("100.005"), decimal.Zero)
	if _, err := v.CheckOrder(limit); err == nil {
		t.Error("Off-tick limit price should be rejected")
	}

	market, _ := domain.NewOrder("BTCUSDT", domain.KindMarket, domain.SideBuy, d("0.002"), decimal.Zero, decimal.Zero)
	if _, err := v.CheckOrder(market); err != nil {
		t.Errorf("Market order has no price to check, got %v", err)
	}
}

func TestSnapQuantity(t *testing.T) {
	rule := btcRule()

	if got := SnapQuantity(rule, d("0.0015")); !got.Equal(d("0.001")) {
		t.Errorf("Expected snap to 0.001, got %s", got)
	}
	if got := SnapQuantity(rule, d("0.0005")); !got.IsZero() {
		t.Errorf("Below minQty should snap to zero, got %s", got)
	}
	if got := SnapQuantity(rule, d("0.003")); !got.Equal(d("0.003")) {
		t.Errorf("Valid quantity should be unchanged, got %s", got)
	}
}
