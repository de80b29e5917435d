package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
	"futures_go/internal/infra"
)

func testClient(serverURL string) *Client {
	cfg := &infra.Config{}
	cfg.API.Binance.RestURL = serverURL
	cfg.API.Binance.APIKey = "test-key"
	cfg.API.Binance.APISecret = "test-secret"
	cfg.Trading.RecvWindowMS = 5000
	return NewClient(cfg)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPlace_SignedRequestAndMapping(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/fapi/v1/order" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-MBX-APIKEY") != "test-key" {
			t.Errorf("API key header missing, got %q", r.Header.Get("X-MBX-APIKEY"))
		}
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"orderId": 283194212, "clientOrderId": "abc", "status": "NEW"}`))
	}))
	defer server.Close()

	order, err := domain.NewOrder("BTCUSDT", domain.KindStopLimit, domain.SideSell, d("0.5"), d("98.5"), d("98.5"))
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	res, err := testClient(server.URL).Place(context.Background(), order)
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if res.OrderID != "283194212" || res.Status != "NEW" {
		t.Errorf("Result not mapped: %+v", res)
	}

	expect := map[string]string{
		"symbol":      "BTCUSDT",
		"side":        "SELL",
		"type":        "STOP", // the futures API name for stop-limit
		"quantity":    "0.5",
		"price":       "98.5",
		"stopPrice":   "98.5",
		"timeInForce": "GTC",
	}
	for k, want := range expect {
		if got := gotQuery[k]; len(got) != 1 || got[0] != want {
			t.Errorf("Query %s = %v, want %q", k, got, want)
		}
	}
	if len(gotQuery["signature"]) != 1 {
		t.Error("Request not signed")
	}
}

func TestPlace_ProtectiveKindsAreReduceOnly(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"orderId": 1, "status": "NEW"}`))
	}))
	defer server.Close()

	order, _ := domain.NewOrder("BTCUSDT", domain.KindStopMarket, domain.SideSell, d("0.5"), decimal.Zero, d("98"))
	if _, err := testClient(server.URL).Place(context.Background(), order); err != nil {
		t.Fatalf("Place failed: %v", err)
	}

	if got := gotQuery["reduceOnly"]; len(got) != 1 || got[0] != "true" {
		t.Errorf("Stop-market must be reduceOnly, got %v", got)
	}
	if len(gotQuery["price"]) != 0 {
		t.Error("Market kinds must not send a price")
	}
}

func TestCancel_UnknownOrderMeansAlreadyFilled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": -2011, "msg": "Unknown order sent."}`))
	}))
	defer server.Close()

	outcome, err := testClient(server.URL).Cancel(context.Background(), "BTCUSDT", "42")
	if err != nil {
		t.Fatalf("Unknown order must not be an error, got %v", err)
	}
	if outcome != domain.CancelAlreadyFilled {
		t.Errorf("Expected ALREADY_FILLED, got %s", outcome)
	}
}

func TestCancel_FilledStatusMapsToAlreadyFilled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orderId": 42, "status": "FILLED"}`))
	}))
	defer server.Close()

	outcome, err := testClient(server.URL).Cancel(context.Background(), "BTCUSDT", "42")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if outcome != domain.CancelAlreadyFilled {
		t.Errorf("Expected ALREADY_FILLED, got %s", outcome)
	}
}

func TestCancel_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Cancel must DELETE, got %s", r.Method)
		}
		w.Write([]byte(`{"orderId": 42, "status": "CANCELED"}`))
	}))
	defer server.Close()

	outcome, err := testClient(server.URL).Cancel(context.Background(), "BTCUSDT", "42")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if outcome != domain.CancelDone {
		t.Errorf("Expected CANCELLED, got %s", outcome)
	}
}

func TestPlace_ErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		retriable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}

	for _, c := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
			w.Write([]byte(`{"code": -1000, "msg": "error"}`))
		}))

		order, _ := domain.NewOrder("BTCUSDT", domain.KindMarket, domain.SideBuy, d("1"), decimal.Zero, decimal.Zero)
		_, err := testClient(server.URL).Place(context.Background(), order)
		server.Close()

		var gwErr *domain.GatewayError
		if !errors.As(err, &gwErr) {
			t.Fatalf("Status %d: expected GatewayError, got %v", c.status, err)
		}
		if gwErr.Retriable != c.retriable {
			t.Errorf("Status %d: retriable = %v, want %v", c.status, gwErr.Retriable, c.retriable)
		}
	}
}

func TestExchangeInfo_ParsesFilters(t *testing.T) {
	payload := `{
		"symbols": [
			{
				"symbol": "BTCUSDT",
				"status": "TRADING",
				"filters": [
					{"filterType": "PRICE_FILTER", "minPrice": "556.80", "maxPrice": "4529764", "tickSize": "0.10"},
					{"filterType": "LOT_SIZE", "minQty": "0.001", "maxQty": "1000", "stepSize": "0.001"},
					{"filterType": "MARKET_LOT_SIZE", "minQty": "0.001", "maxQty": "120", "stepSize": "0.001"}
				]
			}
		]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/exchangeInfo" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(payload))
	}))
	defer server.Close()

	rules, err := testClient(server.URL).ExchangeInfo(context.Background())
	if err != nil {
		t.Fatalf("ExchangeInfo failed: %v", err)
	}

	rule, err := rules.Rule("BTCUSDT")
	if err != nil {
		t.Fatalf("Rule lookup failed: %v", err)
	}
	if !rule.MinQty.Equal(d("0.001")) || !rule.StepQty.Equal(d("0.001")) {
		t.Errorf("LOT_SIZE not parsed: %+v", rule)
	}
	if !rule.TickSize.Equal(d("0.10")) || !rule.MinPrice.Equal(d("556.80")) {
		t.Errorf("PRICE_FILTER not parsed: %+v", rule)
	}
	// Exactness check: the decimal string round-trips unchanged.
	if rule.TickSize.String() != "0.10" {
		t.Errorf("Tick size lost precision: %s", rule.TickSize)
	}
}

func TestExchangeInfo_BadDecimal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols":[{"symbol":"X","filters":[{"filterType":"LOT_SIZE","minQty":"oops","maxQty":"1","stepSize":"1"}]}]}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).ExchangeInfo(context.Background())
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Malformed filter decimal should be a ConfigError, got %v", err)
	}
}
