package binance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
)

// exchangeInfoResponse is the subset of /fapi/v1/exchangeInfo we need.
type exchangeInfoResponse struct {
	Symbols []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol  string       `json:"symbol"`
	Status  string       `json:"status"`
	Filters []filterInfo `json:"filters"`
}

// filterInfo carries the union of the filter payloads; which fields are
// set depends on FilterType. All bounds arrive as decimal strings.
type filterInfo struct {
	FilterType string `json:"filterType"`

	// LOT_SIZE
	MinQty   string `json:"minQty"`
	MaxQty   string `json:"maxQty"`
	StepSize string `json:"stepSize"`

	// PRICE_FILTER
	MinPrice string `json:"minPrice"`
	MaxPrice string `json:"maxPrice"`
	TickSize string `json:"tickSize"`
}

// orderResponse is the accepted-order payload from /fapi/v1/order.
type orderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
}

// apiError is the exchange's business error payload.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// toRuleSet converts the exchange info payload into domain trading
// rules, keeping the decimal strings exact.
func toRuleSet(info exchangeInfoResponse) (domain.RuleSet, error) {
	rules := make(domain.RuleSet, len(info.Symbols))
	for _, s := range info.Symbols {
		rule := domain.TradingRule{Symbol: s.Symbol}
		for _, f := range s.Filters {
			var err error
			switch f.FilterType {
			case "LOT_SIZE":
				if rule.MinQty, err = parseDec(s.Symbol, "minQty", f.MinQty); err != nil {
					return nil, err
				}
				if rule.MaxQty, err = parseDec(s.Symbol, "maxQty", f.MaxQty); err != nil {
					return nil, err
				}
				if rule.StepQty, err = parseDec(s.Symbol, "stepSize", f.StepSize); err != nil {
					return nil, err
				}
			case "PRICE_FILTER":
				if rule.MinPrice, err = parseDec(s.Symbol, "minPrice", f.MinPrice); err != nil {
					return nil, err
				}
				if rule.MaxPrice, err = parseDec(s.Symbol, "maxPrice", f.MaxPrice); err != nil {
					return nil, err
				}
				if rule.TickSize, err = parseDec(s.Symbol, "tickSize", f.TickSize); err != nil {
					return nil, err
				}
			}
		}
		rules[s.Symbol] = rule
	}
	return rules, nil
}

func parseDec(symbol, field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &domain.ConfigError{
			Field: "exchange_info",
			Err:   fmt.Errorf("%s %s: %w", symbol, field, err),
		}
	}
	return d, nil
}

// orderType maps a domain kind to the futures API order type.
func orderType(kind domain.Kind) string {
	switch kind {
	case domain.KindMarket:
		return "MARKET"
	case domain.KindLimit:
		return "LIMIT"
	case domain.KindStopLimit:
		// The futures API calls a stop-limit order "STOP".
		return "STOP"
	case domain.KindStopMarket:
		return "STOP_MARKET"
	case domain.KindTakeProfitMarket:
		return "TAKE_PROFIT_MARKET"
	}
	return string(kind)
}
