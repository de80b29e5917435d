// Package binance is the boundary layer to the Binance USDT-M futures
// API: the order gateway, the trading-rule source and the mark-price
// stream.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"futures_go/internal/domain"
	"futures_go/internal/infra"
)

// Binance USDT-M Futures API hosts
const (
	BaseURLMainnet = "https://fapi.binance.com"
	BaseURLTestnet = "https://testnet.binancefuture.com"
)

// unknownOrderCode is returned when cancelling an order that is no
// longer open, usually because it already filled.
const unknownOrderCode = -2011

// Client is the Binance futures REST client. It implements both
// domain.Gateway (place/cancel) and domain.RuleSource (exchange info).
type Client struct {
	baseURL    string
	recvWindow int
	httpClient *http.Client
	signer     *Signer
	logger     *slog.Logger
}

// NewClient creates a new Binance API client from configuration. The
// testnet flag switches hosts; an explicit rest_url wins over both.
func NewClient(cfg *infra.Config) *Client {
	baseURL := BaseURLMainnet
	if cfg.API.Binance.Testnet {
		baseURL = BaseURLTestnet
	}
	if cfg.API.Binance.RestURL != "" {
		baseURL = cfg.API.Binance.RestURL
	}

	return &Client{
		baseURL:    baseURL,
		recvWindow: cfg.Trading.RecvWindowMS,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		signer: NewSigner(cfg.API.Binance.APIKey, cfg.API.Binance.APISecret),
		logger: slog.Default().With("module", "binance_client"),
	}
}

// Place submits an order and returns the exchange-assigned ID.
// Quantities and prices go out as exact decimal strings.
func (c *Client) Place(ctx context.Context, order domain.Order) (domain.PlaceResult, error) {
	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("side", string(order.Side))
	params.Set("type", orderType(order.Kind))
	params.Set("quantity", order.Quantity.String())

	if order.HasLimitPrice() {
		params.Set("price", order.LimitPrice.String())
		params.Set("timeInForce", "GTC")
	}
	if order.NeedsTrigger() {
		params.Set("stopPrice", order.TriggerPrice.String())
	}
	if order.Kind == domain.KindStopMarket || order.Kind == domain.KindTakeProfitMarket {
		// Protective closes must never open a position.
		params.Set("reduceOnly", "true")
	}

	var res orderResponse
	if err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/order", "place", params, &res); err != nil {
		return domain.PlaceResult{}, err
	}

	c.logger.Info("Order placed",
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.String("type", orderType(order.Kind)),
		slog.Int64("order_id", res.OrderID),
		slog.String("status", res.Status))
	return domain.PlaceResult{
		OrderID: strconv.FormatInt(res.OrderID, 10),
		Status:  res.Status,
	}, nil
}

// Cancel cancels a live order. An order that already left the book is
// reported as AlreadyFilled, not as an error.
func (c *Client) Cancel(ctx context.Context, symbol, orderID string) (domain.CancelOutcome, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	var res orderResponse
	err := c.doSigned(ctx, http.MethodDelete, "/fapi/v1/order", "cancel", params, &res)
	if err != nil {
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) && gwErr.Code == unknownOrderCode {
			return domain.CancelAlreadyFilled, nil
		}
		return "", err
	}

	c.logger.Info("Order cancelled",
		slog.String("symbol", symbol),
		slog.String("order_id", orderID),
		slog.String("status", res.Status))
	if res.Status == "FILLED" {
		return domain.CancelAlreadyFilled, nil
	}
	return domain.CancelDone, nil
}

// ExchangeInfo fetches the published trading rules for every symbol.
func (c *Client) ExchangeInfo(ctx context.Context) (domain.RuleSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.GatewayError{Op: "exchange_info", Err: err, Retriable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.GatewayError{Op: "exchange_info", Err: err, Retriable: true}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus("exchange_info", resp.StatusCode, body)
	}

	var info exchangeInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse exchange info: %w", err)
	}

	rules, err := toRuleSet(info)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Exchange info fetched", slog.Int("symbols", len(rules)))
	return rules, nil
}

// doSigned sends a signed request with the parameters in the query
// string, as the futures API expects, and decodes the response.
func (c *Client) doSigned(ctx context.Context, method, path, op string, params url.Values, out any) error {
	query := c.signer.SignQuery(params, c.recvWindow)
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return err
	}
	req.Header.Set(c.signer.APIKeyHeader())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err, Retriable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err, Retriable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(op, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", op, err)
	}
	return nil
}

// classifyStatus turns a non-200 response into a gateway error.
// Rate limiting, timeouts and server errors are transient; the rest of
// the 4xx space is permanent.
func classifyStatus(op string, status int, body []byte) *domain.GatewayError {
	var apiErr apiError
	// Best effort; the body may not be JSON at all.
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.Msg
	if msg == "" {
		msg = string(body)
	}
	code := apiErr.Code
	if code == 0 {
		code = status
	}

	transient := status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError

	return &domain.GatewayError{Op: op, Code: code, Msg: msg, Retriable: transient}
}
