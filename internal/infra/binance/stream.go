package binance

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
	"futures_go/internal/engine"
	"futures_go/internal/infra"
)

const (
	StreamURLMainnet = "wss://fstream.binance.com/ws"

	maxRetries  = 10
	readTimeout = 90 * time.Second
)

// markPriceEvent is the markPrice stream payload.
type markPriceEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"` // Unix milliseconds
	Symbol    string `json:"s"`
	MarkPrice string `json:"p"`
}

// MarkPriceStream subscribes to a symbol's mark-price feed and emits
// ticks for the lifecycle monitor. Reconnects with backoff until the
// context is cancelled.
type MarkPriceStream struct {
	wsURL  string
	symbol string
	out    chan<- engine.Tick

	conn      *websocket.Conn
	mu        sync.RWMutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewMarkPriceStream creates a stream worker for one symbol. An empty
// wsURL selects the mainnet stream host.
func NewMarkPriceStream(wsURL, symbol string, out chan<- engine.Tick) *MarkPriceStream {
	if wsURL == "" {
		wsURL = StreamURLMainnet
	}
	return &MarkPriceStream{
		wsURL:  wsURL,
		symbol: symbol,
		out:    out,
	}
}

// Connect starts the connection loop in the background.
func (w *MarkPriceStream) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *MarkPriceStream) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Mark price stream connection failed",
				slog.String("symbol", w.symbol),
				slog.Any("error", err),
				slog.Int("retry", retryCount))
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0 // Infinite retry loop for monitoring
			}
			delay := infra.CalculateBackoff(retryCount)
			time.Sleep(delay)
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *MarkPriceStream) connect(ctx context.Context) error {
	// Per-symbol streams subscribe through the URL path.
	streamURL := w.wsURL + "/" + strings.ToLower(w.symbol) + "@markPrice@1s"

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return domain.NewNetworkError("connect", err)
	}

	// The server pings every few minutes; answering keeps us alive.
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	slog.Info("Mark price stream connected", slog.String("symbol", w.symbol))
	return nil
}

func (w *MarkPriceStream) readLoop(ctx context.Context) {
	defer w.closeConnection()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			slog.Warn("Mark price stream read failed, reconnecting",
				slog.String("symbol", w.symbol), slog.Any("error", err))
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(readTimeout))

		var ev markPriceEvent
		if err := json.Unmarshal(msg, &ev); err != nil || ev.EventType != "markPriceUpdate" {
			continue
		}
		price, err := decimal.NewFromString(ev.MarkPrice)
		if err != nil {
			slog.Warn("Malformed mark price", slog.String("raw", ev.MarkPrice))
			continue
		}

		tick := engine.Tick{
			Ts:    time.UnixMilli(ev.EventTime),
			Price: price,
		}
		select {
		case w.out <- tick:
		case <-ctx.Done():
			return
		}
	}
}

func (w *MarkPriceStream) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// IsConnected checks the connection state (external reads).
func (w *MarkPriceStream) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Disconnect stops the worker and closes the connection.
func (w *MarkPriceStream) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.closeConnection()
}
