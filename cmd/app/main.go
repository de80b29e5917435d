package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"futures_go/internal/app"
	"futures_go/internal/backtest"
	"futures_go/internal/domain"
	"futures_go/internal/engine"
	"futures_go/internal/execution"
	"futures_go/internal/infra/binance"
	"futures_go/internal/validate"
)

const usage = `Usage: futures_go <command> [flags]

Commands:
  market      Place a market order
  limit       Place a limit order
  stop-limit  Place a stop-limit order
  oco         Place a simulated OCO (one-cancels-other) pair
  twap        Execute a TWAP strategy
  grid        Set up a grid of limit orders
  backtest    Replay a historical CSV feed offline
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	// Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap := app.NewBootstrap()

	var err error
	switch command {
	case "market":
		err = runMarket(ctx, bootstrap, args)
	case "limit":
		err = runLimit(ctx, bootstrap, args)
	case "stop-limit":
		err = runStopLimit(ctx, bootstrap, args)
	case "oco":
		err = runOCO(ctx, bootstrap, args)
	case "twap":
		err = runTWAP(ctx, bootstrap, args)
	case "grid":
		err = runGrid(ctx, bootstrap, args)
	case "backtest":
		err = runBacktest(ctx, bootstrap, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		var comp *domain.CompensationError
		if errors.As(err, &comp) {
			// The one condition that must never pass quietly.
			slog.Error("🚨 MANUAL INTERVENTION REQUIRED 🚨", slog.Any("error", comp))
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", comp)
			os.Exit(3)
		}
		slog.Error("Command failed", slog.String("command", command), slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func addConfigFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "configs/config.yaml", "Path to the configuration file")
}

func parseDecimal(name, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, &domain.ConfigError{Field: name, Err: fmt.Errorf("flag is required")}
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, &domain.ConfigError{Field: name, Err: err}
	}
	return d, nil
}

func parseSide(value string) (domain.Side, error) {
	switch value {
	case "BUY":
		return domain.SideBuy, nil
	case "SELL":
		return domain.SideSell, nil
	}
	return "", &domain.ConfigError{Field: "side", Err: fmt.Errorf("must be BUY or SELL, got %q", value)}
}

// checkSentiment applies the Fear & Greed gate when requested. A fetch
// failure never blocks the order, it only disables the filter.
func checkSentiment(ctx context.Context, b *app.Bootstrap, side domain.Side) bool {
	s, err := b.Sentiment.Fetch(ctx)
	if err != nil {
		slog.Warn("Could not fetch sentiment, proceeding without filter", slog.Any("error", err))
		return true
	}
	slog.Info("Market sentiment",
		slog.String("value", s.Value),
		slog.String("classification", s.Classification))
	if !s.AllowsSide(side) {
		fmt.Printf("Sentiment filter active: aborting %s order, market is %q\n", side, s.Classification)
		return false
	}
	return true
}

func placeAndRecord(ctx context.Context, b *app.Bootstrap, order domain.Order) error {
	res, err := b.Client.Place(ctx, order)
	if err != nil {
		return err
	}
	order.ID = res.OrderID
	if err := b.Storage.RecordOrder(order); err != nil {
		slog.Warn("Failed to record order in history", slog.Any("error", err))
	}
	fmt.Printf("Order placed: id=%s status=%s\n", res.OrderID, res.Status)
	return nil
}

func runMarket(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("market", flag.ExitOnError)
	configPath := addConfigFlag(fs)
	symbol := fs.String("symbol", "", "Trading symbol (e.g. BTCUSDT)")
	side := fs.String("side", "", "Order side: BUY or SELL")
	quantity := fs.String("quantity", "", "Order quantity")
	useSentiment := fs.Bool("use-sentiment-filter", false, "Gate the order on the Fear & Greed index")
	fs.Parse(args)

	if err := b.Initialize(*configPath); err != nil {
		return err
	}

	qty, err := parseDecimal("quantity", *quantity)
	if err != nil {
		return err
	}
	sd, err := parseSide(*side)
	if err != nil {
		return err
	}

	if *useSentiment && !checkSentiment(ctx, b, sd) {
		return nil
	}

	validator, err := b.LoadRules(ctx)
	if err != nil {
		return err
	}
	if _, err := validator.Check(*symbol, qty, nil); err != nil {
		return err
	}

	order, err := domain.NewOrder(*symbol, domain.KindMarket, sd, qty, decimal.Zero, decimal.Zero)
	if err != nil {
		return err
	}
	return placeAndRecord(ctx, b, order)
}

func runLimit(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("limit", flag.ExitOnError)
	configPath := addConfigFlag(fs)
	symbol := fs.String("symbol", "", "Trading symbol")
	side := fs.String("side", "", "Order side: BUY or SELL")
	quantity := fs.String("quantity", "", "Order quantity")
	price := fs.String("price", "", "Limit price")
	useSentiment := fs.Bool("use-sentiment-filter", false, "Gate the order on the Fear & Greed index")
	fs.Parse(args)

	if err := b.Initialize(*configPath); err != nil {
		return err
	}

	qty, err := parseDecimal("quantity", *quantity)
	if err != nil {
		return err
	}
	px, err := parseDecimal("price", *price)
	if err != nil {
		return err
	}
	sd, err := parseSide(*side)
	if err != nil {
		return err
	}

	if *useSentiment && !checkSentiment(ctx, b, sd) {
		return nil
	}

	validator, err := b.LoadRules(ctx)
	if err != nil {
		return err
	}
	if _, err := validator.Check(*symbol, qty, &px); err != nil {
		return err
	}

	order, err := domain.NewOrder(*symbol, domain.KindLimit, sd, qty, px, decimal.Zero)
	if err != nil {
		return err
	}
	return placeAndRecord(ctx, b, order)
}

func runStopLimit(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("stop-limit", flag.ExitOnError)
	configPath := addConfigFlag(fs)
	symbol := fs.String("symbol", "", "Trading symbol")
	side := fs.String("side", "", "Order side: BUY or SELL")
	quantity := fs.String("quantity", "", "Order quantity")
	price := fs.String("price", "", "Limit price for the order")
	stopPrice := fs.String("stop-price", "", "Trigger price for the limit order")
	fs.Parse(args)

	if err := b.Initialize(*configPath); err != nil {
		return err
	}

	qty, err := parseDecimal("quantity", *quantity)
	if err != nil {
		return err
	}
	px, err := parseDecimal("price", *price)
	if err != nil {
		return err
	}
	trigger, err := parseDecimal("stop-price", *stopPrice)
	if err != nil {
		return err
	}
	sd, err := parseSide(*side)
	if err != nil {
		return err
	}

	validator, err := b.LoadRules(ctx)
	if err != nil {
		return err
	}
	if _, err := validator.Check(*symbol, qty, &px); err != nil {
		return err
	}

	order, err := domain.NewOrder(*symbol, domain.KindStopLimit, sd, qty, px, trigger)
	if err != nil {
		return err
	}
	return placeAndRecord(ctx, b, order)
}

func runOCO(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("oco", flag.ExitOnError)
	configPath := addConfigFlag(fs)
	symbol := fs.String("symbol", "", "Trading symbol")
	side := fs.String("side", "", "Side that CLOSES the position (SELL for a long)")
	quantity := fs.String("quantity", "", "Order quantity")
	takeProfit := fs.String("take-profit", "", "Take-profit trigger price")
	stopLoss := fs.String("stop-loss", "", "Stop-loss trigger price")
	watch := fs.Bool("watch", false, "Keep running and mirror the cascade cancel from the mark-price stream")
	fs.Parse(args)

	if err := b.Initialize(*configPath); err != nil {
		return err
	}

	qty, err := parseDecimal("quantity", *quantity)
	if err != nil {
		return err
	}
	tp, err := parseDecimal("take-profit", *takeProfit)
	if err != nil {
		return err
	}
	sl, err := parseDecimal("stop-loss", *stopLoss)
	if err != nil {
		return err
	}
	sd, err := parseSide(*side)
	if err != nil {
		return err
	}

	validator, err := b.LoadRules(ctx)
	if err != nil {
		return err
	}
	if _, err := validator.Check(*symbol, qty, &tp); err != nil {
		return err
	}

	// The take-profit leg rests as a plain limit order; the stop leg is
	// a trigger kind. Same pair shape the backtester replays.
	legA, err := domain.NewOrder(*symbol, domain.KindLimit, sd, qty, tp, decimal.Zero)
	if err != nil {
		return err
	}
	legB, err := domain.NewOrder(*symbol, domain.KindStopMarket, sd, qty, decimal.Zero, sl)
	if err != nil {
		return err
	}

	book := engine.NewBook()
	comp := execution.NewCompensator(b.Client)
	res, err := comp.PlacePair(ctx, book, legA, legB)
	if err != nil {
		return err
	}

	for i := 0; i < book.Len(); i++ {
		if err := b.Storage.RecordOrder(*book.Order(i)); err != nil {
			slog.Warn("Failed to record order in history", slog.Any("error", err))
		}
	}
	fmt.Printf("OCO pair live: take-profit id=%s, stop id=%s\n", res.LegA.OrderID, res.LegB.OrderID)

	if !*watch {
		fmt.Println("NOTE: when one leg fills you must cancel the other (or rerun with -watch).")
		return nil
	}

	ticks := make(chan engine.Tick, 64)
	stream := binance.NewMarkPriceStream(b.Config.API.Binance.WSURL, *symbol, ticks)
	if err := stream.Connect(ctx); err != nil {
		return err
	}
	defer stream.Disconnect()

	monitor := engine.NewMonitor(book, b.Client, ticks)
	return monitor.Run(ctx)
}

func runTWAP(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("twap", flag.ExitOnError)
	configPath := addConfigFlag(fs)
	symbol := fs.String("symbol", "", "Trading symbol")
	side := fs.String("side", "", "Order side: BUY or SELL")
	quantity := fs.String("quantity", "", "Total quantity to trade")
	duration := fs.Int("duration", 0, "Total duration in minutes")
	fs.Parse(args)

	if err := b.Initialize(*configPath); err != nil {
		return err
	}

	qty, err := parseDecimal("quantity", *quantity)
	if err != nil {
		return err
	}
	sd, err := parseSide(*side)
	if err != nil {
		return err
	}

	rules, err := b.Client.ExchangeInfo(ctx)
	if err != nil {
		return err
	}
	rule, err := rules.Rule(*symbol)
	if err != nil {
		return err
	}
	validator := validate.New(rules)
	if _, err := validator.Check(*symbol, qty, nil); err != nil {
		return err
	}

	twap := execution.NewTWAP(b.Client, validator)
	return twap.Execute(ctx, rule, *symbol, sd, qty, time.Duration(*duration)*time.Minute)
}

func runGrid(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("grid", flag.ExitOnError)
	configPath := addConfigFlag(fs)
	symbol := fs.String("symbol", "", "Trading symbol")
	rangeTop := fs.String("range-top", "", "Upper price of the grid range")
	rangeBottom := fs.String("range-bottom", "", "Lower price of the grid range")
	grids := fs.Int("grids", 0, "Number of grid lines")
	quantity := fs.String("quantity", "", "Quantity per grid line")
	current := fs.String("current-price", "", "Current mark price used to split buy/sell levels")
	fs.Parse(args)

	if err := b.Initialize(*configPath); err != nil {
		return err
	}

	top, err := parseDecimal("range-top", *rangeTop)
	if err != nil {
		return err
	}
	bottom, err := parseDecimal("range-bottom", *rangeBottom)
	if err != nil {
		return err
	}
	qty, err := parseDecimal("quantity", *quantity)
	if err != nil {
		return err
	}
	cur, err := parseDecimal("current-price", *current)
	if err != nil {
		return err
	}

	rules, err := b.Client.ExchangeInfo(ctx)
	if err != nil {
		return err
	}
	rule, err := rules.Rule(*symbol)
	if err != nil {
		return err
	}

	levels, err := execution.Levels(rule, bottom, top, cur, *grids)
	if err != nil {
		return err
	}

	grid := execution.NewGrid(b.Client)
	buys, sells, err := grid.Place(ctx, rule, *symbol, levels, qty)
	fmt.Printf("Grid placed: %d buys, %d sells\n", buys, sells)
	return err
}

func runBacktest(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	configPath := addConfigFlag(fs)
	csvPath := fs.String("csv", "", "Historical feed CSV (defaults to the configured path)")
	cash := fs.String("cash", "10000", "Initial cash balance")
	fs.Parse(args)

	if err := b.Initialize(*configPath); err != nil {
		return err
	}

	path := *csvPath
	if path == "" {
		path = b.Config.Backtest.CSVPath
	}
	initialCash, err := parseDecimal("cash", *cash)
	if err != nil {
		return err
	}

	ticks, err := backtest.LoadTicks(path)
	if err != nil {
		return err
	}
	if len(ticks) == 0 {
		return &domain.ConfigError{Field: "feed", Err: fmt.Errorf("feed %q holds no ticks", path)}
	}

	// Enter one unit at the first price and protect it with a
	// +5% / -2% OCO pair.
	one := decimal.NewFromInt(1)
	entry := ticks[0].Price
	tp := entry.Mul(decimal.NewFromFloat(1.05))
	sl := entry.Mul(decimal.NewFromFloat(0.98))

	replayer := backtest.NewReplayer(initialCash)
	replayer.SeedPosition(one, entry)
	if err := replayer.PlaceOCO(one, tp, sl); err != nil {
		return err
	}

	report := replayer.Run(ticks)

	for _, fill := range report.Trades {
		if err := b.Storage.RecordFill("backtest", "", fill.Side, fill.Price, fill.Qty, fill.Ts); err != nil {
			slog.Warn("Failed to record backtest fill", slog.Any("error", err))
		}
	}

	fmt.Println("--- Backtest Results ---")
	fmt.Printf("Final Portfolio Value: $%s\n", report.FinalValue.StringFixed(2))
	fmt.Printf("Total PnL:             $%s (%s%%)\n", report.PnL.StringFixed(2), report.PnLPct.StringFixed(2))
	fmt.Printf("Trades Filled:         %d\n", len(report.Trades))
	fmt.Println("------------------------")
	return nil
}
