// Package backtest replays historical price feeds through the order
// lifecycle engine to evaluate order behavior offline, with no gateway
// involved.
package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
	"futures_go/internal/engine"
)

// tsLayout matches the export format of the historical trade dumps.
const tsLayout = "02-01-2006 15:04"

// requiredColumns are the feed columns replay cannot run without.
var requiredColumns = []string{
	"Timestamp IST",
	"Coin",
	"Side",
	"Execution Price",
	"Size Tokens",
}

// LoadTicks reads a historical CSV feed, validates it and returns the
// ticks sorted by timestamp. Any structural problem (missing file,
// missing column, malformed row) fails here, before replay starts,
// never mid-replay.
func LoadTicks(path string) ([]engine.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ConfigError{Field: "feed", Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, &domain.ConfigError{Field: "feed", Err: fmt.Errorf("missing header row: %w", err)}
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, &domain.ConfigError{
				Field: "feed",
				Err:   fmt.Errorf("%w: %q", domain.ErrFeedColumnMissing, name),
			}
		}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &domain.ConfigError{Field: "feed", Err: err}
	}

	ticks := make([]engine.Tick, 0, len(rows))
	for n, row := range rows {
		ts, err := time.Parse(tsLayout, row[cols["Timestamp IST"]])
		if err != nil {
			return nil, &domain.ConfigError{
				Field: "feed",
				Err:   fmt.Errorf("row %d: bad timestamp: %w", n+2, err),
			}
		}
		price, err := decimal.NewFromString(row[cols["Execution Price"]])
		if err != nil {
			return nil, &domain.ConfigError{
				Field: "feed",
				Err:   fmt.Errorf("row %d: bad price: %w", n+2, err),
			}
		}
		ticks = append(ticks, engine.Tick{Ts: ts, Price: price})
	}

	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].Ts.Before(ticks[j].Ts)
	})
	return ticks, nil
}
