package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"SpotSentinel/internal/model"
)

func (c *Client) Name() string { return "exchange" }

// FetchBars returns up to limit candles for symbol, oldest first.
func (c *Client) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	data, err := c.call(ctx, request{method: http.MethodGet, path: "/market/klines", query: q.Encode()})
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}

	// Binance style rows: [openTime, open, high, low, close, volume, ...]
	var rows [][]json.Number
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	bars := make([]model.OHLCV, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ms, err := row[0].Int64()
		if err != nil {
			continue
		}
		var vals [5]float64
		ok := true
		for i := range vals {
			if vals[i], err = toFloat(row[i+1]); err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue // skip malformed rows
		}
		bars = append(bars, model.OHLCV{
			Time:   time.UnixMilli(ms).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("fetch klines: no data returned")
	}

	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// FetchCurrentPrice returns the last traded price for symbol.
func (c *Client) FetchCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	data, err := c.call(ctx, request{method: http.MethodGet, path: "/market/ticker", query: q.Encode()})
	if err != nil {
		return 0, fmt.Errorf("fetch ticker: %w", err)
	}
	var ticker struct {
		LastPrice json.Number `json:"lastPrice"`
	}
	if err := json.Unmarshal(data, &ticker); err != nil {
		return 0, fmt.Errorf("decode ticker: %w", err)
	}
	price, err := toFloat(ticker.LastPrice)
	if err != nil {
		return 0, fmt.Errorf("decode ticker: %w", err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("fetch ticker: non-positive price %v", price)
	}
	return price, nil
}

func toFloat(n json.Number) (float64, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
