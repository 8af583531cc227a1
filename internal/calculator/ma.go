package calculator

import (
	"fmt"

	"SpotSentinel/internal/model"
)

// EMA computes the exponential moving average of prices with smoothing
// factor 2/(period+1), seeded by the first price. It returns false when
// there are fewer than period prices.
func EMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	alpha := 2.0 / float64(period+1)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = alpha*p + (1-alpha)*ema
	}
	return ema, true
}

// ExtractCloses returns the close of every bar, preserving order.
func ExtractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// ExtractField returns one OHLC field of every bar, preserving order.
func ExtractField(bars []model.OHLCV, field string) ([]float64, error) {
	var pick func(model.OHLCV) float64
	switch field {
	case "close", "":
		return ExtractCloses(bars), nil
	case "open":
		pick = func(b model.OHLCV) float64 { return b.Open }
	case "high":
		pick = func(b model.OHLCV) float64 { return b.High }
	case "low":
		pick = func(b model.OHLCV) float64 { return b.Low }
	default:
		return nil, fmt.Errorf("unknown bar field %q", field)
	}
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = pick(b)
	}
	return out, nil
}
