package collector

import (
	"context"
	"time"

	"SpotSentinel/internal/model"
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchBars(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error)
	FetchCurrentPrice(ctx context.Context, symbol string) (float64, error)
	Name() string
}

// MockFetcher returns controllable fixed data for development and testing.
// Bars keyed by interval take precedence over generated ones.
type MockFetcher struct {
	Price    float64
	Bars     map[string][]model.OHLCV
	PriceErr error
	BarsErr  map[string]error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(_ context.Context, _ string, interval string, limit int) ([]model.OHLCV, error) {
	if err := m.BarsErr[interval]; err != nil {
		return nil, err
	}
	if bars, ok := m.Bars[interval]; ok {
		return bars, nil
	}
	return generateMockBars(m.Price, limit), nil
}

func (m *MockFetcher) FetchCurrentPrice(_ context.Context, _ string) (float64, error) {
	if m.PriceErr != nil {
		return 0, m.PriceErr
	}
	return m.Price, nil
}

func generateMockBars(basePrice float64, count int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	start := time.Now().Add(-time.Duration(count) * time.Minute)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 10,
		}
	}
	return bars
}
