package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Snapshot is everything one cycle saw before deciding.
type Snapshot struct {
	Symbol       string
	CurrentPrice float64
	Indicators   Indicators
}

// Balance is the free/locked amount of one asset.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}
