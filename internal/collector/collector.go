package collector

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"SpotSentinel/internal/calculator"
	"SpotSentinel/internal/model"
)

// Collector orchestrates data fetching and indicator computation.
type Collector struct {
	Fetcher       Fetcher
	Symbol        string
	KlineInterval string
	KlineLimit    int
	EMAPeriod     int
	RSIPeriod     int
	RefInterval   string // candle interval of the reference period, e.g. "1d"
	RefField      string // close, open, high or low

	log *logrus.Entry
}

// Options mirrors the trading section of the config.
type Options struct {
	Symbol        string
	KlineInterval string
	KlineLimit    int
	EMAPeriod     int
	RSIPeriod     int
	RefInterval   string
	RefField      string
	Logger        *logrus.Entry
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, opts Options) *Collector {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Collector{
		Fetcher:       fetcher,
		Symbol:        opts.Symbol,
		KlineInterval: opts.KlineInterval,
		KlineLimit:    opts.KlineLimit,
		EMAPeriod:     opts.EMAPeriod,
		RSIPeriod:     opts.RSIPeriod,
		RefInterval:   opts.RefInterval,
		RefField:      opts.RefField,
		log:           opts.Logger.WithField("component", "collector"),
	}
}

// Collect fetches market data and computes all indicators.
// Price and kline failures are returned; the cycle has nothing to act on.
// A missing reference only leaves Indicators.Reference nil.
func (c *Collector) Collect(ctx context.Context) (*model.Snapshot, error) {
	bars, err := c.Fetcher.FetchBars(ctx, c.Symbol, c.KlineInterval, c.KlineLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	price, err := c.Fetcher.FetchCurrentPrice(ctx, c.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch current price: %w", err)
	}

	closes := calculator.ExtractCloses(bars)
	snap := &model.Snapshot{
		Symbol:       c.Symbol,
		CurrentPrice: price,
	}

	snap.Indicators.EMA = model.Float(calculator.EMA(closes, c.EMAPeriod))
	if snap.Indicators.EMA == nil {
		c.log.WithFields(logrus.Fields{"bars": len(closes), "period": c.EMAPeriod}).Warn("not enough bars for EMA")
	}

	snap.Indicators.RSI = model.Float(calculator.RSI(closes, c.RSIPeriod))
	if snap.Indicators.RSI == nil {
		c.log.WithFields(logrus.Fields{"bars": len(closes), "period": c.RSIPeriod}).Warn("not enough bars for RSI")
	}

	if ref, err := c.reference(ctx); err != nil {
		c.log.WithError(err).Warn("reference price unavailable")
	} else {
		snap.Indicators.Reference = &ref
	}

	return snap, nil
}

// reference returns the chosen field of the previous reference-interval candle.
func (c *Collector) reference(ctx context.Context) (float64, error) {
	bars, err := c.Fetcher.FetchBars(ctx, c.Symbol, c.RefInterval, 2)
	if err != nil {
		return 0, fmt.Errorf("fetch %s klines: %w", c.RefInterval, err)
	}
	values, err := calculator.ExtractField(bars, c.RefField)
	if err != nil {
		return 0, err
	}
	ref, ok := calculator.ReferencePrice(values)
	if !ok {
		return 0, fmt.Errorf("need 2 %s candles, got %d", c.RefInterval, len(values))
	}
	return ref, nil
}
