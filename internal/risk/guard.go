package risk

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"SpotSentinel/internal/model"
)

// Rejection reasons.
const (
	ReasonBalanceUnavailable = "balance_unavailable"
	ReasonQuoteExceeded      = "quote_exposure_exceeded"
	ReasonBaseExceeded       = "base_exposure_exceeded"
	ReasonInvalidOrder       = "invalid_order"
)

// Rejection is returned when an order would risk more than allowed.
type Rejection struct {
	Reason   string
	Required float64
	Allowed  float64
	Asset    string
	Cause    error
}

func (r *Rejection) Error() string {
	if r.Cause != nil {
		return fmt.Sprintf("%s: %v", r.Reason, r.Cause)
	}
	return fmt.Sprintf("%s: %s needs %g, allowed %g", r.Reason, r.Asset, r.Required, r.Allowed)
}

func (r *Rejection) Unwrap() error { return r.Cause }

// BalanceSource reports account balances.
type BalanceSource interface {
	FetchBalances(ctx context.Context) ([]model.Balance, error)
}

// Guard caps each order at MaxPercent of the free balance it spends.
// A BUY spends quote asset (qty*price), a SELL spends base asset (qty).
type Guard struct {
	Balances   BalanceSource
	BaseAsset  string
	QuoteAsset string
	MaxPercent float64

	log *logrus.Entry
}

// NewGuard returns nil when maxPercent is zero, which disables the check.
func NewGuard(src BalanceSource, baseAsset, quoteAsset string, maxPercent float64, logger *logrus.Entry) *Guard {
	if maxPercent <= 0 {
		return nil
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Guard{
		Balances:   src,
		BaseAsset:  baseAsset,
		QuoteAsset: quoteAsset,
		MaxPercent: maxPercent,
		log:        logger.WithField("component", "risk"),
	}
}

// Check approves req or returns a *Rejection. A nil Guard approves everything.
func (g *Guard) Check(ctx context.Context, req model.OrderRequest) error {
	if g == nil {
		return nil
	}
	if req.Quantity <= 0 || req.Price <= 0 {
		return g.reject(&Rejection{Reason: ReasonInvalidOrder, Cause: fmt.Errorf("quantity %g price %g", req.Quantity, req.Price)})
	}

	balances, err := g.Balances.FetchBalances(ctx)
	if err != nil {
		return g.reject(&Rejection{Reason: ReasonBalanceUnavailable, Cause: err})
	}

	var asset, reason string
	var required float64
	switch req.Side {
	case model.Buy:
		asset, reason, required = g.QuoteAsset, ReasonQuoteExceeded, req.Quantity*req.Price
	case model.Sell:
		asset, reason, required = g.BaseAsset, ReasonBaseExceeded, req.Quantity
	default:
		return g.reject(&Rejection{Reason: ReasonInvalidOrder, Cause: fmt.Errorf("side %q", req.Side)})
	}

	allowed := free(balances, asset) * g.MaxPercent / 100
	if required > allowed {
		return g.reject(&Rejection{Reason: reason, Asset: asset, Required: required, Allowed: allowed})
	}

	g.log.WithFields(logrus.Fields{
		"side":     req.Side,
		"asset":    asset,
		"required": required,
		"allowed":  allowed,
	}).Debug("risk approved")
	return nil
}

func (g *Guard) reject(r *Rejection) error {
	g.log.WithField("reason", r.Reason).WithError(r).Warn("risk rejected")
	return r
}

func free(balances []model.Balance, asset string) float64 {
	for _, b := range balances {
		if b.Asset == asset {
			return b.Free
		}
	}
	return 0
}
