package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"SpotSentinel/internal/model"
	"SpotSentinel/internal/notifier"
)

var (
	// ErrSubmit means the order never reached an acknowledged state.
	// Nothing was logged.
	ErrSubmit = errors.New("order submission failed")
	// ErrLogWrite means the exchange accepted the order but the order log
	// row could not be written. The order is live; the log is behind.
	ErrLogWrite = errors.New("order log write failed")
	// ErrRiskRejected means the risk guard vetoed the order.
	ErrRiskRejected = errors.New("order rejected by risk guard")
)

// Submitter places signed orders.
type Submitter interface {
	PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error)
}

// Log persists acknowledged orders.
type Log interface {
	Append(res *model.OrderResult) error
}

// RiskChecker approves or vetoes an order before it is sent.
type RiskChecker interface {
	Check(ctx context.Context, req model.OrderRequest) error
}

// Options configures a Pipeline.
type Options struct {
	Symbol   string
	Quantity float64
	DryRun   bool
	Risk     RiskChecker
	Notifier notifier.Notifier
	Logger   *logrus.Entry
}

// Pipeline turns a non-Hold decision into at most one logged order.
type Pipeline struct {
	exchange Submitter
	orders   Log
	risk     RiskChecker
	notify   notifier.Notifier
	symbol   string
	quantity float64
	dryRun   bool
	log      *logrus.Entry

	now   func() time.Time
	newID func() string
}

// NewPipeline creates a Pipeline.
func NewPipeline(ex Submitter, orders Log, opts Options) *Pipeline {
	if opts.Notifier == nil {
		opts.Notifier = notifier.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pipeline{
		exchange: ex,
		orders:   orders,
		risk:     opts.Risk,
		notify:   opts.Notifier,
		symbol:   opts.Symbol,
		quantity: opts.Quantity,
		dryRun:   opts.DryRun,
		log:      opts.Logger.WithField("component", "order"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Submit places a LIMIT order at price for a BUY or SELL decision.
//
//   - HOLD returns (nil, nil) without touching the exchange.
//   - A submit failure returns (nil, ErrSubmit) and writes no row.
//   - A log failure returns the result together with ErrLogWrite.
//
// At most one order is placed per call.
func (p *Pipeline) Submit(ctx context.Context, decision model.Decision, price float64) (*model.OrderResult, error) {
	if decision != model.Buy && decision != model.Sell {
		return nil, nil
	}

	req := model.OrderRequest{
		Symbol:        p.symbol,
		Side:          decision,
		Type:          model.OrderTypeLimit,
		Quantity:      p.quantity,
		Price:         price,
		Timestamp:     p.now(),
		ClientOrderID: p.newID(),
	}
	entry := p.log.WithFields(logrus.Fields{
		"side":            req.Side,
		"symbol":          req.Symbol,
		"quantity":        req.Quantity,
		"price":           req.Price,
		"client_order_id": req.ClientOrderID,
	})

	if p.risk != nil {
		if err := p.risk.Check(ctx, req); err != nil {
			entry.WithError(err).Warn("order vetoed")
			return nil, fmt.Errorf("%w: %w", ErrRiskRejected, err)
		}
	}

	if p.dryRun {
		entry.Info("dry run, order not sent")
		return nil, nil
	}

	res, err := p.exchange.PlaceOrder(ctx, req)
	if err != nil {
		entry.WithError(err).Error("order submission failed")
		subject, body := notifier.FormatSubmitFailure(req, err)
		p.alert(ctx, subject, body)
		return nil, fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	entry = entry.WithFields(logrus.Fields{"order_id": res.OrderID, "status": res.Status})

	if err := p.orders.Append(res); err != nil {
		entry.WithError(err).Error("order placed but log write failed")
		subject, body := notifier.FormatLogWriteFailure(res, err)
		p.alert(ctx, subject, body)
		return res, fmt.Errorf("%w: order %s: %w", ErrLogWrite, res.OrderID, err)
	}

	entry.Info("order placed")
	subject, body := notifier.FormatOrderPlaced(res)
	p.alert(ctx, subject, body)
	return res, nil
}

// alert is best effort; failures are logged and dropped.
func (p *Pipeline) alert(ctx context.Context, subject, body string) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := p.notify.Notify(ctx, subject, body); err != nil {
		p.log.WithError(err).WithField("subject", subject).Warn("notification failed")
	}
}
