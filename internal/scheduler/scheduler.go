package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"SpotSentinel/internal/model"
	"SpotSentinel/internal/order"
	"SpotSentinel/internal/recorder"
	"SpotSentinel/internal/strategy"
)

// Cycle outcomes stored in the journal.
const (
	OutcomeNone         = "none"
	OutcomePlaced       = "placed"
	OutcomeDryRun       = "dry_run"
	OutcomeSkipped      = "skipped"
	OutcomeRiskRejected = "risk_rejected"
	OutcomeSubmitFailed = "submit_failed"
	OutcomeLogFailed    = "log_failed"
	OutcomePanic        = "panic"
)

// Collector produces the market snapshot for one cycle.
type Collector interface {
	Collect(ctx context.Context) (*model.Snapshot, error)
}

// Submitter turns a decision into at most one order.
type Submitter interface {
	Submit(ctx context.Context, decision model.Decision, price float64) (*model.OrderResult, error)
}

// Options configures a Scheduler.
type Options struct {
	Symbol   string
	Schedule cron.Schedule
	Params   strategy.Params
	Recorder recorder.Recorder
	Logger   *logrus.Entry
}

// Scheduler runs the trading cycle sequentially: cycle, wait, cycle.
type Scheduler struct {
	collector Collector
	pipeline  Submitter
	schedule  cron.Schedule
	params    strategy.Params
	recorder  recorder.Recorder
	symbol    string
	log       *logrus.Entry

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a Scheduler. Missing collaborators are a fatal
// startup error.
func NewScheduler(col Collector, pipe Submitter, opts Options) (*Scheduler, error) {
	switch {
	case col == nil:
		return nil, &StageError{Stage: StageStartup, Disposition: Fatal, Err: errors.New("collector is required")}
	case pipe == nil:
		return nil, &StageError{Stage: StageStartup, Disposition: Fatal, Err: errors.New("order pipeline is required")}
	case opts.Schedule == nil:
		return nil, &StageError{Stage: StageStartup, Disposition: Fatal, Err: errors.New("schedule is required")}
	}
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		collector: col,
		pipeline:  pipe,
		schedule:  opts.Schedule,
		params:    opts.Params,
		recorder:  opts.Recorder,
		symbol:    opts.Symbol,
		log:       opts.Logger.WithField("component", "scheduler"),
		now:       time.Now,
		wait:      sleep,
	}, nil
}

// ParseSchedule returns cron.Every(interval), or the parsed expression when
// expr is set. Expressions accept an optional seconds field and descriptors
// such as "@every 30s".
func ParseSchedule(interval time.Duration, expr string) (cron.Schedule, error) {
	if expr != "" {
		parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		sched, err := parser.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("parse cron %q: %w", expr, err)
		}
		return sched, nil
	}
	if interval <= 0 {
		return nil, fmt.Errorf("check interval must be positive, got %s", interval)
	}
	return cron.Every(interval), nil
}

// Run executes cycles until ctx is cancelled. Cancellation is honored
// between cycles and interrupts the wait; it never aborts a running cycle.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started")
	for {
		if ctx.Err() != nil {
			break
		}
		s.RunOnce(ctx)

		if err := s.wait(ctx, s.delay()); err != nil {
			break
		}
	}
	s.log.Info("scheduler stopped")
}

// RunOnce runs a single cycle and returns its journal record. Panics are
// recovered here and reported in the record.
func (s *Scheduler) RunOnce(parent context.Context) (rec *recorder.CycleRecord) {
	ctx := context.WithoutCancel(parent)
	start := s.now()
	rec = &recorder.CycleRecord{Time: start.UTC(), Symbol: s.symbol, Outcome: OutcomeNone}

	defer func() {
		if r := recover(); r != nil {
			rec.Outcome = OutcomePanic
			setError(rec, &StageError{Stage: StageCycle, Disposition: Skip, Err: fmt.Errorf("panic: %v", r)})
			s.log.WithFields(logrus.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("cycle panicked")
		}
		rec.Duration = s.now().Sub(start)
		s.summarize(rec)
		if err := s.recorder.RecordCycle(rec); err != nil {
			s.log.WithError(err).Error("record cycle")
		}
	}()

	s.cycle(ctx, rec)
	return rec
}

func (s *Scheduler) cycle(ctx context.Context, rec *recorder.CycleRecord) {
	snap, err := s.collector.Collect(ctx)
	if err != nil {
		rec.Outcome = OutcomeSkipped
		setError(rec, &StageError{Stage: StageFetch, Disposition: Skip, Err: err})
		return
	}
	rec.Price = snap.CurrentPrice
	rec.Indicators = snap.Indicators

	sig := strategy.Decide(snap.CurrentPrice, snap.Indicators, s.params)
	rec.Decision = sig.Decision
	rec.Reason = sig.Reason

	res, err := s.pipeline.Submit(ctx, sig.Decision, snap.CurrentPrice)
	switch {
	case errors.Is(err, order.ErrRiskRejected):
		rec.Outcome = OutcomeRiskRejected
		setError(rec, &StageError{Stage: StageRisk, Disposition: ForceHold, Err: err})
	case errors.Is(err, order.ErrLogWrite):
		rec.Outcome = OutcomeLogFailed
		setError(rec, &StageError{Stage: StageLog, Disposition: Critical, Err: err})
	case err != nil:
		rec.Outcome = OutcomeSubmitFailed
		setError(rec, &StageError{Stage: StageSubmit, Disposition: Skip, Err: err})
	case res == nil && sig.Decision != model.Hold:
		rec.Outcome = OutcomeDryRun
	case res != nil:
		rec.Outcome = OutcomePlaced
	}

	if res != nil {
		rec.OrderID = res.OrderID
		if err := s.recorder.RecordOrder(res); err != nil {
			s.log.WithError(err).WithField("order_id", res.OrderID).Error("record order")
		}
	}
}

// delay returns the wait after a cycle. Fixed intervals are slept in full
// since cron.Every truncates the start time to the second.
func (s *Scheduler) delay() time.Duration {
	if every, ok := s.schedule.(cron.ConstantDelaySchedule); ok {
		return every.Delay
	}
	now := s.now()
	return s.schedule.Next(now).Sub(now)
}

// summarize emits the one log line every cycle produces.
func (s *Scheduler) summarize(rec *recorder.CycleRecord) {
	entry := s.log.WithFields(logrus.Fields{
		"symbol":      rec.Symbol,
		"price":       rec.Price,
		"ema":         value(rec.Indicators.EMA),
		"rsi":         value(rec.Indicators.RSI),
		"reference":   value(rec.Indicators.Reference),
		"decision":    rec.Decision,
		"reason":      rec.Reason,
		"outcome":     rec.Outcome,
		"duration_ms": rec.Duration.Milliseconds(),
	})
	if rec.OrderID != "" {
		entry = entry.WithField("order_id", rec.OrderID)
	}

	if rec.Error != "" {
		entry = entry.WithFields(logrus.Fields{"stage": rec.ErrorStage, "error": rec.Error})
	}

	switch rec.Outcome {
	case OutcomeLogFailed, OutcomePanic:
		entry.Error("cycle failed")
	case OutcomeSkipped, OutcomeSubmitFailed, OutcomeRiskRejected:
		entry.Warn("cycle incomplete")
	default:
		entry.Info("cycle complete")
	}
}

func setError(rec *recorder.CycleRecord, err *StageError) {
	rec.ErrorStage = string(err.Stage)
	rec.Error = err.Error()
}

func value(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
