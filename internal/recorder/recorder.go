package recorder

import (
	"time"

	"SpotSentinel/internal/model"
)

// CycleRecord is the journal row written once per scheduler cycle.
type CycleRecord struct {
	Time       time.Time
	Symbol     string
	Price      float64 // 0 when the fetch stage failed
	Indicators model.Indicators
	Decision   model.Decision
	Reason     string
	Outcome    string // e.g. "placed", "none", "skipped", "panic"
	OrderID    string
	ErrorStage string
	Error      string
	Duration   time.Duration
}

// Recorder persists the cycle journal for later analysis.
type Recorder interface {
	RecordCycle(rec *CycleRecord) error
	RecordOrder(res *model.OrderResult) error
	Close() error
}
