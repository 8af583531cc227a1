package model

// Indicators holds the computed technical indicators for one cycle.
// A nil field means the window was too short for that indicator.
type Indicators struct {
	EMA       *float64
	RSI       *float64
	Reference *float64
}

// Complete reports whether every indicator is available.
func (i Indicators) Complete() bool {
	return i.EMA != nil && i.RSI != nil && i.Reference != nil
}

// Float returns a pointer to v, or nil when ok is false.
func Float(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
