package calculator

// ReferencePrice returns the value of the period immediately preceding the
// newest one, e.g. yesterday's low when given daily lows.
func ReferencePrice(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	return values[len(values)-2], true
}
