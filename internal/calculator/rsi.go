package calculator

// RSI computes the relative strength index over the trailing period deltas,
// using simple means of gains and loss magnitudes.
// Requires at least period+1 prices; returns false otherwise.
// A window without losses saturates at 100.
func RSI(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}

	var gain, loss float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change // make positive
		}
	}
	gain /= float64(period)
	loss /= float64(period)

	if loss == 0 {
		return 100.0, true
	}
	rs := gain / loss
	return 100.0 - 100.0/(1.0+rs), true
}
