package strategy

import "SpotSentinel/internal/model"

// Params are the static thresholds of the decision rule.
type Params struct {
	BuyRSI    float64 // buy when RSI is below this
	SellRSI   float64 // sell when RSI is above this
	Tolerance float64 // allowed excess over the reference price, e.g. 0.02
}

// Reasons attached to each outcome of Decide.
const (
	ReasonInsufficientData  = "insufficient_data"
	ReasonBuy               = "buy_oversold_near_reference"
	ReasonSell              = "sell_overbought_above_ema"
	ReasonReferenceExceeded = "reference_tolerance_exceeded"
	ReasonNoSignal          = "no_signal"
)

// Decide maps the current price and indicators to an action.
//
// Any missing indicator yields Hold. Buy is checked before Sell, so with a
// misconfigured pair (BuyRSI >= SellRSI) Buy wins when both could apply.
func Decide(price float64, ind model.Indicators, p Params) model.Signal {
	if !ind.Complete() {
		return model.Signal{Decision: model.Hold, Reason: ReasonInsufficientData}
	}
	ema, rsi, ref := *ind.EMA, *ind.RSI, *ind.Reference

	if price < ema && rsi < p.BuyRSI {
		if price <= ref*(1+p.Tolerance) {
			return model.Signal{Decision: model.Buy, Reason: ReasonBuy}
		}
		return model.Signal{Decision: model.Hold, Reason: ReasonReferenceExceeded}
	}
	if price > ema && rsi > p.SellRSI {
		return model.Signal{Decision: model.Sell, Reason: ReasonSell}
	}
	return model.Signal{Decision: model.Hold, Reason: ReasonNoSignal}
}
