package model

import "time"

// Decision is the action chosen for a cycle.
type Decision string

const (
	Hold Decision = "HOLD"
	Buy  Decision = "BUY"
	Sell Decision = "SELL"
)

// Signal is a decision plus the rule leg that produced it.
type Signal struct {
	Decision Decision
	Reason   string
}

// OrderType is always LIMIT for this bot but is kept explicit on the wire.
type OrderType string

const OrderTypeLimit OrderType = "LIMIT"

// OrderRequest is an unsigned order. The exchange client signs it at send time.
type OrderRequest struct {
	Symbol        string
	Side          Decision
	Type          OrderType
	Quantity      float64
	Price         float64
	Timestamp     time.Time
	ClientOrderID string
}

// OrderResult is the exchange acknowledgment of a placed order.
type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          Decision
	Type          OrderType
	Price         string
	Quantity      string
	Status        string
	TransactTime  time.Time
	SubmittedAt   time.Time
}
