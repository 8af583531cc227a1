package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"SpotSentinel/internal/model"
)

// OrderParams renders req as the parameter set that gets signed.
func OrderParams(req model.OrderRequest) map[string]string {
	params := map[string]string{
		"symbol":    req.Symbol,
		"side":      string(req.Side),
		"type":      string(req.Type),
		"quantity":  decimal.NewFromFloat(req.Quantity).String(),
		"price":     decimal.NewFromFloat(req.Price).String(),
		"timestamp": strconv.FormatInt(req.Timestamp.UnixMilli(), 10),
	}
	if req.ClientOrderID != "" {
		params["newClientOrderId"] = req.ClientOrderID
	}
	return params
}

// PlaceOrder signs and submits req. The same signed body is reused across
// retries so the exchange can deduplicate on the client order id.
func (c *Client) PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	params := OrderParams(req)

	data, err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/order",
		form:   encodeSigned(params, c.apiSecret),
		auth:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	var ack struct {
		OrderID       idString    `json:"orderId"`
		ClientOrderID string      `json:"clientOrderId"`
		Symbol        string      `json:"symbol"`
		Side          string      `json:"side"`
		Type          string      `json:"type"`
		Price         json.Number `json:"price"`
		OrigQty       json.Number `json:"origQty"`
		Status        string      `json:"status"`
		TransactTime  int64       `json:"transactTime"`
	}
	if err := json.Unmarshal(data, &ack); err != nil {
		return nil, fmt.Errorf("decode order ack: %w", err)
	}
	if ack.OrderID == "" {
		return nil, fmt.Errorf("decode order ack: missing orderId")
	}

	res := &model.OrderResult{
		OrderID:       string(ack.OrderID),
		ClientOrderID: ack.ClientOrderID,
		Symbol:        ack.Symbol,
		Side:          model.Decision(ack.Side),
		Type:          model.OrderType(ack.Type),
		Price:         ack.Price.String(),
		Quantity:      ack.OrigQty.String(),
		Status:        ack.Status,
		SubmittedAt:   req.Timestamp,
	}
	// Fill what the ack left out from the request.
	if res.ClientOrderID == "" {
		res.ClientOrderID = req.ClientOrderID
	}
	if res.Symbol == "" {
		res.Symbol = req.Symbol
	}
	if res.Side == "" {
		res.Side = req.Side
	}
	if res.Type == "" {
		res.Type = req.Type
	}
	if res.Price == "" {
		res.Price = params["price"]
	}
	if res.Quantity == "" {
		res.Quantity = params["quantity"]
	}
	if ack.TransactTime > 0 {
		res.TransactTime = time.UnixMilli(ack.TransactTime).UTC()
	}
	return res, nil
}

// idString accepts an id sent either as a JSON string or a number.
type idString string

func (s *idString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = idString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*s = idString(n.String())
	return nil
}
