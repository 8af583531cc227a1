package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"SpotSentinel/internal/model"
)

// FetchBalances returns the account balances. The request is signed.
func (c *Client) FetchBalances(ctx context.Context) ([]model.Balance, error) {
	params := map[string]string{"timestamp": c.timestamp()}

	data, err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/account/balance",
		query:  encodeSigned(params, c.apiSecret),
		auth:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}

	var rows []struct {
		Asset  string      `json:"asset"`
		Free   json.Number `json:"free"`
		Locked json.Number `json:"locked"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}

	out := make([]model.Balance, 0, len(rows))
	for _, r := range rows {
		free, err := toFloat(r.Free)
		if err != nil {
			return nil, fmt.Errorf("decode balance %s: %w", r.Asset, err)
		}
		var locked float64
		if r.Locked != "" {
			if locked, err = toFloat(r.Locked); err != nil {
				return nil, fmt.Errorf("decode balance %s: %w", r.Asset, err)
			}
		}
		out = append(out, model.Balance{Asset: r.Asset, Free: free, Locked: locked})
	}
	return out, nil
}
