package notifier

import (
	"fmt"
	"strings"
	"time"

	"SpotSentinel/internal/model"
)

// FormatOrderPlaced formats an acknowledged order.
func FormatOrderPlaced(res *model.OrderResult) (subject, body string) {
	subject = fmt.Sprintf("%s %s %s @ %s", res.Side, res.Quantity, res.Symbol, res.Price)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Order ID: %s\n", res.OrderID))
	b.WriteString(fmt.Sprintf("Client ID: %s\n", res.ClientOrderID))
	b.WriteString(fmt.Sprintf("Type: %s | Status: %s\n", res.Type, res.Status))
	b.WriteString(fmt.Sprintf("Submitted: %s\n", res.SubmittedAt.UTC().Format(time.RFC3339)))
	return subject, b.String()
}

// FormatLogWriteFailure formats the alert for an order that reached the
// exchange but is missing from the order log.
func FormatLogWriteFailure(res *model.OrderResult, err error) (subject, body string) {
	subject = "CRITICAL: order placed but not logged"

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s %s @ %s\n", res.Side, res.Quantity, res.Symbol, res.Price))
	b.WriteString(fmt.Sprintf("Order ID: %s | Client ID: %s\n", res.OrderID, res.ClientOrderID))
	b.WriteString(fmt.Sprintf("Error: %v\n", err))
	b.WriteString("Reconcile the order log against the exchange.")
	return subject, b.String()
}

// FormatSubmitFailure formats a failed order submission.
func FormatSubmitFailure(req model.OrderRequest, err error) (subject, body string) {
	subject = fmt.Sprintf("Order submission failed: %s %s", req.Side, req.Symbol)
	body = fmt.Sprintf("Quantity: %g | Price: %g\nClient ID: %s\nError: %v",
		req.Quantity, req.Price, req.ClientOrderID, err)
	return subject, body
}

// FormatLifecycle formats startup and shutdown notices.
func FormatLifecycle(event, symbol string, dryRun bool) (subject, body string) {
	subject = fmt.Sprintf("SpotSentinel %s", event)
	mode := "live"
	if dryRun {
		mode = "dry-run"
	}
	body = fmt.Sprintf("Symbol: %s | Mode: %s | %s", symbol, mode, time.Now().UTC().Format(time.RFC3339))
	return subject, body
}
