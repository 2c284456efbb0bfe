// internal/domain/payment/gateway.go
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type ChargeStatus string

const (
	ChargeSucceeded      ChargeStatus = "succeeded"
	ChargeRequiresAction ChargeStatus = "requires_action"
	ChargeProcessing     ChargeStatus = "processing"
)

// ChargeRequest describes an off-session charge against a stored payment
// method. Metadata is attached verbatim to the gateway object for later
// reconciliation.
type ChargeRequest struct {
	CustomerID      string
	PaymentMethodID string
	Amount          decimal.Decimal
	Currency        string
	Metadata        map[string]string
}

type ChargeResult struct {
	Status     ChargeStatus
	ExternalID string
}

// Gateway executes off-session charges. Implementations must honor the
// context deadline; the retry controller imposes one on every call.
type Gateway interface {
	ChargeOffSession(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
}
