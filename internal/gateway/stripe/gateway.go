// internal/gateway/stripe/gateway.go
package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/payment"
	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// Gateway implements payment.Gateway using Stripe off-session PaymentIntents.
type Gateway struct {
	apiKey string
}

// New creates a Gateway with the given API key.
func New(apiKey string) *Gateway {
	stripe.Key = apiKey
	return &Gateway{apiKey: apiKey}
}

// ChargeOffSession confirms a PaymentIntent against the stored payment
// method without the customer present. The caller's context deadline bounds
// the API call, and each call carries a fresh idempotency key so a retried
// attempt is a new charge, not a replay.
func (g *Gateway) ChargeOffSession(ctx context.Context, req *payment.ChargeRequest) (*payment.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: stripe.String(uuid.NewString()),
		},
		Amount:        stripe.Int64(minorUnits(req)),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	if len(req.Metadata) > 0 {
		params.Metadata = req.Metadata
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe off-session charge: %w", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return &payment.ChargeResult{Status: payment.ChargeSucceeded, ExternalID: pi.ID}, nil
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		return &payment.ChargeResult{Status: payment.ChargeRequiresAction, ExternalID: pi.ID}, nil
	case stripe.PaymentIntentStatusProcessing:
		return &payment.ChargeResult{Status: payment.ChargeProcessing, ExternalID: pi.ID}, nil
	default:
		return nil, xerrors.Wrap(xerrors.ErrGateway, fmt.Sprintf("unexpected payment intent status %q", pi.Status))
	}
}

// minorUnits converts the decimal amount to the smallest currency unit.
func minorUnits(req *payment.ChargeRequest) int64 {
	return req.Amount.Shift(2).Round(0).IntPart()
}
