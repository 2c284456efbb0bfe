// internal/domain/invoice/repository.go
package invoice

import (
	"context"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/subscription"
)

// CycleCommit is the atomic unit the billing processor applies per due
// subscription: the new invoice, the subscription with its billing date
// already advanced and bookkeeping fields set, and the package credit grant
// for the client (zero when no package is attached). Implementations commit
// all three in a single transaction so a re-run after a crash never
// double-invoices a cycle.
type CycleCommit struct {
	Invoice      *Invoice
	Subscription *subscription.Subscription
	CreditGrant  int
}

type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	FindByID(ctx context.Context, tenantID, id int64) (*Invoice, error)
	ListByTenant(ctx context.Context, tenantID int64, limit int) ([]Invoice, error)
	ListBySubscription(ctx context.Context, tenantID, subscriptionID int64) ([]Invoice, error)

	// MaxNumberForPrefix returns the highest invoice number with the given
	// prefix for the tenant, comparing by length before text so longer
	// sequences outrank shorter ones, or "" when none exists. Callers must
	// hold the tenant's numbering lock across the read-then-create.
	MaxNumberForPrefix(ctx context.Context, tenantID int64, prefix string) (string, error)

	CommitCycle(ctx context.Context, commit *CycleCommit) error
}
