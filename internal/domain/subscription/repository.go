// internal/domain/subscription/repository.go
package subscription

import (
	"context"
	"database/sql"
	"time"
)

// Repository is the subscription side of the ledger. A tenantID of zero in
// the batch queries means "all tenants".
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	FindByID(ctx context.Context, tenantID, id int64) (*Subscription, error)
	List(ctx context.Context, tenantID int64, filters *ListFilters) ([]Subscription, int64, error)

	// Update persists the mutable lifecycle and payment bookkeeping fields.
	Update(ctx context.Context, sub *Subscription) error
	UpdateStatus(ctx context.Context, tenantID, id int64, status Status) error

	// FindDue returns active subscriptions whose next billing date is at or
	// before now, regardless of auto-renew; the billing processor decides
	// renew-vs-expire per row.
	FindDue(ctx context.Context, tenantID int64, now time.Time) ([]Subscription, error)

	// FindDueForReminder returns active auto-renewing subscriptions with
	// reminder_sent=false whose next billing date falls within [from, to].
	FindDueForReminder(ctx context.Context, tenantID int64, from, to time.Time) ([]Subscription, error)

	// FindRetryCandidates returns subscriptions whose last payment attempt is
	// unresolved (pending, failed or requires_action) and which have not
	// reached the terminal past-due state.
	FindRetryCandidates(ctx context.Context, tenantID int64) ([]Subscription, error)

	MarkReminderSent(ctx context.Context, tenantID, id int64) error

	// RecordPaymentAttempt persists retry bookkeeping atomically. Every retry
	// branch calls this before returning, success or not.
	RecordPaymentAttempt(ctx context.Context, tenantID, id int64, retryCount int, lastPaymentStatus string, lastPaymentDate sql.NullTime, status Status) error

	// Metrics projections.
	CountByStatus(ctx context.Context, tenantID int64) (map[Status]int64, error)
	ActiveAmounts(ctx context.Context, tenantID int64) ([]ActiveAmount, error)
	CountUpcomingRenewals(ctx context.Context, tenantID int64, from, until time.Time) (int64, error)
}
