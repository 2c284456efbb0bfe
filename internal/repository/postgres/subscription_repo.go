// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/subscription"
	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subscriptionColumns = `
	id, tenant_id, subscription_reference, client_id, package_id,
	amount, currency, frequency, billing_day,
	start_date, end_date, next_billing_date,
	auto_renew, reminder_sent,
	retry_count, max_retries, last_payment_status, last_payment_date,
	status, paused_at, cancelled_at, cancellation_reason,
	gateway_customer_id, gateway_subscription_id, gateway_payment_method_id,
	metadata, created_at, updated_at`

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts a subscription and populates its generated fields.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			tenant_id, subscription_reference, client_id, package_id,
			amount, currency, frequency, billing_day,
			start_date, end_date, next_billing_date,
			auto_renew, reminder_sent,
			retry_count, max_retries, last_payment_status, last_payment_date,
			status, paused_at, cancelled_at, cancellation_reason,
			gateway_customer_id, gateway_subscription_id, gateway_payment_method_id,
			metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		RETURNING id, created_at, updated_at
	`

	metadataJSON, err := marshalMetadata(sub.Metadata)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(
		ctx, query,
		sub.TenantID, sub.SubscriptionReference, sub.ClientID, sub.PackageID,
		sub.Amount, sub.Currency, sub.Frequency, sub.BillingDay,
		sub.StartDate, sub.EndDate, sub.NextBillingDate,
		sub.AutoRenew, sub.ReminderSent,
		sub.RetryCount, sub.MaxRetries, sub.LastPaymentStatus, sub.LastPaymentDate,
		sub.Status, sub.PausedAt, sub.CancelledAt, sub.CancellationReason,
		sub.GatewayCustomerID, sub.GatewaySubscriptionID, sub.GatewayPaymentMethodID,
		metadataJSON,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

// FindByID retrieves a subscription scoped to its tenant.
func (r *SubscriptionRepository) FindByID(ctx context.Context, tenantID, id int64) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE tenant_id = $1 AND id = $2`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	return sub, nil
}

// List retrieves subscriptions with optional status filter and paging.
func (r *SubscriptionRepository) List(ctx context.Context, tenantID int64, filters *subscription.ListFilters) ([]subscription.Subscription, int64, error) {
	where := `WHERE tenant_id = $1`
	args := []interface{}{tenantID}

	if filters.Status != "" {
		where += ` AND status = $2`
		args = append(args, filters.Status)
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	offset := (filters.Page - 1) * filters.PageSize
	query := fmt.Sprintf(`SELECT %s FROM subscriptions %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		subscriptionColumns, where, filters.PageSize, offset)

	subs, err := r.querySubscriptions(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return subs, total, nil
}

// Update persists the mutable lifecycle and payment bookkeeping fields.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions
		SET amount = $1, currency = $2, frequency = $3, billing_day = $4,
		    end_date = $5, next_billing_date = $6,
		    auto_renew = $7, reminder_sent = $8,
		    retry_count = $9, max_retries = $10,
		    last_payment_status = $11, last_payment_date = $12,
		    status = $13, paused_at = $14, cancelled_at = $15, cancellation_reason = $16,
		    gateway_customer_id = $17, gateway_subscription_id = $18, gateway_payment_method_id = $19,
		    updated_at = $20
		WHERE tenant_id = $21 AND id = $22
	`

	result, err := r.db.Exec(
		ctx, query,
		sub.Amount, sub.Currency, sub.Frequency, sub.BillingDay,
		sub.EndDate, sub.NextBillingDate,
		sub.AutoRenew, sub.ReminderSent,
		sub.RetryCount, sub.MaxRetries,
		sub.LastPaymentStatus, sub.LastPaymentDate,
		sub.Status, sub.PausedAt, sub.CancelledAt, sub.CancellationReason,
		sub.GatewayCustomerID, sub.GatewaySubscriptionID, sub.GatewayPaymentMethodID,
		time.Now(), sub.TenantID, sub.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// UpdateStatus updates only the status column.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, tenantID, id int64, status subscription.Status) error {
	query := `UPDATE subscriptions SET status = $1, updated_at = $2 WHERE tenant_id = $3 AND id = $4`

	result, err := r.db.Exec(ctx, query, status, time.Now(), tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// FindDue returns active subscriptions whose next billing date has arrived.
func (r *SubscriptionRepository) FindDue(ctx context.Context, tenantID int64, now time.Time) ([]subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active' AND next_billing_date <= $1
		  AND ($2 = 0 OR tenant_id = $2)
		ORDER BY next_billing_date ASC`

	return r.querySubscriptions(ctx, query, now, tenantID)
}

// FindDueForReminder returns active auto-renewing subscriptions due within
// [from, to] that have not been reminded this cycle.
func (r *SubscriptionRepository) FindDueForReminder(ctx context.Context, tenantID int64, from, to time.Time) ([]subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active' AND auto_renew = TRUE AND reminder_sent = FALSE
		  AND next_billing_date >= $1 AND next_billing_date <= $2
		  AND ($3 = 0 OR tenant_id = $3)
		ORDER BY next_billing_date ASC`

	return r.querySubscriptions(ctx, query, from, to, tenantID)
}

// FindRetryCandidates returns subscriptions with an unresolved payment that
// still have automatic retries available.
func (r *SubscriptionRepository) FindRetryCandidates(ctx context.Context, tenantID int64) ([]subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active'
		  AND last_payment_status IN ('pending', 'failed', 'requires_action')
		  AND retry_count < max_retries
		  AND ($1 = 0 OR tenant_id = $1)
		ORDER BY last_payment_date ASC NULLS FIRST`

	return r.querySubscriptions(ctx, query, tenantID)
}

// MarkReminderSent flips the reminder flag for the current cycle.
func (r *SubscriptionRepository) MarkReminderSent(ctx context.Context, tenantID, id int64) error {
	query := `UPDATE subscriptions SET reminder_sent = TRUE, updated_at = $1 WHERE tenant_id = $2 AND id = $3`

	result, err := r.db.Exec(ctx, query, time.Now(), tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// RecordPaymentAttempt persists retry bookkeeping in one statement.
func (r *SubscriptionRepository) RecordPaymentAttempt(ctx context.Context, tenantID, id int64, retryCount int, lastPaymentStatus string, lastPaymentDate sql.NullTime, status subscription.Status) error {
	query := `
		UPDATE subscriptions
		SET retry_count = $1, last_payment_status = $2, last_payment_date = $3, status = $4, updated_at = $5
		WHERE tenant_id = $6 AND id = $7
	`

	result, err := r.db.Exec(ctx, query, retryCount, lastPaymentStatus, lastPaymentDate, status, time.Now(), tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to record payment attempt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// CountByStatus returns subscription counts grouped by status.
func (r *SubscriptionRepository) CountByStatus(ctx context.Context, tenantID int64) (map[subscription.Status]int64, error) {
	query := `
		SELECT status, COUNT(*)
		FROM subscriptions
		WHERE $1 = 0 OR tenant_id = $1
		GROUP BY status
	`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count subscriptions by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[subscription.Status]int64)
	for rows.Next() {
		var status subscription.Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// ActiveAmounts returns the amount/frequency projection for MRR.
func (r *SubscriptionRepository) ActiveAmounts(ctx context.Context, tenantID int64) ([]subscription.ActiveAmount, error) {
	query := `
		SELECT amount, frequency
		FROM subscriptions
		WHERE status = 'active' AND ($1 = 0 OR tenant_id = $1)
	`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active amounts: %w", err)
	}
	defer rows.Close()

	var amounts []subscription.ActiveAmount
	for rows.Next() {
		var a subscription.ActiveAmount
		if err := rows.Scan(&a.Amount, &a.Frequency); err != nil {
			return nil, fmt.Errorf("failed to scan active amount: %w", err)
		}
		amounts = append(amounts, a)
	}

	return amounts, rows.Err()
}

// CountUpcomingRenewals counts active subscriptions due within [from, until].
// The lower bound keeps overdue subscriptions out of the upcoming figure.
func (r *SubscriptionRepository) CountUpcomingRenewals(ctx context.Context, tenantID int64, from, until time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM subscriptions
		WHERE status = 'active'
			AND next_billing_date >= $1 AND next_billing_date <= $2
			AND ($3 = 0 OR tenant_id = $3)
	`

	var count int64
	if err := r.db.QueryRow(ctx, query, from, until, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count upcoming renewals: %w", err)
	}

	return count, nil
}

func (r *SubscriptionRepository) querySubscriptions(ctx context.Context, query string, args ...interface{}) ([]subscription.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}

	return subs, rows.Err()
}

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	var metadataJSON []byte

	err := row.Scan(
		&sub.ID, &sub.TenantID, &sub.SubscriptionReference, &sub.ClientID, &sub.PackageID,
		&sub.Amount, &sub.Currency, &sub.Frequency, &sub.BillingDay,
		&sub.StartDate, &sub.EndDate, &sub.NextBillingDate,
		&sub.AutoRenew, &sub.ReminderSent,
		&sub.RetryCount, &sub.MaxRetries, &sub.LastPaymentStatus, &sub.LastPaymentDate,
		&sub.Status, &sub.PausedAt, &sub.CancelledAt, &sub.CancellationReason,
		&sub.GatewayCustomerID, &sub.GatewaySubscriptionID, &sub.GatewayPaymentMethodID,
		&metadataJSON, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		json.Unmarshal(metadataJSON, &sub.Metadata)
	}

	return &sub, nil
}

func marshalMetadata(metadata map[string]interface{}) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return b, nil
}
