// internal/repository/postgres/invoice_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/invoice"
	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const invoiceColumns = `
	id, tenant_id, invoice_number, client_id, subscription_id,
	status, issue_date, due_date,
	subtotal, tax, total, amount_paid, amount_remaining, currency,
	notes, created_at, updated_at`

const insertInvoiceQuery = `
	INSERT INTO invoices (
		tenant_id, invoice_number, client_id, subscription_id,
		status, issue_date, due_date,
		subtotal, tax, total, amount_paid, amount_remaining, currency,
		notes
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING id, created_at, updated_at
`

type InvoiceRepository struct {
	db *pgxpool.Pool
}

func NewInvoiceRepository(db *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	err := r.db.QueryRow(
		ctx, insertInvoiceQuery,
		inv.TenantID, inv.InvoiceNumber, inv.ClientID, inv.SubscriptionID,
		inv.Status, inv.IssueDate, inv.DueDate,
		inv.Subtotal, inv.Tax, inv.Total, inv.AmountPaid, inv.AmountRemaining, inv.Currency,
		inv.Notes,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	return nil
}

func (r *InvoiceRepository) FindByID(ctx context.Context, tenantID, id int64) (*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1 AND id = $2`

	inv, err := scanInvoice(r.db.QueryRow(ctx, query, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}

	return inv, nil
}

func (r *InvoiceRepository) ListByTenant(ctx context.Context, tenantID int64, limit int) ([]invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE tenant_id = $1
		ORDER BY issue_date DESC, id DESC
		LIMIT $2`

	return r.queryInvoices(ctx, query, tenantID, limit)
}

func (r *InvoiceRepository) ListBySubscription(ctx context.Context, tenantID, subscriptionID int64) ([]invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE tenant_id = $1 AND subscription_id = $2
		ORDER BY issue_date DESC, id DESC`

	return r.queryInvoices(ctx, query, tenantID, subscriptionID)
}

func (r *InvoiceRepository) MaxNumberForPrefix(ctx context.Context, tenantID int64, prefix string) (string, error) {
	// Numbers sharing a prefix differ only by their sequence suffix, so
	// ordering by length before text keeps FA202410000 above FA20249999
	// where a plain MAX(invoice_number) would stall at the shorter one.
	query := `
		SELECT invoice_number
		FROM invoices
		WHERE tenant_id = $1 AND invoice_number LIKE $2 || '%'
		ORDER BY length(invoice_number) DESC, invoice_number DESC
		LIMIT 1
	`

	var max string
	err := r.db.QueryRow(ctx, query, tenantID, prefix).Scan(&max)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find max invoice number: %w", err)
	}

	return max, nil
}

// CommitCycle writes the invoice, the advanced subscription and the credit
// grant in one transaction.
func (r *InvoiceRepository) CommitCycle(ctx context.Context, commit *invoice.CycleCommit) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin billing transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv := commit.Invoice
	err = tx.QueryRow(
		ctx, insertInvoiceQuery,
		inv.TenantID, inv.InvoiceNumber, inv.ClientID, inv.SubscriptionID,
		inv.Status, inv.IssueDate, inv.DueDate,
		inv.Subtotal, inv.Tax, inv.Total, inv.AmountPaid, inv.AmountRemaining, inv.Currency,
		inv.Notes,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create cycle invoice: %w", err)
	}

	sub := commit.Subscription
	result, err := tx.Exec(ctx, `
		UPDATE subscriptions
		SET next_billing_date = $1, reminder_sent = $2,
		    retry_count = $3, last_payment_status = $4, last_payment_date = $5,
		    updated_at = $6
		WHERE tenant_id = $7 AND id = $8
	`,
		sub.NextBillingDate, sub.ReminderSent,
		sub.RetryCount, sub.LastPaymentStatus, sub.LastPaymentDate,
		time.Now(), sub.TenantID, sub.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to advance subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	if commit.CreditGrant > 0 {
		result, err = tx.Exec(ctx, `
			UPDATE clients
			SET credits_remaining = credits_remaining + $1, updated_at = $2
			WHERE tenant_id = $3 AND id = $4
		`, commit.CreditGrant, time.Now(), inv.TenantID, inv.ClientID)
		if err != nil {
			return fmt.Errorf("failed to grant credits: %w", err)
		}
		if result.RowsAffected() == 0 {
			return xerrors.ErrNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit billing transaction: %w", err)
	}

	return nil
}

func (r *InvoiceRepository) queryInvoices(ctx context.Context, query string, args ...interface{}) ([]invoice.Invoice, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}

	return invoices, rows.Err()
}

func scanInvoice(row pgx.Row) (*invoice.Invoice, error) {
	var inv invoice.Invoice

	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.InvoiceNumber, &inv.ClientID, &inv.SubscriptionID,
		&inv.Status, &inv.IssueDate, &inv.DueDate,
		&inv.Subtotal, &inv.Tax, &inv.Total, &inv.AmountPaid, &inv.AmountRemaining, &inv.Currency,
		&inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &inv, nil
}
