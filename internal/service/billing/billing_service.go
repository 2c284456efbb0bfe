// internal/service/billing/billing_service.go
package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/catalog"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/invoice"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/subscription"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/lock"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BillingService struct {
	subscriptionRepo subscription.Repository
	invoiceRepo      invoice.Repository
	packageRepo      catalog.Repository
	locker           lock.Locker
	logger           *zap.Logger
	now              func() time.Time
}

func NewBillingService(
	subscriptionRepo subscription.Repository,
	invoiceRepo invoice.Repository,
	packageRepo catalog.Repository,
	locker lock.Locker,
	logger *zap.Logger,
) *BillingService {
	return &BillingService{
		subscriptionRepo: subscriptionRepo,
		invoiceRepo:      invoiceRepo,
		packageRepo:      packageRepo,
		locker:           locker,
		logger:           logger,
		now:              time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *BillingService) WithClock(now func() time.Time) *BillingService {
	s.now = now
	return s
}

// ProcessDueSubscriptions runs one billing cycle over every active
// subscription whose next billing date has arrived. Each subscription is
// processed independently; a failure is recorded in the result and never
// blocks the rest of the batch. A tenantID of zero processes all tenants.
//
// Due subscriptions with auto-renew off, or whose end date has passed, are
// expired instead of invoiced, so deferred cancellations terminate at the
// cycle boundary rather than lingering active-but-never-billed.
func (s *BillingService) ProcessDueSubscriptions(ctx context.Context, tenantID int64) (*subscription.BillingRunResult, error) {
	now := s.now()

	due, err := s.subscriptionRepo.FindDue(ctx, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due subscriptions: %w", err)
	}

	result := &subscription.BillingRunResult{}
	for i := range due {
		sub := &due[i]

		expired, invoiceID, err := s.processOne(ctx, sub, now)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, subscription.ItemFailure{
				SubscriptionID: sub.ID,
				Error:          err.Error(),
			})
			s.logger.Error("billing cycle failed for subscription",
				zap.Int64("subscription_id", sub.ID),
				zap.Int64("tenant_id", sub.TenantID),
				zap.Error(err),
			)
			continue
		}

		if expired {
			result.Expired++
			continue
		}

		result.Processed++
		result.InvoiceIDs = append(result.InvoiceIDs, invoiceID)
	}

	s.logger.Info("billing cycle run completed",
		zap.Int64("tenant_id", tenantID),
		zap.Int("due", len(due)),
		zap.Int("processed", result.Processed),
		zap.Int("expired", result.Expired),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}

// processOne handles a single due subscription: expiry, or invoice emission
// with the billing date advanced from the previous one.
func (s *BillingService) processOne(ctx context.Context, sub *subscription.Subscription, now time.Time) (expired bool, invoiceID int64, err error) {
	endDatePassed := sub.EndDate.Valid && !sub.EndDate.Time.After(now)
	if endDatePassed || !sub.AutoRenew {
		if err := s.subscriptionRepo.UpdateStatus(ctx, sub.TenantID, sub.ID, subscription.StatusExpired); err != nil {
			return false, 0, fmt.Errorf("failed to expire subscription: %w", err)
		}
		s.logger.Info("subscription expired",
			zap.Int64("subscription_id", sub.ID),
			zap.Int64("tenant_id", sub.TenantID),
			zap.Bool("end_date_passed", endDatePassed),
			zap.Bool("auto_renew", sub.AutoRenew),
		)
		return true, 0, nil
	}

	var pkg *catalog.Package
	if sub.PackageID.Valid {
		pkg, err = s.packageRepo.FindByID(ctx, sub.TenantID, sub.PackageID.Int64)
		if err != nil {
			return false, 0, fmt.Errorf("package not found: %w", err)
		}
	}

	number, lease, err := s.NextInvoiceNumber(ctx, sub.TenantID)
	if err != nil {
		return false, 0, err
	}
	// The lease stays held until the invoice is committed; a concurrent run
	// reading the sequence before the commit would mint the same number.
	defer s.releaseNumberingLease(ctx, lease, sub.TenantID)

	inv := &invoice.Invoice{
		TenantID:        sub.TenantID,
		InvoiceNumber:   number,
		ClientID:        sub.ClientID,
		SubscriptionID:  sql.NullInt64{Int64: sub.ID, Valid: true},
		Status:          invoice.StatusSent,
		IssueDate:       now,
		DueDate:         now.AddDate(0, 0, invoice.PaymentTermDays),
		Subtotal:        sub.Amount,
		Tax:             decimal.Zero,
		Total:           sub.Amount,
		AmountPaid:      decimal.Zero,
		AmountRemaining: sub.Amount,
		Currency:        sub.Currency,
	}
	if pkg != nil {
		inv.Notes = sql.NullString{String: fmt.Sprintf("Recurring billing for package %q", pkg.Name), Valid: true}
	}

	// Advance from the previous billing date, not from now, so a late run
	// keeps the billing anchor.
	next, err := subscription.NextBillingDate(sub.NextBillingDate, sub.Frequency, int(sub.BillingDay.Int32))
	if err != nil {
		return false, 0, err
	}

	sub.NextBillingDate = next
	sub.LastPaymentDate = sql.NullTime{Time: now, Valid: true}
	sub.LastPaymentStatus = sql.NullString{String: subscription.PaymentStatusPending, Valid: true}
	sub.ReminderSent = false
	sub.RetryCount = 0

	commit := &invoice.CycleCommit{Invoice: inv, Subscription: sub}
	if pkg != nil {
		commit.CreditGrant = pkg.Credits
	}

	if err := s.invoiceRepo.CommitCycle(ctx, commit); err != nil {
		return false, 0, fmt.Errorf("failed to commit billing cycle: %w", err)
	}

	s.logger.Info("invoice generated",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("tenant_id", sub.TenantID),
		zap.Int64("invoice_id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Time("next_billing_date", sub.NextBillingDate),
	)

	return false, inv.ID, nil
}

// ListInvoices retrieves recent invoices for a tenant.
func (s *BillingService) ListInvoices(ctx context.Context, tenantID int64, limit int) ([]invoice.Invoice, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.invoiceRepo.ListByTenant(ctx, tenantID, limit)
}

// ListSubscriptionInvoices retrieves all invoices emitted for one subscription.
func (s *BillingService) ListSubscriptionInvoices(ctx context.Context, tenantID, subscriptionID int64) ([]invoice.Invoice, error) {
	return s.invoiceRepo.ListBySubscription(ctx, tenantID, subscriptionID)
}
