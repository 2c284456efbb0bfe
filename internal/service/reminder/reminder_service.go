// internal/service/reminder/reminder_service.go
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/catalog"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/client"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/subscription"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultDaysBefore is the notice window applied when a run does not
// specify one.
const DefaultDaysBefore = 3

// BillingReminder carries everything the notifier needs to tell a client
// about an upcoming charge.
type BillingReminder struct {
	To              string
	ClientName      string
	PackageName     string
	Amount          decimal.Decimal
	Currency        string
	NextBillingDate time.Time
	Frequency       subscription.Frequency
}

// Notifier delivers billing reminders. Implementations may fail; the
// scheduler retries on the next run.
type Notifier interface {
	SendBillingReminder(ctx context.Context, reminder *BillingReminder) error
}

type ReminderService struct {
	subscriptionRepo subscription.Repository
	clientRepo       client.Repository
	packageRepo      catalog.Repository
	notifier         Notifier
	logger           *zap.Logger
	now              func() time.Time
}

func NewReminderService(
	subscriptionRepo subscription.Repository,
	clientRepo client.Repository,
	packageRepo catalog.Repository,
	notifier Notifier,
	logger *zap.Logger,
) *ReminderService {
	return &ReminderService{
		subscriptionRepo: subscriptionRepo,
		clientRepo:       clientRepo,
		packageRepo:      packageRepo,
		notifier:         notifier,
		logger:           logger,
		now:              time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *ReminderService) WithClock(now func() time.Time) *ReminderService {
	s.now = now
	return s
}

// Run sends one reminder per subscription whose next charge falls within the
// notice window and has not yet been reminded this cycle. Clients without an
// email on file are skipped silently; a failed send is logged and left
// unmarked so the next run retries it. A tenantID of zero covers all tenants.
func (s *ReminderService) Run(ctx context.Context, tenantID int64, daysBefore int) (*subscription.ReminderRunResult, error) {
	if daysBefore < 1 {
		daysBefore = DefaultDaysBefore
	}

	from := s.now()
	to := from.AddDate(0, 0, daysBefore)

	due, err := s.subscriptionRepo.FindDueForReminder(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions for reminders: %w", err)
	}

	result := &subscription.ReminderRunResult{}
	for i := range due {
		sub := &due[i]

		cl, err := s.clientRepo.FindByID(ctx, sub.TenantID, sub.ClientID)
		if err != nil {
			result.Failures = append(result.Failures, subscription.ItemFailure{
				SubscriptionID: sub.ID,
				Error:          fmt.Sprintf("client lookup: %s", err),
			})
			continue
		}

		if !cl.Email.Valid || cl.Email.String == "" {
			result.Skipped++
			continue
		}

		reminder := &BillingReminder{
			To:              cl.Email.String,
			ClientName:      cl.Name,
			Amount:          sub.Amount,
			Currency:        sub.Currency,
			NextBillingDate: sub.NextBillingDate,
			Frequency:       sub.Frequency,
		}
		if sub.PackageID.Valid {
			if pkg, err := s.packageRepo.FindByID(ctx, sub.TenantID, sub.PackageID.Int64); err == nil {
				reminder.PackageName = pkg.Name
			}
		}

		if err := s.notifier.SendBillingReminder(ctx, reminder); err != nil {
			// Leave reminder_sent untouched so the next run retries.
			s.logger.Warn("failed to send billing reminder",
				zap.Int64("subscription_id", sub.ID),
				zap.Int64("tenant_id", sub.TenantID),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, subscription.ItemFailure{
				SubscriptionID: sub.ID,
				Error:          err.Error(),
			})
			continue
		}

		if err := s.subscriptionRepo.MarkReminderSent(ctx, sub.TenantID, sub.ID); err != nil {
			result.Failures = append(result.Failures, subscription.ItemFailure{
				SubscriptionID: sub.ID,
				Error:          fmt.Sprintf("mark reminder sent: %s", err),
			})
			continue
		}

		result.Sent++
		result.RemindedIDs = append(result.RemindedIDs, sub.ID)
	}

	s.logger.Info("reminder run completed",
		zap.Int64("tenant_id", tenantID),
		zap.Int("candidates", len(due)),
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failures)),
	)

	return result, nil
}
