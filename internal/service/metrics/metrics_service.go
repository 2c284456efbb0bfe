// internal/service/metrics/metrics_service.go
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/subscription"
	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// upcomingRenewalWindowDays is the lookahead for the upcoming-renewals count.
const upcomingRenewalWindowDays = 7

// Monthly-equivalent factors per billing frequency.
var (
	weeklyFactor   = decimal.RequireFromString("4.33")
	biweeklyFactor = decimal.RequireFromString("2.17")
	three          = decimal.NewFromInt(3)
	twelve         = decimal.NewFromInt(12)
)

type MetricsService struct {
	subscriptionRepo subscription.Repository
	logger           *zap.Logger
	now              func() time.Time
}

func NewMetricsService(subscriptionRepo subscription.Repository, logger *zap.Logger) *MetricsService {
	return &MetricsService{
		subscriptionRepo: subscriptionRepo,
		logger:           logger,
		now:              time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *MetricsService) WithClock(now func() time.Time) *MetricsService {
	s.now = now
	return s
}

// Stats computes status counts, the count of renewals due within the next
// seven days, and MRR: every active subscription's amount normalized to a
// monthly equivalent, summed exactly and rounded to 2 decimal places once at
// the end.
func (s *MetricsService) Stats(ctx context.Context, tenantID int64) (*subscription.SubscriptionStats, error) {
	counts, err := s.subscriptionRepo.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	now := s.now()
	upcoming, err := s.subscriptionRepo.CountUpcomingRenewals(ctx, tenantID, now, now.AddDate(0, 0, upcomingRenewalWindowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to count upcoming renewals: %w", err)
	}

	amounts, err := s.subscriptionRepo.ActiveAmounts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active amounts: %w", err)
	}

	mrr := decimal.Zero
	for _, a := range amounts {
		contribution, err := monthlyEquivalent(a.Amount, a.Frequency)
		if err != nil {
			return nil, err
		}
		mrr = mrr.Add(contribution)
	}

	stats := &subscription.SubscriptionStats{
		Active:           counts[subscription.StatusActive],
		Paused:           counts[subscription.StatusPaused],
		Cancelled:        counts[subscription.StatusCancelled],
		MRR:              mrr.Round(2),
		UpcomingRenewals: upcoming,
	}

	s.logger.Debug("subscription stats computed",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("active", stats.Active),
		zap.String("mrr", stats.MRR.String()),
	)

	return stats, nil
}

func monthlyEquivalent(amount decimal.Decimal, freq subscription.Frequency) (decimal.Decimal, error) {
	switch freq {
	case subscription.FrequencyWeekly:
		return amount.Mul(weeklyFactor), nil
	case subscription.FrequencyBiweekly:
		return amount.Mul(biweeklyFactor), nil
	case subscription.FrequencyMonthly:
		return amount, nil
	case subscription.FrequencyQuarterly:
		return amount.Div(three), nil
	case subscription.FrequencyYearly:
		return amount.Div(twelve), nil
	default:
		return decimal.Zero, xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("unknown billing frequency %q", freq))
	}
}
