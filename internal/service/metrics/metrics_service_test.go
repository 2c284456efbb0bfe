// internal/service/metrics/metrics_service_test.go
package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/subscription"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testTenant int64 = 1

func newMetricsFixture(t *testing.T, now time.Time) (*testutil.MemorySubscriptionRepo, *MetricsService) {
	t.Helper()
	subs := testutil.NewMemorySubscriptionRepo()
	service := NewMetricsService(subs, zap.NewNop()).
		WithClock(func() time.Time { return now })
	return subs, service
}

func addSubscription(t *testing.T, subs *testutil.MemorySubscriptionRepo, amount string, freq subscription.Frequency, status subscription.Status, next time.Time) {
	t.Helper()
	require.NoError(t, subs.Create(context.Background(), &subscription.Subscription{
		TenantID:        testTenant,
		ClientID:        10,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "EUR",
		Frequency:       freq,
		NextBillingDate: next,
		AutoRenew:       true,
		MaxRetries:      3,
		Status:          status,
	}))
}

func TestStats_MRRNormalization(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	far := now.AddDate(0, 2, 0)
	subs, service := newMetricsFixture(t, now)

	addSubscription(t, subs, "10.00", subscription.FrequencyWeekly, subscription.StatusActive, far)
	addSubscription(t, subs, "10.00", subscription.FrequencyBiweekly, subscription.StatusActive, far)
	addSubscription(t, subs, "10.00", subscription.FrequencyMonthly, subscription.StatusActive, far)
	addSubscription(t, subs, "30.00", subscription.FrequencyQuarterly, subscription.StatusActive, far)
	addSubscription(t, subs, "120.00", subscription.FrequencyYearly, subscription.StatusActive, far)

	stats, err := service.Stats(context.Background(), testTenant)
	require.NoError(t, err)

	// 43.30 + 21.70 + 10 + 10 + 10
	assert.True(t, stats.MRR.Equal(decimal.RequireFromString("95.00")), "got %s", stats.MRR)
}

func TestStats_RoundsOnceAtTheEnd(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	far := now.AddDate(0, 2, 0)
	subs, service := newMetricsFixture(t, now)

	// Two yearly 100s: each contributes 8.33..; summed exactly then rounded
	// the total is 16.67, not 2 * 8.33 = 16.66.
	addSubscription(t, subs, "100.00", subscription.FrequencyYearly, subscription.StatusActive, far)
	addSubscription(t, subs, "100.00", subscription.FrequencyYearly, subscription.StatusActive, far)

	stats, err := service.Stats(context.Background(), testTenant)
	require.NoError(t, err)
	assert.True(t, stats.MRR.Equal(decimal.RequireFromString("16.67")), "got %s", stats.MRR)
}

func TestStats_OnlyActiveCountTowardMRR(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	far := now.AddDate(0, 2, 0)
	subs, service := newMetricsFixture(t, now)

	addSubscription(t, subs, "50.00", subscription.FrequencyMonthly, subscription.StatusActive, far)
	addSubscription(t, subs, "50.00", subscription.FrequencyMonthly, subscription.StatusPaused, far)
	addSubscription(t, subs, "50.00", subscription.FrequencyMonthly, subscription.StatusCancelled, far)
	addSubscription(t, subs, "50.00", subscription.FrequencyMonthly, subscription.StatusPastDue, far)

	stats, err := service.Stats(context.Background(), testTenant)
	require.NoError(t, err)

	assert.True(t, stats.MRR.Equal(decimal.RequireFromString("50.00")), "got %s", stats.MRR)
	assert.Equal(t, int64(1), stats.Active)
	assert.Equal(t, int64(1), stats.Paused)
	assert.Equal(t, int64(1), stats.Cancelled)
}

func TestStats_UpcomingRenewalsWindow(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	subs, service := newMetricsFixture(t, now)

	addSubscription(t, subs, "10.00", subscription.FrequencyMonthly, subscription.StatusActive, now.AddDate(0, 0, 3))
	addSubscription(t, subs, "10.00", subscription.FrequencyMonthly, subscription.StatusActive, now.AddDate(0, 0, 7))
	addSubscription(t, subs, "10.00", subscription.FrequencyMonthly, subscription.StatusActive, now.AddDate(0, 0, 8))
	addSubscription(t, subs, "10.00", subscription.FrequencyMonthly, subscription.StatusPaused, now.AddDate(0, 0, 3))
	// Overdue, not upcoming.
	addSubscription(t, subs, "10.00", subscription.FrequencyMonthly, subscription.StatusActive, now.AddDate(0, 0, -2))

	stats, err := service.Stats(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.UpcomingRenewals)
}

func TestStats_EmptyTenant(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	_, service := newMetricsFixture(t, now)

	stats, err := service.Stats(context.Background(), testTenant)
	require.NoError(t, err)
	assert.True(t, stats.MRR.IsZero())
	assert.Zero(t, stats.Active)
	assert.Zero(t, stats.UpcomingRenewals)
}
