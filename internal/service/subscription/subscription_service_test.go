// internal/service/subscription/subscription_service_test.go
package subscription

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/catalog"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/client"
	domain "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/subscription"
	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testTenant int64 = 1

type lifecycleFixture struct {
	subs    *testutil.MemorySubscriptionRepo
	clients *testutil.MemoryClientRepo
	pkgs    *testutil.MemoryPackageRepo
	service *LifecycleService
}

func newLifecycleFixture(t *testing.T, now time.Time) *lifecycleFixture {
	t.Helper()

	subs := testutil.NewMemorySubscriptionRepo()
	clients := testutil.NewMemoryClientRepo()
	pkgs := testutil.NewMemoryPackageRepo()

	clients.Put(&client.Client{ID: 10, TenantID: testTenant, Name: "Acme Fitness"})
	pkgs.Put(&catalog.Package{ID: 20, TenantID: testTenant, Name: "Gold", Credits: 8, IsActive: true})

	service := NewLifecycleService(subs, clients, pkgs, zap.NewNop()).
		WithClock(func() time.Time { return now })

	return &lifecycleFixture{subs: subs, clients: clients, pkgs: pkgs, service: service}
}

func createRequest() *domain.CreateSubscriptionRequest {
	return &domain.CreateSubscriptionRequest{
		TenantID:  testTenant,
		ClientID:  10,
		Amount:    decimal.RequireFromString("49.90"),
		Currency:  "eur",
		Frequency: domain.FrequencyMonthly,
		AutoRenew: true,
	}
}

func TestCreateSubscription(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, now)

	sub, err := f.service.CreateSubscription(context.Background(), createRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Equal(t, "EUR", sub.Currency)
	assert.Equal(t, now, sub.StartDate)
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), sub.NextBillingDate)
	assert.Equal(t, DefaultMaxRetries, sub.MaxRetries)
	assert.Contains(t, sub.SubscriptionReference, "SUB-")
}

func TestCreateSubscription_ConfiguredRetryBudget(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, now)
	f.service.WithDefaultMaxRetries(5)

	sub, err := f.service.CreateSubscription(context.Background(), createRequest())
	require.NoError(t, err)
	assert.Equal(t, 5, sub.MaxRetries)

	// An explicit request value still wins over the configured default.
	req := createRequest()
	req.MaxRetries = 1
	sub, err = f.service.CreateSubscription(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.MaxRetries)
}

func TestCreateSubscription_BillingDayAnchorsFirstCycle(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, now)

	req := createRequest()
	day := 15
	req.BillingDay = &day

	sub, err := f.service.CreateSubscription(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC), sub.NextBillingDate)
}

func TestCreateSubscription_PackageGrantsCreditsAndMembership(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, now)

	req := createRequest()
	pkgID := int64(20)
	req.PackageID = &pkgID

	_, err := f.service.CreateSubscription(context.Background(), req)
	require.NoError(t, err)

	cl := f.clients.Get(10)
	require.NotNil(t, cl)
	assert.Equal(t, 8, cl.CreditsRemaining)
	assert.Equal(t, MembershipTypeSubscription, cl.MembershipType.String)
}

func TestCreateSubscription_Validation(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, now)

	req := createRequest()
	req.Frequency = "daily"
	_, err := f.service.CreateSubscription(context.Background(), req)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	req = createRequest()
	req.Amount = decimal.Zero
	_, err = f.service.CreateSubscription(context.Background(), req)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	req = createRequest()
	req.ClientID = 999
	_, err = f.service.CreateSubscription(context.Background(), req)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestPauseResume(t *testing.T) {
	createdAt := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, createdAt)

	req := createRequest()
	day := 15
	req.BillingDay = &day
	sub, err := f.service.CreateSubscription(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC), sub.NextBillingDate)

	// Pause on Feb 10.
	f.service.WithClock(func() time.Time { return time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC) })
	paused, err := f.service.PauseSubscription(context.Background(), testTenant, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, paused.Status)
	assert.True(t, paused.PausedAt.Valid)

	// Paused subscriptions are invisible to the due query.
	due, err := f.subs.FindDue(context.Background(), testTenant, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, due)

	// Resume on Mar 1: next charge is one full cycle out, not the old anchor.
	f.service.WithClock(func() time.Time { return time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC) })
	resumed, err := f.service.ResumeSubscription(context.Background(), testTenant, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, resumed.Status)
	assert.False(t, resumed.PausedAt.Valid)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), resumed.NextBillingDate)
}

func TestPause_InvalidState(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, now)

	sub, err := f.service.CreateSubscription(context.Background(), createRequest())
	require.NoError(t, err)

	_, err = f.service.PauseSubscription(context.Background(), testTenant, sub.ID)
	require.NoError(t, err)

	// Second pause fails.
	_, err = f.service.PauseSubscription(context.Background(), testTenant, sub.ID)
	assert.ErrorIs(t, err, xerrors.ErrInvalidState)

	// Resuming an active subscription fails too.
	_, err = f.service.ResumeSubscription(context.Background(), testTenant, sub.ID)
	require.NoError(t, err)
	_, err = f.service.ResumeSubscription(context.Background(), testTenant, sub.ID)
	assert.ErrorIs(t, err, xerrors.ErrInvalidState)
}

func TestCancelImmediate(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, now)

	sub, err := f.service.CreateSubscription(context.Background(), createRequest())
	require.NoError(t, err)

	cancelled, err := f.service.CancelSubscription(context.Background(), testTenant, sub.ID,
		&domain.CancelSubscriptionRequest{Reason: "too expensive", Immediate: true})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.True(t, cancelled.EndDate.Valid)
	assert.Equal(t, "too expensive", cancelled.CancellationReason.String)

	// Terminal: cancelling again fails.
	_, err = f.service.CancelSubscription(context.Background(), testTenant, sub.ID,
		&domain.CancelSubscriptionRequest{Immediate: true})
	assert.ErrorIs(t, err, xerrors.ErrInvalidState)
}

func TestCancelAtPeriodEnd(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, now)

	sub, err := f.service.CreateSubscription(context.Background(), createRequest())
	require.NoError(t, err)

	cancelled, err := f.service.CancelSubscription(context.Background(), testTenant, sub.ID,
		&domain.CancelSubscriptionRequest{Immediate: false})
	require.NoError(t, err)

	// Stays active until the billing processor expires it.
	assert.Equal(t, domain.StatusActive, cancelled.Status)
	assert.False(t, cancelled.AutoRenew)
	assert.True(t, cancelled.CancelledAt.Valid)
	assert.False(t, cancelled.EndDate.Valid)
}

func TestListSubscriptions_Paging(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, now)

	for i := 0; i < 5; i++ {
		_, err := f.service.CreateSubscription(context.Background(), createRequest())
		require.NoError(t, err)
	}

	resp, err := f.service.ListSubscriptions(context.Background(), testTenant, &domain.ListFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.Total)
	assert.Len(t, resp.Subscriptions, 2)
	assert.Equal(t, 3, resp.TotalPages)

	// Defaults applied when unset.
	resp, err = f.service.ListSubscriptions(context.Background(), testTenant, &domain.ListFilters{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PageSize)
	assert.Len(t, resp.Subscriptions, 5)
}

func TestListSubscriptions_StatusFilter(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, now)

	sub, err := f.service.CreateSubscription(context.Background(), createRequest())
	require.NoError(t, err)
	_, err = f.service.CreateSubscription(context.Background(), createRequest())
	require.NoError(t, err)

	_, err = f.service.PauseSubscription(context.Background(), testTenant, sub.ID)
	require.NoError(t, err)

	resp, err := f.service.ListSubscriptions(context.Background(), testTenant,
		&domain.ListFilters{Status: domain.StatusPaused})
	require.NoError(t, err)
	require.Len(t, resp.Subscriptions, 1)
	assert.Equal(t, sub.ID, resp.Subscriptions[0].ID)
}

func TestCreateSubscription_ExplicitDates(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, now)

	req := createRequest()
	start := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	req.StartDate = start
	req.EndDate = &end

	sub, err := f.service.CreateSubscription(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, start, sub.StartDate)
	assert.Equal(t, sql.NullTime{Time: end, Valid: true}, sub.EndDate)
	assert.Equal(t, time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC), sub.NextBillingDate)
}
