// internal/service/billing/billing_service_test.go
package billing

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/catalog"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/client"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/invoice"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/subscription"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testTenant int64 = 1

type billingFixture struct {
	subs     *testutil.MemorySubscriptionRepo
	invoices *testutil.MemoryInvoiceRepo
	clients  *testutil.MemoryClientRepo
	pkgs     *testutil.MemoryPackageRepo
	locker   *testutil.LocalLocker
	service  *BillingService
}

func newBillingFixture(t *testing.T, now time.Time) *billingFixture {
	t.Helper()

	subs := testutil.NewMemorySubscriptionRepo()
	clients := testutil.NewMemoryClientRepo()
	pkgs := testutil.NewMemoryPackageRepo()
	invoices := testutil.NewMemoryInvoiceRepo(subs, clients)
	locker := testutil.NewLocalLocker()

	clients.Put(&client.Client{ID: 10, TenantID: testTenant, Name: "Acme Fitness"})
	pkgs.Put(&catalog.Package{ID: 20, TenantID: testTenant, Name: "Gold", Credits: 8, IsActive: true})

	service := NewBillingService(subs, invoices, pkgs, locker, zap.NewNop()).
		WithClock(func() time.Time { return now })

	return &billingFixture{subs: subs, invoices: invoices, clients: clients, pkgs: pkgs, locker: locker, service: service}
}

func (f *billingFixture) addActive(t *testing.T, next time.Time, mutate func(*subscription.Subscription)) *subscription.Subscription {
	t.Helper()

	sub := &subscription.Subscription{
		TenantID:              testTenant,
		SubscriptionReference: fmt.Sprintf("SUB-%d", time.Now().UnixNano()),
		ClientID:              10,
		Amount:                decimal.RequireFromString("49.90"),
		Currency:              "EUR",
		Frequency:             subscription.FrequencyMonthly,
		StartDate:             next.AddDate(0, -1, 0),
		NextBillingDate:       next,
		AutoRenew:             true,
		MaxRetries:            3,
		Status:                subscription.StatusActive,
	}
	if mutate != nil {
		mutate(sub)
	}
	require.NoError(t, f.subs.Create(context.Background(), sub))
	return sub
}

func TestProcessDueSubscriptions_GeneratesInvoice(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	sub := f.addActive(t, now, nil)

	result, err := f.service.ProcessDueSubscriptions(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Expired)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.InvoiceIDs, 1)

	invoices := f.invoices.Invoices()
	require.Len(t, invoices, 1)
	inv := invoices[0]
	assert.Equal(t, "FA20240001", inv.InvoiceNumber)
	assert.Equal(t, invoice.StatusSent, inv.Status)
	assert.Equal(t, now, inv.IssueDate)
	assert.Equal(t, now.AddDate(0, 0, invoice.PaymentTermDays), inv.DueDate)
	assert.True(t, inv.Total.Equal(sub.Amount))
	assert.True(t, inv.AmountRemaining.Equal(sub.Amount))
	assert.True(t, inv.Tax.IsZero())
	assert.Equal(t, sub.ID, inv.SubscriptionID.Int64)

	stored := f.subs.Get(sub.ID)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), stored.NextBillingDate)
	assert.Equal(t, subscription.PaymentStatusPending, stored.LastPaymentStatus.String)
	assert.Equal(t, now, stored.LastPaymentDate.Time)
	assert.False(t, stored.ReminderSent)
	assert.Zero(t, stored.RetryCount)
}

func TestProcessDueSubscriptions_NoDoubleBilling(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	f.addActive(t, now, nil)

	first, err := f.service.ProcessDueSubscriptions(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)

	// Second run at the same instant finds nothing due.
	second, err := f.service.ProcessDueSubscriptions(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Zero(t, second.Processed)
	assert.Len(t, f.invoices.Invoices(), 1)
}

func TestProcessDueSubscriptions_LateRunKeepsAnchor(t *testing.T) {
	// The processor runs 10 days late; the next date still advances from the
	// scheduled date, not from the run time.
	now := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	sub := f.addActive(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), nil)

	result, err := f.service.ProcessDueSubscriptions(context.Background(), testTenant)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)

	stored := f.subs.Get(sub.ID)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), stored.NextBillingDate)
}

func TestProcessDueSubscriptions_ExpiresNonRenewing(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	noRenew := f.addActive(t, now, func(s *subscription.Subscription) { s.AutoRenew = false })
	ended := f.addActive(t, now, func(s *subscription.Subscription) {
		s.EndDate = sql.NullTime{Time: now.AddDate(0, 0, -1), Valid: true}
	})
	renewing := f.addActive(t, now, nil)

	result, err := f.service.ProcessDueSubscriptions(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Expired)
	assert.Equal(t, 1, result.Processed)

	assert.Equal(t, subscription.StatusExpired, f.subs.Get(noRenew.ID).Status)
	assert.Equal(t, subscription.StatusExpired, f.subs.Get(ended.ID).Status)
	assert.Equal(t, subscription.StatusActive, f.subs.Get(renewing.ID).Status)

	// No invoices for the expired ones.
	require.Len(t, f.invoices.Invoices(), 1)
	assert.Equal(t, renewing.ID, f.invoices.Invoices()[0].SubscriptionID.Int64)
}

func TestProcessDueSubscriptions_PackageCreditsGranted(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	f.addActive(t, now, func(s *subscription.Subscription) {
		s.PackageID = sql.NullInt64{Int64: 20, Valid: true}
	})

	result, err := f.service.ProcessDueSubscriptions(context.Background(), testTenant)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)

	assert.Equal(t, 8, f.clients.Get(10).CreditsRemaining)

	inv := f.invoices.Invoices()[0]
	assert.Equal(t, `Recurring billing for package "Gold"`, inv.Notes.String)
}

func TestProcessDueSubscriptions_FailureIsolation(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	bad := f.addActive(t, now, nil)
	good := f.addActive(t, now, nil)
	f.invoices.FailCommitFor[bad.ID] = true

	result, err := f.service.ProcessDueSubscriptions(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, bad.ID, result.Failures[0].SubscriptionID)

	// The failed subscription keeps its old billing date and stays due.
	assert.Equal(t, now, f.subs.Get(bad.ID).NextBillingDate)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), f.subs.Get(good.ID).NextBillingDate)
}

func TestNextInvoiceNumber_SequencePerTenantAndYear(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	n1, lease1, err := f.service.NextInvoiceNumber(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, "FA20240001", n1)

	// The sequence only advances once an invoice is actually stored.
	require.NoError(t, f.invoices.Create(context.Background(), &invoice.Invoice{
		TenantID: testTenant, InvoiceNumber: n1, ClientID: 10,
	}))
	require.NoError(t, lease1.Release(context.Background()))

	n2, lease2, err := f.service.NextInvoiceNumber(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, "FA20240002", n2)
	require.NoError(t, lease2.Release(context.Background()))

	// A different tenant starts at 0001.
	other, otherLease, err := f.service.NextInvoiceNumber(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "FA20240001", other)
	require.NoError(t, otherLease.Release(context.Background()))

	// Numbering runs under the tenant-scoped lock.
	assert.Equal(t, 2, f.locker.Acquired["billing:invoice_no:1"])
	assert.Equal(t, 1, f.locker.Acquired["billing:invoice_no:2"])
}

func TestNextInvoiceNumber_ContinuesFromExisting(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	require.NoError(t, f.invoices.Create(context.Background(), &invoice.Invoice{
		TenantID: testTenant, InvoiceNumber: "FA20240041", ClientID: 10,
	}))

	n, lease, err := f.service.NextInvoiceNumber(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, "FA20240042", n)
	require.NoError(t, lease.Release(context.Background()))
}

func TestNextInvoiceNumber_ResetsEachYear(t *testing.T) {
	now := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	require.NoError(t, f.invoices.Create(context.Background(), &invoice.Invoice{
		TenantID: testTenant, InvoiceNumber: "FA20249999", ClientID: 10,
	}))

	n, lease, err := f.service.NextInvoiceNumber(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, "FA20250001", n)
	require.NoError(t, lease.Release(context.Background()))
}

func TestNextInvoiceNumber_MalformedExisting(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	require.NoError(t, f.invoices.Create(context.Background(), &invoice.Invoice{
		TenantID: testTenant, InvoiceNumber: "FA2024-X1", ClientID: 10,
	}))

	_, _, err := f.service.NextInvoiceNumber(context.Background(), testTenant)
	assert.Error(t, err)

	// The lease is released on error, so the next caller is not blocked.
	require.NoError(t, f.invoices.Create(context.Background(), &invoice.Invoice{
		TenantID: 2, InvoiceNumber: "FA20240001", ClientID: 10,
	}))
	n, lease, err := f.service.NextInvoiceNumber(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "FA20240002", n)
	require.NoError(t, lease.Release(context.Background()))
}

func TestNextInvoiceNumber_HeldUntilInvoiceStored(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	n1, lease1, err := f.service.NextInvoiceNumber(context.Background(), testTenant)
	require.NoError(t, err)
	require.Equal(t, "FA20240001", n1)

	// A concurrent run for the same tenant must block until the first
	// invoice is stored and its lease released, otherwise both read the
	// same last number.
	type allocation struct {
		number string
		err    error
	}
	done := make(chan allocation, 1)
	go func() {
		n2, lease2, err := f.service.NextInvoiceNumber(context.Background(), testTenant)
		if err == nil {
			err = lease2.Release(context.Background())
		}
		done <- allocation{number: n2, err: err}
	}()

	select {
	case got := <-done:
		t.Fatalf("second allocation completed before the first invoice was stored: %q", got.number)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, f.invoices.Create(context.Background(), &invoice.Invoice{
		TenantID: testTenant, InvoiceNumber: n1, ClientID: 10,
	}))
	require.NoError(t, lease1.Release(context.Background()))

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, "FA20240002", got.number)
	assert.NotEqual(t, n1, got.number)
}

func TestNextInvoiceNumber_GrowsPastFourDigits(t *testing.T) {
	now := time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	require.NoError(t, f.invoices.Create(context.Background(), &invoice.Invoice{
		TenantID: testTenant, InvoiceNumber: "FA20249999", ClientID: 10,
	}))

	n1, lease1, err := f.service.NextInvoiceNumber(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, "FA202410000", n1)

	require.NoError(t, f.invoices.Create(context.Background(), &invoice.Invoice{
		TenantID: testTenant, InvoiceNumber: n1, ClientID: 10,
	}))
	require.NoError(t, lease1.Release(context.Background()))

	// The longer number must win over FA20249999 despite sorting lower
	// lexicographically.
	n2, lease2, err := f.service.NextInvoiceNumber(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, "FA202410001", n2)
	require.NoError(t, lease2.Release(context.Background()))
}

func TestConsecutiveCyclesNumberSequentially(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	f := newBillingFixture(t, now)

	f.addActive(t, now, nil)
	f.addActive(t, now, nil)
	f.addActive(t, now, nil)

	result, err := f.service.ProcessDueSubscriptions(context.Background(), testTenant)
	require.NoError(t, err)
	require.Equal(t, 3, result.Processed)

	var numbers []string
	for _, inv := range f.invoices.Invoices() {
		numbers = append(numbers, inv.InvoiceNumber)
	}
	assert.Equal(t, []string{"FA20240001", "FA20240002", "FA20240003"}, numbers)
}
