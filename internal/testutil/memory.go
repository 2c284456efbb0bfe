// internal/testutil/memory.go
// Package testutil provides in-memory repository implementations for service
// tests. They mirror the persistence semantics of the postgres layer closely
// enough for behavioral tests: copies in, copies out, tenant scoping, and
// transactional CommitCycle.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/catalog"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/client"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/invoice"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/subscription"
	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"
)

// ---------------------------------------------------------------------------
// Subscriptions
// ---------------------------------------------------------------------------

type MemorySubscriptionRepo struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]*subscription.Subscription
}

func NewMemorySubscriptionRepo() *MemorySubscriptionRepo {
	return &MemorySubscriptionRepo{subs: make(map[int64]*subscription.Subscription)}
}

func (r *MemorySubscriptionRepo) Create(_ context.Context, sub *subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub.ID = r.nextID
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt

	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *MemorySubscriptionRepo) FindByID(_ context.Context, tenantID, id int64) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || sub.TenantID != tenantID {
		return nil, xerrors.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *MemorySubscriptionRepo) List(_ context.Context, tenantID int64, filters *subscription.ListFilters) ([]subscription.Subscription, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []subscription.Subscription
	for _, sub := range r.sorted() {
		if sub.TenantID != tenantID {
			continue
		}
		if filters.Status != "" && sub.Status != filters.Status {
			continue
		}
		all = append(all, *sub)
	}

	total := int64(len(all))
	start := (filters.Page - 1) * filters.PageSize
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + filters.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *MemorySubscriptionRepo) Update(_ context.Context, sub *subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(sub)
}

func (r *MemorySubscriptionRepo) updateLocked(sub *subscription.Subscription) error {
	existing, ok := r.subs[sub.ID]
	if !ok || existing.TenantID != sub.TenantID {
		return xerrors.ErrNotFound
	}
	cp := *sub
	cp.UpdatedAt = time.Now()
	r.subs[sub.ID] = &cp
	return nil
}

func (r *MemorySubscriptionRepo) UpdateStatus(_ context.Context, tenantID, id int64, status subscription.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || sub.TenantID != tenantID {
		return xerrors.ErrNotFound
	}
	sub.Status = status
	sub.UpdatedAt = time.Now()
	return nil
}

func (r *MemorySubscriptionRepo) FindDue(_ context.Context, tenantID int64, now time.Time) ([]subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []subscription.Subscription
	for _, sub := range r.sorted() {
		if tenantID != 0 && sub.TenantID != tenantID {
			continue
		}
		if sub.Status == subscription.StatusActive && !sub.NextBillingDate.After(now) {
			due = append(due, *sub)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextBillingDate.Before(due[j].NextBillingDate) })
	return due, nil
}

func (r *MemorySubscriptionRepo) FindDueForReminder(_ context.Context, tenantID int64, from, to time.Time) ([]subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []subscription.Subscription
	for _, sub := range r.sorted() {
		if tenantID != 0 && sub.TenantID != tenantID {
			continue
		}
		if sub.Status != subscription.StatusActive || !sub.AutoRenew || sub.ReminderSent {
			continue
		}
		if sub.NextBillingDate.Before(from) || sub.NextBillingDate.After(to) {
			continue
		}
		due = append(due, *sub)
	}
	return due, nil
}

func (r *MemorySubscriptionRepo) FindRetryCandidates(_ context.Context, tenantID int64) ([]subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []subscription.Subscription
	for _, sub := range r.sorted() {
		if tenantID != 0 && sub.TenantID != tenantID {
			continue
		}
		if sub.Status != subscription.StatusActive {
			continue
		}
		if sub.RetryCount >= sub.MaxRetries {
			continue
		}
		switch sub.LastPaymentStatus.String {
		case subscription.PaymentStatusPending, subscription.PaymentStatusFailed, subscription.PaymentStatusRequiresAction:
			candidates = append(candidates, *sub)
		}
	}
	return candidates, nil
}

func (r *MemorySubscriptionRepo) MarkReminderSent(_ context.Context, tenantID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || sub.TenantID != tenantID {
		return xerrors.ErrNotFound
	}
	sub.ReminderSent = true
	return nil
}

func (r *MemorySubscriptionRepo) RecordPaymentAttempt(_ context.Context, tenantID, id int64, retryCount int, lastPaymentStatus string, lastPaymentDate sql.NullTime, status subscription.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || sub.TenantID != tenantID {
		return xerrors.ErrNotFound
	}
	sub.RetryCount = retryCount
	sub.LastPaymentStatus = sql.NullString{String: lastPaymentStatus, Valid: true}
	sub.LastPaymentDate = lastPaymentDate
	sub.Status = status
	sub.UpdatedAt = time.Now()
	return nil
}

func (r *MemorySubscriptionRepo) CountByStatus(_ context.Context, tenantID int64) (map[subscription.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[subscription.Status]int64)
	for _, sub := range r.subs {
		if tenantID != 0 && sub.TenantID != tenantID {
			continue
		}
		counts[sub.Status]++
	}
	return counts, nil
}

func (r *MemorySubscriptionRepo) ActiveAmounts(_ context.Context, tenantID int64) ([]subscription.ActiveAmount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var amounts []subscription.ActiveAmount
	for _, sub := range r.sorted() {
		if tenantID != 0 && sub.TenantID != tenantID {
			continue
		}
		if sub.Status == subscription.StatusActive {
			amounts = append(amounts, subscription.ActiveAmount{Amount: sub.Amount, Frequency: sub.Frequency})
		}
	}
	return amounts, nil
}

func (r *MemorySubscriptionRepo) CountUpcomingRenewals(_ context.Context, tenantID int64, from, until time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, sub := range r.subs {
		if tenantID != 0 && sub.TenantID != tenantID {
			continue
		}
		if sub.Status == subscription.StatusActive &&
			!sub.NextBillingDate.Before(from) && !sub.NextBillingDate.After(until) {
			count++
		}
	}
	return count, nil
}

// Get reads the stored state directly, bypassing tenant scoping. Test-only.
func (r *MemorySubscriptionRepo) Get(id int64) *subscription.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[id]; ok {
		cp := *sub
		return &cp
	}
	return nil
}

func (r *MemorySubscriptionRepo) sorted() []*subscription.Subscription {
	out := make([]*subscription.Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---------------------------------------------------------------------------
// Invoices
// ---------------------------------------------------------------------------

type MemoryInvoiceRepo struct {
	mu       sync.Mutex
	nextID   int64
	invoices []invoice.Invoice

	subs    *MemorySubscriptionRepo
	clients *MemoryClientRepo

	// FailCommitFor makes CommitCycle fail for the given subscription IDs.
	FailCommitFor map[int64]bool
}

func NewMemoryInvoiceRepo(subs *MemorySubscriptionRepo, clients *MemoryClientRepo) *MemoryInvoiceRepo {
	return &MemoryInvoiceRepo{
		subs:          subs,
		clients:       clients,
		FailCommitFor: make(map[int64]bool),
	}
}

func (r *MemoryInvoiceRepo) Create(_ context.Context, inv *invoice.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createLocked(inv)
	return nil
}

func (r *MemoryInvoiceRepo) createLocked(inv *invoice.Invoice) {
	r.nextID++
	inv.ID = r.nextID
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	r.invoices = append(r.invoices, *inv)
}

func (r *MemoryInvoiceRepo) FindByID(_ context.Context, tenantID, id int64) (*invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.invoices {
		if r.invoices[i].ID == id && r.invoices[i].TenantID == tenantID {
			cp := r.invoices[i]
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *MemoryInvoiceRepo) ListByTenant(_ context.Context, tenantID int64, limit int) ([]invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []invoice.Invoice
	for i := len(r.invoices) - 1; i >= 0 && len(out) < limit; i-- {
		if r.invoices[i].TenantID == tenantID {
			out = append(out, r.invoices[i])
		}
	}
	return out, nil
}

func (r *MemoryInvoiceRepo) ListBySubscription(_ context.Context, tenantID, subscriptionID int64) ([]invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []invoice.Invoice
	for i := range r.invoices {
		inv := r.invoices[i]
		if inv.TenantID == tenantID && inv.SubscriptionID.Valid && inv.SubscriptionID.Int64 == subscriptionID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *MemoryInvoiceRepo) MaxNumberForPrefix(_ context.Context, tenantID int64, prefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	max := ""
	for i := range r.invoices {
		inv := r.invoices[i]
		if inv.TenantID != tenantID || !strings.HasPrefix(inv.InvoiceNumber, prefix) {
			continue
		}
		// Longer numbers carry a larger sequence, matching the repository's
		// length-then-text ordering.
		if len(inv.InvoiceNumber) > len(max) ||
			(len(inv.InvoiceNumber) == len(max) && inv.InvoiceNumber > max) {
			max = inv.InvoiceNumber
		}
	}
	return max, nil
}

func (r *MemoryInvoiceRepo) CommitCycle(ctx context.Context, commit *invoice.CycleCommit) error {
	r.mu.Lock()
	if r.FailCommitFor[commit.Subscription.ID] {
		r.mu.Unlock()
		return fmt.Errorf("simulated commit failure for subscription %d", commit.Subscription.ID)
	}
	r.createLocked(commit.Invoice)
	r.mu.Unlock()

	if err := r.subs.Update(ctx, commit.Subscription); err != nil {
		return err
	}
	if commit.CreditGrant > 0 && r.clients != nil {
		if err := r.clients.AddCredits(ctx, commit.Invoice.TenantID, commit.Invoice.ClientID, commit.CreditGrant); err != nil {
			return err
		}
	}
	return nil
}

// Invoices returns a snapshot of everything created so far. Test-only.
func (r *MemoryInvoiceRepo) Invoices() []invoice.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]invoice.Invoice(nil), r.invoices...)
}

// ---------------------------------------------------------------------------
// Clients
// ---------------------------------------------------------------------------

type MemoryClientRepo struct {
	mu      sync.Mutex
	clients map[int64]*client.Client
}

func NewMemoryClientRepo() *MemoryClientRepo {
	return &MemoryClientRepo{clients: make(map[int64]*client.Client)}
}

func (r *MemoryClientRepo) Put(c *client.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.clients[c.ID] = &cp
}

func (r *MemoryClientRepo) FindByID(_ context.Context, tenantID, id int64) (*client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok || c.TenantID != tenantID {
		return nil, xerrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryClientRepo) AddCredits(_ context.Context, tenantID, id int64, credits int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok || c.TenantID != tenantID {
		return xerrors.ErrNotFound
	}
	c.CreditsRemaining += credits
	return nil
}

func (r *MemoryClientRepo) SetMembership(_ context.Context, tenantID, id int64, membershipType string, expiry sql.NullTime) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok || c.TenantID != tenantID {
		return xerrors.ErrNotFound
	}
	c.MembershipType = sql.NullString{String: membershipType, Valid: true}
	c.MembershipExpiry = expiry
	return nil
}

// Get reads the stored state directly. Test-only.
func (r *MemoryClientRepo) Get(id int64) *client.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		cp := *c
		return &cp
	}
	return nil
}

// ---------------------------------------------------------------------------
// Packages
// ---------------------------------------------------------------------------

type MemoryPackageRepo struct {
	mu       sync.Mutex
	packages map[int64]*catalog.Package
}

func NewMemoryPackageRepo() *MemoryPackageRepo {
	return &MemoryPackageRepo{packages: make(map[int64]*catalog.Package)}
}

func (r *MemoryPackageRepo) Put(p *catalog.Package) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.packages[p.ID] = &cp
}

func (r *MemoryPackageRepo) FindByID(_ context.Context, tenantID, id int64) (*catalog.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.packages[id]
	if !ok || p.TenantID != tenantID {
		return nil, xerrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}
