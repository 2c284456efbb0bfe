// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/catalog"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/client"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/subscription"
	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// MembershipTypeSubscription is stamped on a client while a package-backed
// subscription is in force.
const MembershipTypeSubscription = "subscription"

// DefaultMaxRetries is the retry budget applied when a create request does
// not specify one.
const DefaultMaxRetries = 3

type LifecycleService struct {
	subscriptionRepo subscription.Repository
	clientRepo       client.Repository
	packageRepo      catalog.Repository
	logger           *zap.Logger
	now              func() time.Time
	maxRetries       int
}

func NewLifecycleService(
	subscriptionRepo subscription.Repository,
	clientRepo client.Repository,
	packageRepo catalog.Repository,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		subscriptionRepo: subscriptionRepo,
		clientRepo:       clientRepo,
		packageRepo:      packageRepo,
		logger:           logger,
		now:              time.Now,
		maxRetries:       DefaultMaxRetries,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *LifecycleService) WithClock(now func() time.Time) *LifecycleService {
	s.now = now
	return s
}

// WithDefaultMaxRetries overrides the retry budget applied when a create
// request does not specify one. Values below one are ignored.
func (s *LifecycleService) WithDefaultMaxRetries(n int) *LifecycleService {
	if n > 0 {
		s.maxRetries = n
	}
	return s
}

// CreateSubscription creates an active subscription, computes its first
// billing date from the start date and, when a package is attached, grants
// the package credits to the client immediately.
func (s *LifecycleService) CreateSubscription(ctx context.Context, req *subscription.CreateSubscriptionRequest) (*subscription.Subscription, error) {
	if !req.Frequency.Valid() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("unknown billing frequency %q", req.Frequency))
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "amount must be positive")
	}

	// Verify client exists
	cl, err := s.clientRepo.FindByID(ctx, req.TenantID, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("client not found: %w", err)
	}

	var pkg *catalog.Package
	if req.PackageID != nil {
		pkg, err = s.packageRepo.FindByID(ctx, req.TenantID, *req.PackageID)
		if err != nil {
			return nil, fmt.Errorf("package not found: %w", err)
		}
	}

	startDate := req.StartDate
	if startDate.IsZero() {
		startDate = s.now()
	}

	billingDay := 0
	if req.BillingDay != nil {
		billingDay = *req.BillingDay
	}
	nextBilling, err := subscription.NextBillingDate(startDate, req.Frequency, billingDay)
	if err != nil {
		return nil, err
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = s.maxRetries
	}

	sub := &subscription.Subscription{
		TenantID:              req.TenantID,
		SubscriptionReference: generateSubscriptionReference(),
		ClientID:              req.ClientID,
		Amount:                req.Amount,
		Currency:              strings.ToUpper(req.Currency),
		Frequency:             req.Frequency,
		StartDate:             startDate,
		NextBillingDate:       nextBilling,
		AutoRenew:             req.AutoRenew,
		MaxRetries:            maxRetries,
		Status:                subscription.StatusActive,
		Metadata:              req.Metadata,
	}

	if req.PackageID != nil {
		sub.PackageID = sql.NullInt64{Int64: *req.PackageID, Valid: true}
	}
	if req.BillingDay != nil {
		sub.BillingDay = sql.NullInt32{Int32: int32(*req.BillingDay), Valid: true}
	}
	if req.EndDate != nil {
		sub.EndDate = sql.NullTime{Time: *req.EndDate, Valid: true}
	}
	if req.GatewayCustomerID != "" {
		sub.GatewayCustomerID = sql.NullString{String: req.GatewayCustomerID, Valid: true}
	}
	if req.GatewaySubscriptionID != "" {
		sub.GatewaySubscriptionID = sql.NullString{String: req.GatewaySubscriptionID, Valid: true}
	}
	if req.GatewayPaymentMethodID != "" {
		sub.GatewayPaymentMethodID = sql.NullString{String: req.GatewayPaymentMethodID, Valid: true}
	}

	if err := s.subscriptionRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	// Initial package credit grant, separate from the per-cycle grant the
	// billing processor performs.
	if pkg != nil {
		if err := s.clientRepo.AddCredits(ctx, req.TenantID, cl.ID, pkg.Credits); err != nil {
			s.logger.Error("failed to grant initial package credits",
				zap.Int64("subscription_id", sub.ID),
				zap.Int64("client_id", cl.ID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("failed to grant package credits: %w", err)
		}
		if err := s.clientRepo.SetMembership(ctx, req.TenantID, cl.ID, MembershipTypeSubscription, sub.EndDate); err != nil {
			s.logger.Warn("failed to set client membership", zap.Int64("client_id", cl.ID), zap.Error(err))
		}
	}

	s.logger.Info("subscription created",
		zap.Int64("subscription_id", sub.ID),
		zap.String("subscription_reference", sub.SubscriptionReference),
		zap.Int64("tenant_id", sub.TenantID),
		zap.Int64("client_id", sub.ClientID),
		zap.String("frequency", string(sub.Frequency)),
		zap.Time("next_billing_date", sub.NextBillingDate),
	)

	return sub, nil
}

// PauseSubscription transitions ACTIVE -> PAUSED. Paused subscriptions are
// never evaluated for due-ness until resumed.
func (s *LifecycleService) PauseSubscription(ctx context.Context, tenantID, subscriptionID int64) (*subscription.Subscription, error) {
	sub, err := s.subscriptionRepo.FindByID(ctx, tenantID, subscriptionID)
	if err != nil {
		return nil, err
	}

	if sub.Status != subscription.StatusActive {
		return nil, xerrors.Wrap(xerrors.ErrInvalidState, fmt.Sprintf("cannot pause subscription in status %q", sub.Status))
	}

	sub.Status = subscription.StatusPaused
	sub.PausedAt = sql.NullTime{Time: s.now(), Valid: true}

	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to pause subscription: %w", err)
	}

	s.logger.Info("subscription paused", zap.Int64("subscription_id", sub.ID), zap.Int64("tenant_id", tenantID))
	return sub, nil
}

// ResumeSubscription transitions PAUSED -> ACTIVE and recomputes the next
// billing date one full cycle from now. The billing-day anchor is not applied
// to the resume date itself; it re-establishes on the following advance.
func (s *LifecycleService) ResumeSubscription(ctx context.Context, tenantID, subscriptionID int64) (*subscription.Subscription, error) {
	sub, err := s.subscriptionRepo.FindByID(ctx, tenantID, subscriptionID)
	if err != nil {
		return nil, err
	}

	if sub.Status != subscription.StatusPaused {
		return nil, xerrors.Wrap(xerrors.ErrInvalidState, fmt.Sprintf("cannot resume subscription in status %q", sub.Status))
	}

	nextBilling, err := subscription.NextBillingDate(s.now(), sub.Frequency, 0)
	if err != nil {
		return nil, err
	}

	sub.Status = subscription.StatusActive
	sub.PausedAt = sql.NullTime{}
	sub.NextBillingDate = nextBilling
	sub.ReminderSent = false

	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to resume subscription: %w", err)
	}

	s.logger.Info("subscription resumed",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("tenant_id", tenantID),
		zap.Time("next_billing_date", sub.NextBillingDate),
	)
	return sub, nil
}

// CancelSubscription cancels immediately or at period end. Immediate
// cancellation is terminal; period-end cancellation turns off auto-renew and
// leaves the subscription active until the billing processor expires it at
// the cycle boundary.
func (s *LifecycleService) CancelSubscription(ctx context.Context, tenantID, subscriptionID int64, req *subscription.CancelSubscriptionRequest) (*subscription.Subscription, error) {
	sub, err := s.subscriptionRepo.FindByID(ctx, tenantID, subscriptionID)
	if err != nil {
		return nil, err
	}

	if sub.Status == subscription.StatusCancelled || sub.Status == subscription.StatusExpired {
		return nil, xerrors.Wrap(xerrors.ErrInvalidState, fmt.Sprintf("subscription is already %s", sub.Status))
	}

	now := s.now()
	sub.CancelledAt = sql.NullTime{Time: now, Valid: true}
	if req.Reason != "" {
		sub.CancellationReason = sql.NullString{String: req.Reason, Valid: true}
	}

	cancelType := "at period end"
	if req.Immediate {
		sub.Status = subscription.StatusCancelled
		sub.EndDate = sql.NullTime{Time: now, Valid: true}
		cancelType = "immediately"
	} else {
		sub.AutoRenew = false
	}

	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	s.logger.Info("subscription cancelled",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("tenant_id", tenantID),
		zap.String("cancel_type", cancelType),
		zap.String("reason", req.Reason),
	)
	return sub, nil
}

// GetSubscription retrieves a subscription by ID.
func (s *LifecycleService) GetSubscription(ctx context.Context, tenantID, subscriptionID int64) (*subscription.Subscription, error) {
	return s.subscriptionRepo.FindByID(ctx, tenantID, subscriptionID)
}

// ListSubscriptions retrieves subscriptions with filters.
func (s *LifecycleService) ListSubscriptions(ctx context.Context, tenantID int64, filters *subscription.ListFilters) (*subscription.ListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}

	subs, total, err := s.subscriptionRepo.List(ctx, tenantID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}

	return &subscription.ListResponse{
		Subscriptions: subs,
		Total:         total,
		Page:          filters.Page,
		PageSize:      filters.PageSize,
		TotalPages:    totalPages,
	}, nil
}

// generateSubscriptionReference generates a unique subscription reference.
func generateSubscriptionReference() string {
	return fmt.Sprintf("SUB-%s", ulid.Make())
}
