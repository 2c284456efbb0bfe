// internal/service/payment/retry_service.go
package payment

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/payment"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/subscription"
	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"

	"go.uber.org/zap"
)

// DefaultChargeTimeout bounds every gateway call; expiry is treated as a
// gateway error and increments the retry counter.
const DefaultChargeTimeout = 30 * time.Second

type RetryService struct {
	subscriptionRepo subscription.Repository
	gateway          payment.Gateway
	logger           *zap.Logger
	chargeTimeout    time.Duration
	now              func() time.Time
}

func NewRetryService(
	subscriptionRepo subscription.Repository,
	gateway payment.Gateway,
	chargeTimeout time.Duration,
	logger *zap.Logger,
) *RetryService {
	if chargeTimeout <= 0 {
		chargeTimeout = DefaultChargeTimeout
	}
	return &RetryService{
		subscriptionRepo: subscriptionRepo,
		gateway:          gateway,
		logger:           logger,
		chargeTimeout:    chargeTimeout,
		now:              time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *RetryService) WithClock(now func() time.Time) *RetryService {
	s.now = now
	return s
}

// RetryPayment attempts one off-session charge for the subscription.
//
// The retry counter is persisted on every branch, success or failure, so a
// run of failed attempts monotonically approaches the terminal PAST_DUE
// state. Once retry_count has reached max_retries the subscription is moved
// to PAST_DUE and no further gateway calls are made.
func (s *RetryService) RetryPayment(ctx context.Context, tenantID, subscriptionID int64) (*subscription.Subscription, error) {
	sub, err := s.subscriptionRepo.FindByID(ctx, tenantID, subscriptionID)
	if err != nil {
		return nil, err
	}

	maxRetries := sub.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	if sub.RetryCount >= maxRetries {
		lastStatus := subscription.PaymentStatusFailed
		if sub.LastPaymentStatus.Valid {
			lastStatus = sub.LastPaymentStatus.String
		}
		if err := s.persist(ctx, sub, sub.RetryCount, lastStatus, sub.LastPaymentDate, subscription.StatusPastDue); err != nil {
			return nil, err
		}
		s.logger.Warn("subscription past due, automatic retries exhausted",
			zap.Int64("subscription_id", sub.ID),
			zap.Int64("tenant_id", tenantID),
			zap.Int("retry_count", sub.RetryCount),
		)
		return sub, xerrors.ErrMaxRetries
	}

	if !sub.HasPaymentMethod() {
		return s.recordFailure(ctx, sub, maxRetries, subscription.PaymentStatusFailed, xerrors.ErrNoPaymentMethod)
	}

	attempt := sub.RetryCount + 1
	chargeCtx, cancel := context.WithTimeout(ctx, s.chargeTimeout)
	defer cancel()

	result, err := s.gateway.ChargeOffSession(chargeCtx, &payment.ChargeRequest{
		CustomerID:      sub.GatewayCustomerID.String,
		PaymentMethodID: sub.GatewayPaymentMethodID.String,
		Amount:          sub.Amount,
		Currency:        sub.Currency,
		Metadata: map[string]string{
			"subscription_id":        strconv.FormatInt(sub.ID, 10),
			"subscription_reference": sub.SubscriptionReference,
			"tenant_id":              strconv.FormatInt(sub.TenantID, 10),
			"client_id":              strconv.FormatInt(sub.ClientID, 10),
			"retry_attempt":          strconv.Itoa(attempt),
		},
	})
	if err != nil {
		return s.recordFailure(ctx, sub, maxRetries, subscription.PaymentStatusFailed, xerrors.Wrap(xerrors.ErrGateway, err.Error()))
	}

	switch result.Status {
	case payment.ChargeSucceeded:
		sub.Status = subscription.StatusActive
		if err := s.persist(ctx, sub, 0, subscription.PaymentStatusPaid, sql.NullTime{Time: s.now(), Valid: true}, subscription.StatusActive); err != nil {
			return nil, err
		}
		s.logger.Info("payment retry succeeded",
			zap.Int64("subscription_id", sub.ID),
			zap.Int64("tenant_id", tenantID),
			zap.Int("attempt", attempt),
			zap.String("gateway_charge_id", result.ExternalID),
		)
		return sub, nil

	case payment.ChargeProcessing:
		// Money is in flight; count the attempt but do not retry again this
		// cycle.
		if err := s.persist(ctx, sub, attempt, subscription.PaymentStatusProcessing, sub.LastPaymentDate, sub.Status); err != nil {
			return nil, err
		}
		s.logger.Info("payment retry processing",
			zap.Int64("subscription_id", sub.ID),
			zap.Int64("tenant_id", tenantID),
			zap.Int("attempt", attempt),
			zap.String("gateway_charge_id", result.ExternalID),
		)
		return sub, nil

	case payment.ChargeRequiresAction:
		// Soft failure: the customer has to authenticate; not a decline.
		return s.recordFailure(ctx, sub, maxRetries, subscription.PaymentStatusRequiresAction, xerrors.ErrRequiresAction)

	default:
		return s.recordFailure(ctx, sub, maxRetries, subscription.PaymentStatusFailed,
			xerrors.Wrap(xerrors.ErrGateway, fmt.Sprintf("unrecognized charge status %q", result.Status)))
	}
}

// recordFailure increments the retry counter, persists the failure and moves
// the subscription to PAST_DUE when the budget is exhausted.
func (s *RetryService) recordFailure(ctx context.Context, sub *subscription.Subscription, maxRetries int, paymentStatus string, cause error) (*subscription.Subscription, error) {
	attempt := sub.RetryCount + 1

	status := sub.Status
	if attempt >= maxRetries {
		status = subscription.StatusPastDue
	}

	if err := s.persist(ctx, sub, attempt, paymentStatus, sub.LastPaymentDate, status); err != nil {
		return nil, err
	}

	s.logger.Warn("payment retry failed",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("tenant_id", sub.TenantID),
		zap.Int("attempt", attempt),
		zap.Int("max_retries", maxRetries),
		zap.String("last_payment_status", paymentStatus),
		zap.Error(cause),
	)

	return sub, cause
}

// persist writes the retry bookkeeping and mirrors it onto the in-memory
// entity so callers see the post-attempt state.
func (s *RetryService) persist(ctx context.Context, sub *subscription.Subscription, retryCount int, paymentStatus string, paymentDate sql.NullTime, status subscription.Status) error {
	if err := s.subscriptionRepo.RecordPaymentAttempt(ctx, sub.TenantID, sub.ID, retryCount, paymentStatus, paymentDate, status); err != nil {
		return fmt.Errorf("failed to record payment attempt: %w", err)
	}
	sub.RetryCount = retryCount
	sub.LastPaymentStatus = sql.NullString{String: paymentStatus, Valid: true}
	sub.LastPaymentDate = paymentDate
	sub.Status = status
	return nil
}

// RunPending retries every subscription with an unresolved payment, each in
// isolation. Processing results count as successes; exhausted budgets and
// hard declines count as failures.
func (s *RetryService) RunPending(ctx context.Context, tenantID int64) (*subscription.RetryRunResult, error) {
	candidates, err := s.subscriptionRepo.FindRetryCandidates(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query retry candidates: %w", err)
	}

	result := &subscription.RetryRunResult{}
	for i := range candidates {
		sub := &candidates[i]
		result.Attempted++

		if _, err := s.RetryPayment(ctx, sub.TenantID, sub.ID); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, subscription.ItemFailure{
				SubscriptionID: sub.ID,
				Error:          err.Error(),
			})
			continue
		}
		result.Succeeded++
	}

	s.logger.Info("payment retry run completed",
		zap.Int64("tenant_id", tenantID),
		zap.Int("attempted", result.Attempted),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}
