// internal/domain/subscription/entity.go
package subscription

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Valid reports whether f is one of the supported billing frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusPastDue   Status = "past_due"
)

// Last payment status values recorded on a subscription after each cycle or
// retry attempt.
const (
	PaymentStatusPending        = "pending"
	PaymentStatusPaid           = "paid"
	PaymentStatusFailed         = "failed"
	PaymentStatusRequiresAction = "requires_action"
	PaymentStatusProcessing     = "processing"
)

type Subscription struct {
	ID                    int64  `json:"id" db:"id"`
	TenantID              int64  `json:"tenant_id" db:"tenant_id"`
	SubscriptionReference string `json:"subscription_reference" db:"subscription_reference"`

	// Related entities
	ClientID  int64         `json:"client_id" db:"client_id"`
	PackageID sql.NullInt64 `json:"package_id,omitempty" db:"package_id"`

	// Pricing
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Currency string          `json:"currency" db:"currency"`

	// Schedule
	Frequency       Frequency     `json:"frequency" db:"frequency"`
	BillingDay      sql.NullInt32 `json:"billing_day,omitempty" db:"billing_day"`
	StartDate       time.Time     `json:"start_date" db:"start_date"`
	EndDate         sql.NullTime  `json:"end_date,omitempty" db:"end_date"`
	NextBillingDate time.Time     `json:"next_billing_date" db:"next_billing_date"`

	// Renewal
	AutoRenew    bool `json:"auto_renew" db:"auto_renew"`
	ReminderSent bool `json:"reminder_sent" db:"reminder_sent"`

	// Payment tracking
	RetryCount        int            `json:"retry_count" db:"retry_count"`
	MaxRetries        int            `json:"max_retries" db:"max_retries"`
	LastPaymentStatus sql.NullString `json:"last_payment_status,omitempty" db:"last_payment_status"`
	LastPaymentDate   sql.NullTime   `json:"last_payment_date,omitempty" db:"last_payment_date"`

	// Status
	Status             Status         `json:"status" db:"status"`
	PausedAt           sql.NullTime   `json:"paused_at,omitempty" db:"paused_at"`
	CancelledAt        sql.NullTime   `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason sql.NullString `json:"cancellation_reason,omitempty" db:"cancellation_reason"`

	// Payment-gateway linkage; absence disables automatic retry
	GatewayCustomerID      sql.NullString `json:"gateway_customer_id,omitempty" db:"gateway_customer_id"`
	GatewaySubscriptionID  sql.NullString `json:"gateway_subscription_id,omitempty" db:"gateway_subscription_id"`
	GatewayPaymentMethodID sql.NullString `json:"gateway_payment_method_id,omitempty" db:"gateway_payment_method_id"`

	// Metadata
	Metadata map[string]interface{} `json:"metadata,omitempty" db:"metadata"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasPaymentMethod reports whether the subscription carries enough gateway
// linkage for an off-session charge.
func (s *Subscription) HasPaymentMethod() bool {
	return s.GatewayCustomerID.Valid && s.GatewayCustomerID.String != "" &&
		s.GatewayPaymentMethodID.Valid && s.GatewayPaymentMethodID.String != ""
}

type SubscriptionStats struct {
	Active           int64           `json:"active"`
	Paused           int64           `json:"paused"`
	Cancelled        int64           `json:"cancelled"`
	MRR              decimal.Decimal `json:"mrr"`
	UpcomingRenewals int64           `json:"upcoming_renewals"`
}

// ActiveAmount is the projection the metrics aggregator needs per active
// subscription.
type ActiveAmount struct {
	Amount    decimal.Decimal `json:"amount"`
	Frequency Frequency       `json:"frequency"`
}
