// internal/domain/subscription/dto.go
package subscription

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateSubscriptionRequest struct {
	TenantID   int64           `json:"tenant_id"`
	ClientID   int64           `json:"client_id" binding:"required"`
	PackageID  *int64          `json:"package_id,omitempty"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Currency   string          `json:"currency" binding:"required"`
	Frequency  Frequency       `json:"frequency" binding:"required"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
	BillingDay *int            `json:"billing_day,omitempty"`
	AutoRenew  bool            `json:"auto_renew"`
	MaxRetries int             `json:"max_retries,omitempty"`

	GatewayCustomerID      string `json:"gateway_customer_id,omitempty"`
	GatewaySubscriptionID  string `json:"gateway_subscription_id,omitempty"`
	GatewayPaymentMethodID string `json:"gateway_payment_method_id,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type CancelSubscriptionRequest struct {
	Reason    string `json:"reason,omitempty"`
	Immediate bool   `json:"immediate"`
}

type ListFilters struct {
	Status   Status `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

type ListResponse struct {
	Subscriptions []Subscription `json:"subscriptions"`
	Total         int64          `json:"total"`
	Page          int            `json:"page"`
	PageSize      int            `json:"page_size"`
	TotalPages    int            `json:"total_pages"`
}

// ItemFailure records a single subscription's failure inside a batch run.
// Batches never abort on item failures; callers inspect these instead.
type ItemFailure struct {
	SubscriptionID int64  `json:"subscription_id"`
	Error          string `json:"error"`
}

// BillingRunResult is the outcome of one billing cycle processor run.
type BillingRunResult struct {
	Processed  int           `json:"processed"`
	Expired    int           `json:"expired"`
	Failed     int           `json:"failed"`
	InvoiceIDs []int64       `json:"invoice_ids"`
	Failures   []ItemFailure `json:"failures,omitempty"`
}

// ReminderRunResult is the outcome of one reminder scheduler run.
type ReminderRunResult struct {
	Sent        int           `json:"sent"`
	Skipped     int           `json:"skipped"`
	RemindedIDs []int64       `json:"reminded_ids"`
	Failures    []ItemFailure `json:"failures,omitempty"`
}

// RetryRunResult is the outcome of one payment retry batch.
type RetryRunResult struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}
