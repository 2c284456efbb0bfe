// internal/domain/invoice/entity.go
package invoice

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "draft"
	StatusSent      InvoiceStatus = "sent"
	StatusPaid      InvoiceStatus = "paid"
	StatusCancelled InvoiceStatus = "cancelled"
)

// PaymentTermDays is the fixed payment term applied to recurring invoices.
const PaymentTermDays = 14

type Invoice struct {
	ID            int64  `json:"id" db:"id"`
	TenantID      int64  `json:"tenant_id" db:"tenant_id"`
	InvoiceNumber string `json:"invoice_number" db:"invoice_number"`

	ClientID       int64         `json:"client_id" db:"client_id"`
	SubscriptionID sql.NullInt64 `json:"subscription_id,omitempty" db:"subscription_id"`

	Status    InvoiceStatus `json:"status" db:"status"`
	IssueDate time.Time     `json:"issue_date" db:"issue_date"`
	DueDate   time.Time     `json:"due_date" db:"due_date"`

	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	Tax             decimal.Decimal `json:"tax" db:"tax"`
	Total           decimal.Decimal `json:"total" db:"total"`
	AmountPaid      decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	AmountRemaining decimal.Decimal `json:"amount_remaining" db:"amount_remaining"`
	Currency        string          `json:"currency" db:"currency"`

	Notes sql.NullString `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
