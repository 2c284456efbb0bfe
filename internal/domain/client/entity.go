// internal/domain/client/entity.go
package client

import (
	"database/sql"
	"time"
)

type Client struct {
	ID       int64  `json:"id" db:"id"`
	TenantID int64  `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`

	Email sql.NullString `json:"email,omitempty" db:"email"`
	Phone sql.NullString `json:"phone,omitempty" db:"phone"`

	// Recurring credits granted by subscription packages
	CreditsRemaining int            `json:"credits_remaining" db:"credits_remaining"`
	MembershipType   sql.NullString `json:"membership_type,omitempty" db:"membership_type"`
	MembershipExpiry sql.NullTime   `json:"membership_expiry,omitempty" db:"membership_expiry"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
