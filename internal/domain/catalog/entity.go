// internal/domain/catalog/entity.go
package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Package is a credit bundle a subscription can carry; its credits are
// granted to the client once per successful billing cycle.
type Package struct {
	ID       int64           `json:"id" db:"id"`
	TenantID int64           `json:"tenant_id" db:"tenant_id"`
	Name     string          `json:"name" db:"name"`
	Credits  int             `json:"credits" db:"credits"`
	Price    decimal.Decimal `json:"price" db:"price"`
	IsActive bool            `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Repository interface {
	FindByID(ctx context.Context, tenantID, id int64) (*Package, error)
}
