// internal/domain/client/repository.go
package client

import (
	"context"
	"database/sql"
)

type Repository interface {
	FindByID(ctx context.Context, tenantID, id int64) (*Client, error)

	// AddCredits atomically increments the client's remaining credits.
	AddCredits(ctx context.Context, tenantID, id int64, credits int) error

	SetMembership(ctx context.Context, tenantID, id int64, membershipType string, expiry sql.NullTime) error
}
