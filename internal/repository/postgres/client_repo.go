// internal/repository/postgres/client_repo.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/client"
	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClientRepository struct {
	db *pgxpool.Pool
}

func NewClientRepository(db *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) FindByID(ctx context.Context, tenantID, id int64) (*client.Client, error) {
	query := `
		SELECT id, tenant_id, name, email, phone,
		       credits_remaining, membership_type, membership_expiry,
		       created_at, updated_at
		FROM clients
		WHERE tenant_id = $1 AND id = $2
	`

	var c client.Client
	err := r.db.QueryRow(ctx, query, tenantID, id).Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone,
		&c.CreditsRemaining, &c.MembershipType, &c.MembershipExpiry,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find client: %w", err)
	}

	return &c, nil
}

func (r *ClientRepository) AddCredits(ctx context.Context, tenantID, id int64, credits int) error {
	query := `
		UPDATE clients
		SET credits_remaining = credits_remaining + $1, updated_at = $2
		WHERE tenant_id = $3 AND id = $4
	`

	result, err := r.db.Exec(ctx, query, credits, time.Now(), tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to add credits: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

func (r *ClientRepository) SetMembership(ctx context.Context, tenantID, id int64, membershipType string, expiry sql.NullTime) error {
	query := `
		UPDATE clients
		SET membership_type = $1, membership_expiry = $2, updated_at = $3
		WHERE tenant_id = $4 AND id = $5
	`

	result, err := r.db.Exec(ctx, query, membershipType, expiry, time.Now(), tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to set membership: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
