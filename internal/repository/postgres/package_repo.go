// internal/repository/postgres/package_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/catalog"
	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PackageRepository struct {
	db *pgxpool.Pool
}

func NewPackageRepository(db *pgxpool.Pool) *PackageRepository {
	return &PackageRepository{db: db}
}

func (r *PackageRepository) FindByID(ctx context.Context, tenantID, id int64) (*catalog.Package, error) {
	query := `
		SELECT id, tenant_id, name, credits, price, is_active, created_at, updated_at
		FROM packages
		WHERE tenant_id = $1 AND id = $2
	`

	var p catalog.Package
	err := r.db.QueryRow(ctx, query, tenantID, id).Scan(
		&p.ID, &p.TenantID, &p.Name, &p.Credits, &p.Price, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find package: %w", err)
	}

	return &p, nil
}
