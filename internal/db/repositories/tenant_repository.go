// tenant_repository.go implements TenantRepository over sqlx. Tenants are
// created exactly once per organization name — registration is the only
// creation path — and are never deleted in normal operation.
package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/maritime-ai/maritime-ai-backend/internal/db/models"
)

// TenantRepository handles tenant database operations
type TenantRepository struct {
	db *sqlx.DB
}

// NewTenantRepository creates a new TenantRepository
func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// GetByID retrieves a tenant by id. Returns (nil, nil) when absent.
func (r *TenantRepository) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := r.db.GetContext(ctx, tenant,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE id = $1`, id)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return tenant, nil
}

// GetByName retrieves a tenant by its unique display name. Returns (nil, nil)
// when absent.
func (r *TenantRepository) GetByName(ctx context.Context, name string) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := r.db.GetContext(ctx, tenant,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE name = $1`, name)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return tenant, nil
}

// Create inserts a new tenant and fills in the generated id and timestamps.
func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO tenants (name) VALUES ($1) RETURNING id, created_at, updated_at`,
		tenant.Name,
	).Scan(&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt)
}

// UpdateName changes a tenant's display name. The numeric id — and therefore
// the storage namespace — never changes.
func (r *TenantRepository) UpdateName(ctx context.Context, id int64, name string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET name = $2, updated_at = NOW() WHERE id = $1`, id, name)
	return err
}
