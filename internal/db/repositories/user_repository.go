// Package repositories implements the data access layer (repository pattern)
// for the credential store. Handlers and services never issue SQL directly —
// all database access goes through this layer, which keeps query logic
// testable in isolation and prevents accidental cross-domain data access.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/maritime-ai/maritime-ai-backend/internal/db/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new user. The caller must have hashed the password
// already; this layer never sees plaintext secrets.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	query := `
		INSERT INTO users (email, password_hash, name, tenant_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.TenantID,
		user.CreatedAt,
		user.UpdatedAt,
	)

	return err
}

// GetUserByEmail retrieves a user by email. Returns (nil, nil) when no user
// exists so callers can distinguish "absent" from a query failure.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT email, password_hash, name, tenant_id, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.TenantID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return user, nil
}

// UpdateUserProfile updates the display name of an existing user.
func (r *UserRepository) UpdateUserProfile(ctx context.Context, email, name string) error {
	query := `
		UPDATE users
		SET name = $2, updated_at = NOW()
		WHERE email = $1
	`

	_, err := r.db.ExecContext(ctx, query, email, name)
	return err
}

// DeleteUser removes a user account.
func (r *UserRepository) DeleteUser(ctx context.Context, email string) error {
	query := `DELETE FROM users WHERE email = $1`
	_, err := r.db.ExecContext(ctx, query, email)
	return err
}
