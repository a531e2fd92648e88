// user.go defines the User model for login identities. The email address is
// the primary key; there is no surrogate id. A user belongs to exactly one
// tenant for its lifetime.
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User represents one login identity.
type User struct {
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Name         string    `db:"name"`
	TenantID     int64     `db:"tenant_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// SetPassword hashes the plaintext secret with bcrypt and stores the hash.
// The plaintext is never persisted.
func (u *User) SetPassword(plaintext string, cost int) error {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares a candidate secret against the stored hash.
// bcrypt.CompareHashAndPassword is constant-time over the hash comparison.
func (u *User) CheckPassword(plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plaintext)) == nil
}
