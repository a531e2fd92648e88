// Package models defines the database entities for the credential store:
// tenants (customer organizations, the unit of data isolation) and users
// (login identities keyed by email).
package models

import (
	"fmt"
	"time"
)

// Tenant represents one customer organization. Every artifact and every user
// references exactly one tenant; the tenant id scopes all storage keys.
type Tenant struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Namespace returns the storage key prefix that scopes this tenant's
// artifacts. Every artifact key must start with this prefix, and no operation
// may address a key outside it.
func (t *Tenant) Namespace() string {
	return NamespaceFor(t.ID)
}

// NamespaceFor builds the storage namespace prefix for a tenant id.
func NamespaceFor(tenantID int64) string {
	return fmt.Sprintf("tenant-%d/", tenantID)
}
