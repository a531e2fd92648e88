// service.go implements the login, register, and profile flows. Registration
// is the only path that creates tenants: the first registration naming an
// organization creates it, later ones attach to it.
package auth

import (
	"context"
	"log/slog"

	"github.com/maritime-ai/maritime-ai-backend/internal/apperrors"
	"github.com/maritime-ai/maritime-ai-backend/internal/db/models"
	"github.com/maritime-ai/maritime-ai-backend/internal/db/repositories"
)

// NamespaceEnsurer is the slice of the artifact store the auth flows need:
// best-effort creation of the tenant's storage namespace. Kept as a local
// interface so auth does not depend on the artifacts package.
type NamespaceEnsurer interface {
	EnsureNamespace(ctx context.Context, tenantID int64) error
}

// Session is the result of a successful login or registration.
type Session struct {
	Token      string
	Email      string
	Name       string
	TenantID   int64
	TenantName string
}

// Service implements authentication against the credential store.
type Service struct {
	users      *repositories.UserRepository
	tenants    *repositories.TenantRepository
	tokens     *TokenManager
	namespaces NamespaceEnsurer
	bcryptCost int
}

// NewService creates an auth Service. namespaces may be nil in tests.
func NewService(
	users *repositories.UserRepository,
	tenants *repositories.TenantRepository,
	tokens *TokenManager,
	namespaces NamespaceEnsurer,
	bcryptCost int,
) *Service {
	return &Service{
		users:      users,
		tenants:    tenants,
		tokens:     tokens,
		namespaces: namespaces,
		bcryptCost: bcryptCost,
	}
}

// Login verifies the email/password pair and issues a session token.
// "No such user" and "wrong password" both return ErrInvalidCredentials so
// responses cannot be used for user enumeration; the distinction is logged
// server-side only.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		slog.Info("login failed: unknown user", "email", email)
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.CheckPassword(password) {
		slog.Info("login failed: wrong password", "email", email)
		return nil, apperrors.ErrInvalidCredentials
	}

	tenant, err := s.tenants.GetByID(ctx, user.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		// A user row referencing a missing tenant is a data integrity fault.
		slog.Error("login failed: user references missing tenant", "email", email, "tenant_id", user.TenantID)
		return nil, apperrors.ErrInvalidCredentials
	}

	s.ensureNamespace(ctx, tenant.ID)

	return s.issueSession(user, tenant)
}

// Register creates a user — and, if this is the first time the organization
// name is seen, its tenant — then issues a session token.
func (s *Service) Register(ctx context.Context, email, password, name, tenantName string) (*Session, error) {
	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.ErrAlreadyExists
	}

	tenant, err := s.tenants.GetByName(ctx, tenantName)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		tenant = &models.Tenant{Name: tenantName}
		if err := s.tenants.Create(ctx, tenant); err != nil {
			return nil, err
		}
		slog.Info("created tenant", "tenant_id", tenant.ID, "name", tenant.Name)
	}

	user := &models.User{
		Email:    email,
		Name:     name,
		TenantID: tenant.ID,
	}
	if err := user.SetPassword(password, s.bcryptCost); err != nil {
		return nil, err
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.ensureNamespace(ctx, tenant.ID)

	return s.issueSession(user, tenant)
}

// Me resolves verified claims back to the current user and tenant records.
func (s *Service) Me(ctx context.Context, claims *Claims) (*models.User, *models.Tenant, error) {
	user, err := s.users.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, apperrors.ErrNotFound
	}

	tenant, err := s.tenants.GetByID(ctx, user.TenantID)
	if err != nil {
		return nil, nil, err
	}
	if tenant == nil {
		return nil, nil, apperrors.ErrNotFound
	}

	return user, tenant, nil
}

// ensureNamespace is best-effort: storage trouble must never block a login or
// registration, so failures are logged and the flow continues.
func (s *Service) ensureNamespace(ctx context.Context, tenantID int64) {
	if s.namespaces == nil {
		return
	}
	if err := s.namespaces.EnsureNamespace(ctx, tenantID); err != nil {
		slog.Warn("namespace initialization failed, continuing", "tenant_id", tenantID, "error", err)
	}
}

func (s *Service) issueSession(user *models.User, tenant *models.Tenant) (*Session, error) {
	token, err := s.tokens.Generate(user.Email, user.Name, tenant.ID, tenant.Name)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:      token,
		Email:      user.Email,
		Name:       user.Name,
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
	}, nil
}
