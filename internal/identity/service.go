// Package identity provides the auth flow: registration, login, self-service
// profile access and bootstrap of the administrator account.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/accountd/accountd/internal/domain"
	"github.com/accountd/accountd/internal/identity/jwt"
	"github.com/accountd/accountd/internal/pkg/ctxlog"
	"github.com/accountd/accountd/internal/pkg/metrics"
	"github.com/accountd/accountd/internal/users"
)

// UserStore is the subset of the user store the auth flow depends on.
type UserStore interface {
	Create(ctx context.Context, input users.CreateInput) (string, error)
	FindOne(ctx context.Context, id string) (*domain.UserDetail, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, id string, input users.UpdateInput) (*domain.UserDetail, error)
}

// PasswordVerifier checks a plaintext password against a stored hash.
// An empty hash must never match and should cost as much as a real comparison.
type PasswordVerifier interface {
	Verify(plaintext, hashed string) bool
}

// TokenIssuer signs and verifies access tokens.
type TokenIssuer interface {
	Issue(subject string, role domain.Role) (string, error)
	Verify(token string) (*jwt.Claims, error)
}

// Service implements the auth flow.
type Service struct {
	store    UserStore
	verifier PasswordVerifier
	tokens   TokenIssuer
}

// NewService creates a new auth flow service.
func NewService(store UserStore, verifier PasswordVerifier, tokens TokenIssuer) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		tokens:   tokens,
	}
}

// RegisterInput holds data for self-registration.
type RegisterInput struct {
	Email    string
	Password string
	Profile  users.ProfileInput
}

// AdminConfig describes the bootstrap administrator account.
type AdminConfig struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates a USER account and returns its id.
// The role is forced regardless of what the caller asked for.
func (s *Service) Register(ctx context.Context, input RegisterInput) (string, error) {
	return s.store.Create(ctx, users.CreateInput{
		Email:    input.Email,
		Password: input.Password,
		Role:     domain.RoleUser,
		Profile:  input.Profile,
	})
}

// Login verifies credentials and returns a signed access token.
// Unknown emails and wrong passwords fail with the same error.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}

	if user == nil {
		// Keep the cost of an unknown email equal to a wrong password.
		s.verifier.Verify(password, "")
		metrics.RecordLogin(metrics.LoginFailure)
		logger.Debug("login failed", "reason", "unknown email")
		return "", ErrInvalidCredentials
	}

	if !s.verifier.Verify(password, user.PasswordHash) {
		metrics.RecordLogin(metrics.LoginFailure)
		logger.Debug("login failed", "reason", "password mismatch", "user_id", user.ID)
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	metrics.RecordLogin(metrics.LoginSuccess)
	return token, nil
}

// Me returns the caller's own detail view.
func (s *Service) Me(ctx context.Context, userID string) (*domain.UserDetail, error) {
	return s.store.FindOne(ctx, userID)
}

// UpdateMe applies a self-service update. Only email and profile are kept;
// a caller can never change their own role this way.
func (s *Service) UpdateMe(ctx context.Context, userID string, input users.UpdateInput) (*domain.UserDetail, error) {
	safe := users.UpdateInput{
		Email:   input.Email,
		Profile: input.Profile,
	}
	return s.store.Update(ctx, userID, safe)
}

// Logout is a no-op: sessions are stateless and the client discards its token.
func (s *Service) Logout(_ context.Context) error {
	return nil
}

// SeedAdmin creates the administrator account unless a live account already
// uses its email. An existing account is left untouched.
func (s *Service) SeedAdmin(ctx context.Context, cfg AdminConfig) error {
	logger := ctxlog.FromContext(ctx)

	existing, err := s.store.FindByEmail(ctx, cfg.Email)
	if err != nil {
		return fmt.Errorf("look up admin: %w", err)
	}
	if existing != nil {
		logger.Info("admin user already present", "email", existing.Email)
		return nil
	}

	id, err := s.store.Create(ctx, users.CreateInput{
		Email:    cfg.Email,
		Password: cfg.Password,
		Role:     domain.RoleAdmin,
		Profile: users.ProfileInput{
			FirstName: cfg.FirstName,
			LastName:  cfg.LastName,
		},
	})
	if err != nil {
		// Another instance may have seeded concurrently.
		if errors.Is(err, users.ErrEmailExists) {
			logger.Info("admin user already present", "email", cfg.Email)
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}

	logger.Info("admin user seeded", "user_id", id, "email", cfg.Email)
	return nil
}

// ValidateToken verifies a bearer token and returns the identity it carries.
func (s *Service) ValidateToken(_ context.Context, token string) (string, domain.Role, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims.Subject, claims.Role, nil
}
