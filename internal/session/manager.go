// Package session issues bearer tokens and guards authenticated requests.
//
// A token is accepted only when all of the following hold, checked in order:
//
//   - its signature verifies with the configured key and algorithm
//   - it has not expired
//   - it is not on the logout blacklist
//   - its subject still resolves to a user record
package session

import (
	"context"
	"errors"
	"time"

	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/identity"
	"github.com/getkayan/warden/internal/revocation"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// TokenType is the scheme returned to clients alongside an access token.
const TokenType = "bearer"

// Manager handles the token lifecycle on top of a Codec and the revocation store.
type Manager struct {
	codec   *Codec
	revoked *revocation.Store
	users   domain.UserStore
	now     func() time.Time
	logger  *zap.Logger
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewManager(codec *Codec, revoked *revocation.Store, users domain.UserStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		codec:   codec,
		revoked: revoked,
		users:   users,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue creates an access token for the given user ID.
func (m *Manager) Issue(_ context.Context, userID string) (string, error) {
	token, err := m.codec.Issue(userID, m.now())
	if err != nil {
		return "", oops.Code("SESSION_ISSUE_FAILED").With("user_id", userID).Wrap(err)
	}
	return token, nil
}

// Revoke blacklists token. It does not validate the token first, so revoking
// garbage or an already revoked token succeeds.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrUnauthorized("Token required")
	}
	if err := m.revoked.Blacklist(ctx, token); err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").With("operation", "Blacklist").Wrap(err)
	}
	return nil
}

// Validate returns the subject of token if it is authentic, unexpired and
// not revoked.
func (m *Manager) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrUnauthorized("Not authenticated")
	}

	claims, err := m.codec.Validate(token, m.now())
	if err != nil {
		m.logger.Debug("rejected access token", zap.Error(err))
		return "", domain.ErrUnauthorized("Could not validate credentials")
	}

	revoked, err := m.revoked.IsBlacklisted(ctx, token)
	if err != nil {
		return "", oops.Code("SESSION_LOOKUP_FAILED").With("operation", "IsBlacklisted").Wrap(err)
	}
	if revoked {
		return "", domain.ErrUnauthorized("Token has been revoked")
	}

	return claims.Subject, nil
}

// Authenticate resolves token to the user it was issued for.
func (m *Manager) Authenticate(ctx context.Context, token string) (*identity.User, error) {
	subject, err := m.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := m.users.FindByID(ctx, subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrMissing("User not found")
	}
	if err != nil {
		return nil, oops.Code("SESSION_LOOKUP_FAILED").With("operation", "FindByID").Wrap(err)
	}
	return user, nil
}
