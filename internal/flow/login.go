package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/session"
	"github.com/getkayan/warden/internal/telemetry"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// errBadCredentials is shared by every login failure so callers cannot tell
// an unknown email from a wrong password.
const errBadCredentials = "Incorrect email or password"

type LoginManager struct {
	users    domain.UserStore
	hasher   domain.Hasher
	sessions *session.Manager
	metrics  *telemetry.Provider
	logger   *zap.Logger
	limit    *throttle

	dummyOnce sync.Once
	dummyHash string
}

func NewLoginManager(users domain.UserStore, hasher domain.Hasher, sessions *session.Manager) *LoginManager {
	return &LoginManager{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		logger:   zap.NewNop(),
	}
}

func (m *LoginManager) SetMetrics(p *telemetry.Provider) { m.metrics = p }

func (m *LoginManager) SetLogger(l *zap.Logger) {
	m.logger = l
	if m.limit != nil {
		m.limit.logger = l
	}
}

// SetRateLimit bounds login attempts per email. Successful logins clear the
// counter.
func (m *LoginManager) SetRateLimit(limiter RateLimiter, cfg RateLimitConfig) {
	m.limit = &throttle{limiter: limiter, config: cfg, logger: m.logger}
}

// Login verifies the password for email and issues an access token.
func (m *LoginManager) Login(ctx context.Context, email, password string) (resp *TokenResponse, err error) {
	ctx, span := m.metrics.SpanLogin(ctx)
	defer func() { telemetry.EndSpan(span, err) }()

	start := time.Now()
	resp, err = m.login(ctx, email, password)
	m.metrics.RecordLogin(ctx, err == nil)
	m.metrics.RecordAuthDuration(ctx, time.Since(start), err == nil)
	return resp, err
}

func (m *LoginManager) login(ctx context.Context, email, password string) (*TokenResponse, error) {
	if err := m.limit.check(ctx, "login", email); err != nil {
		return nil, err
	}

	user, err := m.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		// Burn the same hashing time as a real comparison.
		m.hasher.Compare(password, m.dummy())
		return nil, domain.ErrUnauthorized(errBadCredentials)
	}
	if err != nil {
		return nil, oops.Code("LOGIN_FAILED").With("operation", "FindByEmail").Wrap(err)
	}

	if !m.hasher.Compare(password, user.Password) {
		m.logger.Debug("login rejected", zap.String("user_id", user.ID))
		return nil, domain.ErrUnauthorized(errBadCredentials)
	}

	token, err := m.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	m.limit.reset(ctx, "login", email)
	telemetry.SetUser(trace.SpanFromContext(ctx), user.ID)
	m.logger.Info("user logged in", zap.String("user_id", user.ID))
	return &TokenResponse{AccessToken: token, TokenType: session.TokenType}, nil
}

// Logout blacklists token. Logging out twice with the same token succeeds.
func (m *LoginManager) Logout(ctx context.Context, token string) (err error) {
	ctx, span := m.metrics.SpanLogout(ctx)
	defer func() { telemetry.EndSpan(span, err) }()

	if err := m.sessions.Revoke(ctx, token); err != nil {
		return err
	}
	m.metrics.RecordLogout(ctx)
	return nil
}

func (m *LoginManager) dummy() string {
	m.dummyOnce.Do(func() {
		m.dummyHash, _ = m.hasher.Hash("warden-dummy-password")
	})
	return m.dummyHash
}
