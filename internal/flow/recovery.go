package flow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/revocation"
	"github.com/getkayan/warden/internal/telemetry"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// ResetTokenBytes is the entropy of a reset token before encoding.
const ResetTokenBytes = 32

const errInvalidResetToken = "Invalid or expired reset token"

// RecoveryManager runs the forgot-password handshake: issue a single-use
// reset token, deliver it out of band, then trade it for a new password.
type RecoveryManager struct {
	users    domain.UserStore
	hasher   domain.Hasher
	store    *revocation.Store
	notifier domain.Notifier
	metrics  *telemetry.Provider
	logger   *zap.Logger
	limit    *throttle
	notify   dispatcher
}

func NewRecoveryManager(users domain.UserStore, store *revocation.Store, hasher domain.Hasher, notifier domain.Notifier) *RecoveryManager {
	m := &RecoveryManager{
		users:    users,
		hasher:   hasher,
		store:    store,
		notifier: notifier,
	}
	m.SetLogger(zap.NewNop())
	return m
}

func (m *RecoveryManager) SetMetrics(p *telemetry.Provider) { m.metrics = p }

func (m *RecoveryManager) SetLogger(l *zap.Logger) {
	m.logger = l
	m.notify.logger = l
	if m.limit != nil {
		m.limit.logger = l
	}
}

// SetRateLimit bounds reset requests per email.
func (m *RecoveryManager) SetRateLimit(limiter RateLimiter, cfg RateLimitConfig) {
	m.limit = &throttle{limiter: limiter, config: cfg, logger: m.logger}
}

// Wait blocks until pending reset emails have been handed off.
func (m *RecoveryManager) Wait() { m.notify.Wait() }

// GenerateResetToken returns a random URL-safe token.
func GenerateResetToken() (string, error) {
	b := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Initiate starts a password reset for email. The returned message is the
// same whether or not an account exists, and failures that only happen for
// existing accounts are logged instead of returned.
func (m *RecoveryManager) Initiate(ctx context.Context, email string) (msg string, err error) {
	ctx, span := m.metrics.SpanRecovery(ctx, "initiate")
	defer func() { telemetry.EndSpan(span, err) }()
	return m.initiate(ctx, email)
}

func (m *RecoveryManager) initiate(ctx context.Context, email string) (string, error) {
	// Throttled and limiter failures answer like any other request so the
	// response never varies.
	if err := m.limit.check(ctx, "forgot", email); err != nil {
		m.logger.Warn("reset request not processed", zap.Error(err))
		m.metrics.RecordRecovery(ctx, "initiate", false)
		return MessageResetSent, nil
	}

	user, err := m.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		m.metrics.RecordRecovery(ctx, "initiate", false)
		return MessageResetSent, nil
	}
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").With("operation", "FindByEmail").Wrap(err)
	}

	token, err := GenerateResetToken()
	if err != nil {
		m.logger.Error("reset token generation failed", zap.String("user_id", user.ID), zap.Error(err))
		return MessageResetSent, nil
	}

	// Overwrites any earlier token for this account.
	if err := m.store.SaveResetToken(ctx, user.Email, token); err != nil {
		m.logger.Error("storing reset token failed", zap.String("user_id", user.ID), zap.Error(err))
		return MessageResetSent, nil
	}

	m.metrics.RecordRecovery(ctx, "initiate", true)
	m.logger.Info("password reset requested", zap.String("user_id", user.ID))

	if m.notifier != nil {
		to := user.Email
		m.notify.dispatch(ctx, "password_reset", func(ctx context.Context) error {
			return m.notifier.NotifyReset(ctx, to, token)
		})
	}

	return MessageResetSent, nil
}

// Reset replaces the password of the account owning email if resetToken is
// its live reset token. The token is consumed before the new hash is stored,
// so it can succeed at most once.
func (m *RecoveryManager) Reset(ctx context.Context, email, resetToken, newPassword string) (string, error) {
	ctx, span := m.metrics.SpanRecovery(ctx, "reset")
	err := m.reset(ctx, email, resetToken, newPassword)
	telemetry.EndSpan(span, err)
	m.metrics.RecordRecovery(ctx, "reset", err == nil)
	if err != nil {
		return "", err
	}
	return MessagePasswordReset, nil
}

func (m *RecoveryManager) reset(ctx context.Context, email, resetToken, newPassword string) error {
	user, err := m.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrMissing("User not found")
	}
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "FindByEmail").Wrap(err)
	}

	ok, err := m.store.MatchResetToken(ctx, user.Email, resetToken)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "MatchResetToken").Wrap(err)
	}
	if !ok {
		return domain.ErrBadRequest(errInvalidResetToken)
	}

	hashed, err := HashPassword(m.hasher, newPassword)
	if err != nil {
		return err
	}

	consumed, err := m.store.ConsumeResetToken(ctx, user.Email, resetToken)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "ConsumeResetToken").Wrap(err)
	}
	if !consumed {
		// Another request used or replaced the token since the match above.
		return domain.ErrBadRequest(errInvalidResetToken)
	}

	if _, err := m.users.Update(ctx, user.ID, map[string]any{"password": hashed}); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "Update").Wrap(err)
	}

	m.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}
