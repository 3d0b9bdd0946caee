package flow

import (
	"context"
	"errors"

	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/identity"
	"github.com/getkayan/warden/internal/telemetry"
	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// RegisterInput carries a sign-up request.
type RegisterInput struct {
	Email    string
	Password string
	Name     *string
}

type RegistrationManager struct {
	users     domain.UserStore
	hasher    domain.Hasher
	notifier  domain.Notifier
	generator func() string
	metrics   *telemetry.Provider
	logger    *zap.Logger
	notify    dispatcher
}

func NewRegistrationManager(users domain.UserStore, hasher domain.Hasher) *RegistrationManager {
	m := &RegistrationManager{
		users:     users,
		hasher:    hasher,
		generator: uuid.NewString,
	}
	m.SetLogger(zap.NewNop())
	return m
}

func (m *RegistrationManager) SetIDGenerator(g func() string) { m.generator = g }

// SetNotifier enables the welcome email sent after a successful sign-up.
func (m *RegistrationManager) SetNotifier(n domain.Notifier) { m.notifier = n }

func (m *RegistrationManager) SetMetrics(p *telemetry.Provider) { m.metrics = p }

func (m *RegistrationManager) SetLogger(l *zap.Logger) {
	m.logger = l
	m.notify.logger = l
}

// Wait blocks until pending welcome emails have been handed off.
func (m *RegistrationManager) Wait() { m.notify.Wait() }

// Register creates an account for in.Email. It fails with a CONFLICT error
// when the email is already taken.
func (m *RegistrationManager) Register(ctx context.Context, in RegisterInput) (identity.PublicUser, error) {
	ctx, span := m.metrics.SpanRegistration(ctx)
	user, err := m.register(ctx, in)
	if err == nil {
		telemetry.SetUser(span, user.ID)
	}
	telemetry.EndSpan(span, err)
	m.metrics.RecordRegistration(ctx, err == nil)
	if err != nil {
		return identity.PublicUser{}, err
	}

	m.logger.Info("user registered", zap.String("user_id", user.ID))

	if m.notifier != nil {
		name := "User"
		if user.Name != nil && *user.Name != "" {
			name = *user.Name
		}
		email := user.Email
		m.notify.dispatch(ctx, "welcome", func(ctx context.Context) error {
			return m.notifier.NotifyWelcome(ctx, email, name)
		})
	}

	return user.Public(), nil
}

func (m *RegistrationManager) register(ctx context.Context, in RegisterInput) (*identity.User, error) {
	_, err := m.users.FindByEmail(ctx, in.Email)
	if err == nil {
		return nil, domain.ErrConflict("Email already registered")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, oops.Code("REGISTER_FAILED").With("operation", "FindByEmail").Wrap(err)
	}

	hashed, err := HashPassword(m.hasher, in.Password)
	if err != nil {
		return nil, err
	}

	user := &identity.User{
		ID:       m.generator(),
		Email:    in.Email,
		Name:     in.Name,
		Password: hashed,
	}
	if err := m.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent sign-up for the same email.
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.ErrConflict("Email already registered")
		}
		return nil, oops.Code("REGISTER_FAILED").With("operation", "Create").Wrap(err)
	}
	return user, nil
}
