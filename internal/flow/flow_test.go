package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/identity"
	"github.com/getkayan/warden/internal/revocation"
	"github.com/getkayan/warden/internal/session"
	"golang.org/x/crypto/bcrypt"
)

type mockUserStore struct {
	mu    sync.Mutex
	users map[string]*identity.User // by id
	err   error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]*identity.User)}
}

func (m *mockUserStore) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserStore) FindByID(_ context.Context, id string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserStore) Create(_ context.Context, u *identity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return domain.ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserStore) Update(_ context.Context, id string, fields map[string]any) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if pw, ok := fields["password"].(string); ok {
		u.Password = pw
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserStore) List(context.Context, int, int) ([]identity.User, error) {
	return nil, errors.New("not implemented")
}

type sentMail struct {
	kind, email, payload string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *mockNotifier) NotifyReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{"reset", email, token})
	return n.err
}

func (n *mockNotifier) NotifyWelcome(_ context.Context, email, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{"welcome", email, name})
	return n.err
}

func (n *mockNotifier) last(kind string) (sentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i], true
		}
	}
	return sentMail{}, false
}

type fixture struct {
	users    *mockUserStore
	notifier *mockNotifier
	revoked  *revocation.Store
	sessions *session.Manager
	reg      *RegistrationManager
	login    *LoginManager
	recovery *RecoveryManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := newMockUserStore()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	notifier := &mockNotifier{}
	revoked := revocation.NewStore(revocation.NewMemoryStore(time.Minute))

	codec, err := session.NewHS256Codec("flow-test-secret", 30*time.Minute)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	sessions := session.NewManager(codec, revoked, users)

	reg := NewRegistrationManager(users, hasher)
	reg.SetNotifier(notifier)

	return &fixture{
		users:    users,
		notifier: notifier,
		revoked:  revoked,
		sessions: sessions,
		reg:      reg,
		login:    NewLoginManager(users, hasher, sessions),
		recovery: NewRecoveryManager(users, revoked, hasher, notifier),
	}
}

func (f *fixture) register(t *testing.T, email, password string) {
	t.Helper()
	if _, err := f.reg.Register(context.Background(), RegisterInput{Email: email, Password: password}); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := domain.Code(err); got != code {
		t.Fatalf("expected code %s, got %q (%v)", code, got, err)
	}
}
