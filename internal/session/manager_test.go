package session

import (
	"context"
	"testing"
	"time"

	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/identity"
	"github.com/getkayan/warden/internal/revocation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct {
	domain.UserStore
	users map[string]*identity.User
}

func (s *stubUsers) FindByID(_ context.Context, id string) (*identity.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

type managerFixture struct {
	mgr     *Manager
	users   *stubUsers
	revoked *revocation.Store
	now     time.Time
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		users:   &stubUsers{users: map[string]*identity.User{"u1": {ID: "u1", Email: "u1@example.com"}}},
		revoked: revocation.NewStore(revocation.NewMemoryStore(time.Minute)),
		now:     t0,
	}
	codec := newTestCodec(t, 30*time.Minute)
	f.mgr = NewManager(codec, f.revoked, f.users, WithClock(func() time.Time { return f.now }))
	return f
}

func TestManager_Authenticate(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	token, err := f.mgr.Issue(ctx, "u1")
	require.NoError(t, err)

	user, err := f.mgr.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", user.Email)

	f.now = t0.Add(30 * time.Minute)
	_, err = f.mgr.Authenticate(ctx, token)
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnauthorized, domain.Code(err))
	assert.Equal(t, "Could not validate credentials", err.Error())
}

func TestManager_Revoke(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	token, err := f.mgr.Issue(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, f.mgr.Revoke(ctx, token))

	_, err = f.mgr.Validate(ctx, token)
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnauthorized, domain.Code(err))
	assert.Equal(t, "Token has been revoked", err.Error())

	// Revocation is per token.
	other, err := f.mgr.Issue(ctx, "u1")
	require.NoError(t, err)
	subject, err := f.mgr.Validate(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "u1", subject)

	err = f.mgr.Revoke(ctx, "")
	assert.Equal(t, domain.CodeUnauthorized, domain.Code(err))
}

func TestManager_SignatureCheckedBeforeBlacklist(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	// A blacklisted garbage token is still reported as invalid, not revoked.
	require.NoError(t, f.revoked.Blacklist(ctx, "garbage"))
	_, err := f.mgr.Validate(ctx, "garbage")
	require.Error(t, err)
	assert.Equal(t, "Could not validate credentials", err.Error())

	_, err = f.mgr.Validate(ctx, "")
	require.Error(t, err)
	assert.Equal(t, "Not authenticated", err.Error())
}

func TestManager_DeletedUser(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	token, err := f.mgr.Issue(ctx, "u1")
	require.NoError(t, err)
	delete(f.users.users, "u1")

	_, err = f.mgr.Authenticate(ctx, token)
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotFound, domain.Code(err))
	assert.Equal(t, "User not found", err.Error())
}
