package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open("sqlite", filepath.Join(t.TempDir(), "warden.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestUserRepository(t *testing.T) {
	repo := openTestRepo(t)
	users := repo.Users()
	ctx := context.Background()

	name := "Alice"
	require.NoError(t, users.Create(ctx, &identity.User{ID: "u1", Email: "alice@example.com", Name: &name, Password: "hash"}))

	err := users.Create(ctx, &identity.User{ID: "u2", Email: "alice@example.com", Password: "hash"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	got, err := users.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	require.NotNil(t, got.Name)
	assert.Equal(t, "Alice", *got.Name)

	_, err = users.FindByEmail(ctx, "ALICE@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound, "lookups are exact")

	updated, err := users.Update(ctx, "u1", map[string]any{"password": "new-hash"})
	require.NoError(t, err)
	assert.Equal(t, "new-hash", updated.Password)
	assert.Equal(t, "alice@example.com", updated.Email)

	_, err = users.Update(ctx, "missing", map[string]any{"password": "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, users.Create(ctx, &identity.User{ID: "u3", Email: "carol@example.com", Password: "hash"}))
	_, err = users.Update(ctx, "u3", map[string]any{"email": "alice@example.com"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	list, err := users.List(ctx, 0, 100)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = users.List(ctx, 1, 100)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, users.Delete(ctx, "u1"))
	assert.ErrorIs(t, users.Delete(ctx, "u1"), domain.ErrNotFound)
	_, err = users.FindByID(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTemplateRepository(t *testing.T) {
	repo := openTestRepo(t)
	templates := repo.Templates()
	ctx := context.Background()

	require.NoError(t, templates.Create(ctx, &identity.Template{ID: "t1", Email: "t@example.com", Password: "hash"}))

	got, err := templates.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, got.Published)

	updated, err := templates.Update(ctx, "t1", map[string]any{"published": true})
	require.NoError(t, err)
	assert.True(t, updated.Published)

	list, err := templates.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, templates.Delete(ctx, "t1"))
}

func TestOpen(t *testing.T) {
	_, err := Open("oracle", "dsn", nil)
	assert.Error(t, err)

	repo := openTestRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
