package persistence

import (
	"context"

	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/identity"
)

var _ domain.UserStore = (*UserRepository)(nil)

// UserRepository implements domain.UserStore.
type UserRepository struct {
	t table[identity.User]
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.t.findBy(ctx, "email", email)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*identity.User, error) {
	return r.t.findBy(ctx, "id", id)
}

func (r *UserRepository) Create(ctx context.Context, u *identity.User) error {
	return r.t.create(ctx, u)
}

func (r *UserRepository) Update(ctx context.Context, id string, fields map[string]any) (*identity.User, error) {
	return r.t.update(ctx, id, fields)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

func (r *UserRepository) List(ctx context.Context, skip, limit int) ([]identity.User, error) {
	return r.t.list(ctx, skip, limit)
}
