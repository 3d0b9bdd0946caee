package persistence

import (
	"context"

	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/identity"
)

var _ domain.TemplateStore = (*TemplateRepository)(nil)

// TemplateRepository implements domain.TemplateStore.
type TemplateRepository struct {
	t table[identity.Template]
}

func (r *TemplateRepository) FindByEmail(ctx context.Context, email string) (*identity.Template, error) {
	return r.t.findBy(ctx, "email", email)
}

func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*identity.Template, error) {
	return r.t.findBy(ctx, "id", id)
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *identity.Template) error {
	return r.t.create(ctx, tpl)
}

func (r *TemplateRepository) Update(ctx context.Context, id string, fields map[string]any) (*identity.Template, error) {
	return r.t.update(ctx, id, fields)
}

func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

func (r *TemplateRepository) List(ctx context.Context, skip, limit int) ([]identity.Template, error) {
	return r.t.list(ctx, skip, limit)
}
