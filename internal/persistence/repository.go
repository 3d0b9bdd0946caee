// Package persistence stores users and templates with gorm. SQLite,
// Postgres and MySQL are registered by default.
package persistence

import (
	"context"
	"errors"

	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/identity"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) AutoMigrate(models ...any) error {
	baseModels := []any{
		&identity.User{},
		&identity.Template{},
	}
	return r.db.AutoMigrate(append(baseModels, models...)...)
}

// Users returns the user store backed by this database.
func (r *Repository) Users() *UserRepository {
	return &UserRepository{table[identity.User]{db: r.db}}
}

// Templates returns the template store backed by this database.
func (r *Repository) Templates() *TemplateRepository {
	return &TemplateRepository{table[identity.Template]{db: r.db}}
}

// Ping checks that the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// table implements the record operations shared by every model keyed by a
// string id with a unique email.
type table[T any] struct {
	db *gorm.DB
}

func (t table[T]) findBy(ctx context.Context, column string, value any) (*T, error) {
	var rec T
	if err := t.db.WithContext(ctx).Where(column+" = ?", value).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (t table[T]) create(ctx context.Context, rec *T) error {
	return translate(t.db.WithContext(ctx).Create(rec).Error)
}

func (t table[T]) update(ctx context.Context, id string, fields map[string]any) (*T, error) {
	rec, err := t.findBy(ctx, "id", id)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := t.db.WithContext(ctx).Model(rec).Updates(fields).Error; err != nil {
			return nil, translate(err)
		}
	}
	return t.findBy(ctx, "id", id)
}

func (t table[T]) delete(ctx context.Context, id string) error {
	res := t.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t table[T]) list(ctx context.Context, skip, limit int) ([]T, error) {
	if skip < 0 {
		skip = 0
	}
	q := t.db.WithContext(ctx).Order("created_at").Offset(skip)
	if limit > 0 {
		q = q.Limit(limit)
	}
	recs := make([]T, 0)
	if err := q.Find(&recs).Error; err != nil {
		return nil, translate(err)
	}
	return recs, nil
}

// translate maps gorm sentinels onto the domain ones.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrDuplicate
	default:
		return err
	}
}
