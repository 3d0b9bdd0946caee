// Package domain defines the storage and collaborator contracts used by the
// credential flows. Implementations live in persistence, revocation and notify.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/getkayan/warden/internal/identity"
)

var (
	// ErrNotFound is returned by record stores when no row matches.
	ErrNotFound = errors.New("record not found")

	// ErrKeyNotFound is returned by key-value stores for keys that were never
	// set or have expired.
	ErrKeyNotFound = errors.New("key not found")

	// ErrDuplicate is returned by record stores when a unique key is taken.
	ErrDuplicate = errors.New("duplicate key")
)

// UserStore persists user accounts.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*identity.User, error)
	FindByID(ctx context.Context, id string) (*identity.User, error)
	Create(ctx context.Context, u *identity.User) error
	Update(ctx context.Context, id string, fields map[string]any) (*identity.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, skip, limit int) ([]identity.User, error)
}

// TemplateStore persists templates.
type TemplateStore interface {
	FindByEmail(ctx context.Context, email string) (*identity.Template, error)
	FindByID(ctx context.Context, id string) (*identity.Template, error)
	Create(ctx context.Context, t *identity.Template) error
	Update(ctx context.Context, id string, fields map[string]any) (*identity.Template, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, skip, limit int) ([]identity.Template, error)
}

// KeyValueStore is an expiring key-value backend. Every call is atomic from
// the caller's point of view.
type KeyValueStore interface {
	// Put upserts value under key, replacing any previous value and TTL.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns ErrKeyNotFound for absent or expired keys.
	Get(ctx context.Context, key string) (string, error)
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// CompareAndDelete removes key only if it currently holds expected and
	// reports whether it did.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	// Increment adds one to the counter at key and returns the new value.
	// The TTL is set when the counter is created and never extended.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Hasher defines the interface for password hashing and verification.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) bool
}

// Notifier delivers out-of-band messages to account owners.
type Notifier interface {
	NotifyReset(ctx context.Context, email, resetToken string) error
	NotifyWelcome(ctx context.Context, email, name string) error
}
