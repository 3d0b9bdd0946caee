// Package revocation keeps the short-lived state of the credential flows:
// the logout blacklist and the single-use password reset tokens.
//
// Both live in a domain.KeyValueStore with per-key expiry, so any instance
// of the service sees a revocation as soon as the write returns.
package revocation

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/getkayan/warden/internal/domain"
	"github.com/zeebo/blake3"
)

const (
	blacklistPrefix  = "blacklist:"
	resetTokenPrefix = "reset_token:"

	DefaultBlacklistTTL  = time.Hour
	DefaultResetTokenTTL = time.Hour
)

// Store exposes the blacklist and reset-token operations over a key-value backend.
type Store struct {
	kv            domain.KeyValueStore
	blacklistTTL  time.Duration
	resetTokenTTL time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithBlacklistTTL sets how long a logged-out token stays blacklisted.
func WithBlacklistTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.blacklistTTL = d
		}
	}
}

// WithResetTokenTTL sets how long a reset token remains usable.
func WithResetTokenTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.resetTokenTTL = d
		}
	}
}

func NewStore(kv domain.KeyValueStore, opts ...Option) *Store {
	s := &Store{
		kv:            kv,
		blacklistTTL:  DefaultBlacklistTTL,
		resetTokenTTL: DefaultResetTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BlacklistKey derives the storage key for a bearer token. The token itself
// is never stored.
func BlacklistKey(token string) string {
	sum := blake3.Sum256([]byte(token))
	return blacklistPrefix + hex.EncodeToString(sum[:])
}

// ResetTokenKey is the storage key of the reset token owned by email.
func ResetTokenKey(email string) string {
	return resetTokenPrefix + email
}

// Blacklist marks token as revoked for the fixed blacklist TTL. Blacklisting
// an already revoked token refreshes its TTL and succeeds.
func (s *Store) Blacklist(ctx context.Context, token string) error {
	return s.kv.Put(ctx, BlacklistKey(token), "1", s.blacklistTTL)
}

func (s *Store) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return s.kv.Exists(ctx, BlacklistKey(token))
}

// SaveResetToken stores token for email, replacing any earlier one.
func (s *Store) SaveResetToken(ctx context.Context, email, token string) error {
	return s.kv.Put(ctx, ResetTokenKey(email), token, s.resetTokenTTL)
}

// MatchResetToken reports whether token is the live reset token for email.
// A missing entry and a mismatch are indistinguishable.
func (s *Store) MatchResetToken(ctx context.Context, email, token string) (bool, error) {
	stored, err := s.kv.Get(ctx, ResetTokenKey(email))
	if errors.Is(err, domain.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if stored == "" || token == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}

// ConsumeResetToken deletes the reset token for email if it equals token.
// Exactly one concurrent caller can consume a given token.
func (s *Store) ConsumeResetToken(ctx context.Context, email, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return s.kv.CompareAndDelete(ctx, ResetTokenKey(email), token)
}

func (s *Store) BlacklistTTL() time.Duration  { return s.blacklistTTL }
func (s *Store) ResetTokenTTL() time.Duration { return s.resetTokenTTL }
