package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for every token that fails validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of an access token.
type Claims struct {
	jwt.RegisteredClaims
}

// CodecConfig holds the signing configuration for access tokens.
type CodecConfig struct {
	SigningMethod jwt.SigningMethod
	SigningKey    any // []byte for HMAC, *rsa.PrivateKey for RSA, *ecdsa.PrivateKey for ECDSA
	VerifyingKey  any // []byte for HMAC (same as SigningKey), public key otherwise
	Lifetime      time.Duration
}

// Codec issues and validates signed, time-limited access tokens.
// It is stateless; revocation is checked by Manager.
type Codec struct {
	config CodecConfig
}

func NewCodec(config CodecConfig) (*Codec, error) {
	if config.SigningMethod == nil {
		return nil, errors.New("session: signing method is required")
	}
	if config.SigningKey == nil || config.VerifyingKey == nil {
		return nil, errors.New("session: signing and verifying keys are required")
	}
	if config.Lifetime <= 0 {
		return nil, errors.New("session: token lifetime must be positive")
	}
	return &Codec{config: config}, nil
}

// NewHMACCodec builds a codec for the HS256, HS384 or HS512 algorithm.
func NewHMACCodec(alg, secret string, lifetime time.Duration) (*Codec, error) {
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("session: unsupported HMAC algorithm %q", alg)
	}
	if secret == "" {
		return nil, errors.New("session: secret is required")
	}
	return NewCodec(CodecConfig{
		SigningMethod: method,
		SigningKey:    []byte(secret),
		VerifyingKey:  []byte(secret),
		Lifetime:      lifetime,
	})
}

// NewHS256Codec is a convenience constructor for HS256.
func NewHS256Codec(secret string, lifetime time.Duration) (*Codec, error) {
	return NewHMACCodec(jwt.SigningMethodHS256.Alg(), secret, lifetime)
}

func (c *Codec) Lifetime() time.Duration { return c.config.Lifetime }

// Issue signs a token for subject that expires Lifetime after issuedAt.
// issuedAt is truncated to whole seconds, the precision of the exp claim.
func (c *Codec) Issue(subject string, issuedAt time.Time) (string, error) {
	if subject == "" {
		return "", errors.New("session: subject is required")
	}
	issuedAt = issuedAt.Truncate(time.Second)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.config.Lifetime)),
		},
	}
	token, err := jwt.NewWithClaims(c.config.SigningMethod, claims).SignedString(c.config.SigningKey)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return token, nil
}

// Validate checks the signature, algorithm and expiry of token against now.
// No clock leeway is applied: a token is expired once now reaches exp.
func (c *Codec) Validate(token string, now time.Time) (*Claims, error) {
	alg := c.config.SigningMethod.Alg()
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{alg}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != alg {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.config.VerifyingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
