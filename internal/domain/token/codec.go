package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claimsKey is the private claim holding the caller payload. Registered claims stay at the top level
// so the payload round-trips untouched.
const claimsKey = "claims"

type Option func(*Codec)

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// Codec signs and verifies HS256 tokens with a single process-wide secret.
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	leeway time.Duration
	now    func() time.Time
}

func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: secret is empty", ErrInvalidConfig)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidConfig)
	}
	if cfg.Leeway < 0 {
		return nil, fmt.Errorf("%w: leeway must not be negative", ErrInvalidConfig)
	}

	c := &Codec{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Sign embeds payload in a signed token. payload must be a non-nil JSON object.
func (c *Codec) Sign(payload any) (string, error) {
	claims, ok := asClaims(payload)
	if !ok {
		return "", ErrInvalidPayload
	}

	now := c.now()
	registered := jwt.MapClaims{
		claimsKey: map[string]any(claims),
		"iat":     jwt.NewNumericDate(now),
		"exp":     jwt.NewNumericDate(now.Add(c.ttl)),
	}
	if c.issuer != "" {
		registered["iss"] = c.issuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, registered).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the signature and expiry first and the payload shape second; both must pass.
func (c *Codec) Verify(tokenString string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.leeway > 0 {
		opts = append(opts, jwt.WithLeeway(c.leeway))
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	registered, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	embedded, ok := registered[claimsKey].(map[string]any)
	if !ok || embedded == nil {
		return nil, ErrInvalidPayload
	}

	return Claims(embedded), nil
}

// TTL is the lifetime given to every token this codec signs.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

func asClaims(payload any) (Claims, bool) {
	switch p := payload.(type) {
	case Claims:
		return p, p != nil
	case map[string]any:
		return Claims(p), p != nil
	default:
		return nil, false
	}
}
