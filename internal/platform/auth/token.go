package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 7 * 24 * time.Hour

var (
	// ErrTokenExpired signals that the bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the bearer token failed verification.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the JWT payload issued at login. The subject carries the
// user ID; email and role ride as private claims.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

// TokenOption customises TokenIssuer behaviour.
type TokenOption func(*TokenIssuer)

// WithTokenTTL overrides the token lifetime.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(t *TokenIssuer) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithIssuer sets the iss claim stamped on issued tokens.
func WithIssuer(issuer string) TokenOption {
	return func(t *TokenIssuer) {
		issuer = strings.TrimSpace(issuer)
		if issuer != "" {
			t.issuer = issuer
		}
	}
}

// WithClock injects a deterministic time source for tests.
func WithClock(clock func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTokenIssuer constructs a TokenIssuer with the provided signing secret.
func NewTokenIssuer(secret string, opts ...TokenOption) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}

	issuer := &TokenIssuer{
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}
	return issuer, nil
}

// Issue signs a token for the given principal.
func (t *TokenIssuer) Issue(userID, email, role string) (string, error) {
	if t == nil {
		return "", errors.New("auth: token issuer not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("auth: user id is required")
	}

	now := t.clock().UTC()
	claims := Claims{
		Email: strings.TrimSpace(email),
		Role:  strings.TrimSpace(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a signed token, returning its claims.
func (t *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	if t == nil {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return t.clock().UTC() }),
	)
	_, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
