// Package auth guards the admin surface: a shared-secret login that
// trades the secret for a short-lived HS256 token.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = 12 * time.Hour
	adminSubject    = "admin"
)

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingAdminSecret   = errors.New("admin secret must be provided")

	// ErrInvalidSecret indicates a login attempt with the wrong secret.
	ErrInvalidSecret = errors.New("auth: invalid admin secret")
	// ErrInvalidToken indicates a token that failed validation.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// TokenIssuerConfig configures the admin token issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	AdminSecret   string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer exchanges the admin secret for signed tokens and validates
// tokens presented on the admin endpoints.
type TokenIssuer struct {
	config TokenIssuerConfig
	clock  func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with sane defaults.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	if cfg.AdminSecret == "" {
		return nil, errMissingAdminSecret
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		config: TokenIssuerConfig{
			SigningSecret: cfg.SigningSecret,
			AdminSecret:   cfg.AdminSecret,
			Issuer:        cfg.Issuer,
			Audience:      cfg.Audience,
			TokenTTL:      ttl,
			Clock:         clock,
		},
		clock: clock,
	}, nil
}

// Login validates the presented admin secret and issues a signed token
// with its expiry in seconds. The comparison is constant time.
func (i *TokenIssuer) Login(secret string) (string, int64, error) {
	if subtle.ConstantTimeCompare([]byte(secret), []byte(i.config.AdminSecret)) != 1 {
		return "", 0, ErrInvalidSecret
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.config.TokenTTL).UTC()

	registered := jwt.RegisteredClaims{
		Subject:   adminSubject,
		Issuer:    i.config.Issuer,
		Audience:  []string{i.config.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, registered)
	signed, err := token.SignedString(i.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ValidateToken ensures the admin token is well formed and returns its subject.
func (i *TokenIssuer) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return i.config.SigningSecret, nil
		},
		jwt.WithAudience(i.config.Audience),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject != adminSubject {
		return "", fmt.Errorf("%w: unexpected subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
