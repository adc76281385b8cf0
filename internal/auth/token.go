// Package auth issues and verifies bearer session tokens and models the
// signed-in identity the editor depends on.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthorized means the caller is not signed in or its session expired.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidToken means a token could not be parsed or verified.
	ErrInvalidToken = errors.New("invalid session token")
)

// DefaultTTL is the lifetime of issued tokens.
const DefaultTTL = 24 * time.Hour

// User is a signed-in account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// IssuerConfig configures an Issuer.
type IssuerConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// NewIssuer creates an issuer. The secret is required.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "typen"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{secret: []byte(secret), issuer: cfg.Issuer, ttl: cfg.TTL, now: cfg.Now}, nil
}

// Issue returns a signed token for user.
func (i *Issuer) Issue(user User) (string, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", errors.New("user id is required")
	}
	now := i.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Email: user.Email,
		Name:  user.Name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature, issuer and expiry and returns its user.
func (i *Issuer) Verify(token string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, ErrUnauthorized
	}
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return User{}, fmt.Errorf("%w: token expired", ErrUnauthorized)
		}
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return User{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// ParseUnverified reads the user from a token without checking its
// signature. Clients use it to learn who they are; servers must Verify.
func ParseUnverified(token string) (User, time.Time, error) {
	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), &claims); err != nil {
		return User{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return User{}, time.Time{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, exp, nil
}
