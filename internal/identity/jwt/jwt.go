// Package jwt issues and verifies stateless HS256 session tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/accountd/accountd/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Errors returned by the issuer.
var (
	ErrMissingSecret = errors.New("jwt secret key is required")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// Config contains token issuer settings.
type Config struct {
	SecretKey           string
	AccessTokenDuration time.Duration
	Issuer              string
}

// Claims is the signed claim set. Subject carries the user id.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies access tokens.
type Issuer struct {
	secret   []byte
	duration time.Duration
	issuer   string
	now      func() time.Time
}

// NewIssuer creates an issuer. An empty secret is a configuration error.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingSecret
	}
	if cfg.AccessTokenDuration <= 0 {
		return nil, fmt.Errorf("access token duration must be positive, got %s", cfg.AccessTokenDuration)
	}

	return &Issuer{
		secret:   []byte(cfg.SecretKey),
		duration: cfg.AccessTokenDuration,
		issuer:   cfg.Issuer,
		now:      time.Now,
	}, nil
}

// Issue signs a token for subject with the given role.
func (i *Issuer) Issue(subject string, role domain.Role) (string, error) {
	now := i.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.duration)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks signature and expiry and returns the claims.
// A token lacking subject or role is rejected even if correctly signed.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: missing subject or role", ErrInvalidToken)
	}

	return claims, nil
}
