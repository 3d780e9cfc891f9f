// Package auth issues and checks the HS256 bearer tokens of the development remote
// service.
//
// TOKEN SHAPE:
// The subject is the user's email, as in the production service. Tokens always carry
// an expiry and the issuer "studydeck"; anything else is rejected.
//
// The client side never validates signatures (see internal/session); only the
// service holding the secret does.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	Issuer = "studydeck"
	// DefaultTTL matches the production access token lifetime.
	DefaultTTL = 30 * time.Minute
)

// TokenService signs and validates tokens with a shared secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService rejects secrets shorter than 16 characters.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Generate issues a token for email with DefaultTTL.
func (s *TokenService) Generate(email string) (string, error) {
	return s.GenerateWithDuration(email, DefaultTTL)
}

// GenerateWithDuration issues a token for email that expires after d. A negative d
// yields an already expired token, which tests use.
func (s *TokenService) GenerateWithDuration(email string, d time.Duration) (string, error) {
	if email == "" {
		return "", errors.New("auth: email is required")
	}
	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    Issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// ErrExpired is returned by Validate for a well-formed token past its expiry.
var ErrExpired = errors.New("auth: token expired")

// Validate checks signature, algorithm, issuer and expiry, and returns the email.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid || c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
