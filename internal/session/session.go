// Package session holds the process-wide bearer credential.
//
// LIFECYCLE:
//
//	Init(token)     on sign-in (or on startup, via Restore)
//	Current()       synchronous lookup by the request layer
//	Teardown()      on sign-out, or automatically once the credential expires
//
// There is exactly one credential per process. Every request reads it through
// Source, an oauth2.TokenSource, so nothing else looks it up directly.
//
// The credential is a JWT issued by the remote service. The client cannot verify
// the signature (it never sees the secret); it only reads the subject and the
// expiry so an expired credential is treated as "no session" instead of producing
// a 401 on every request.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/sakif/studydeck/internal/apperror"
)

// Credential is a signed-in user's bearer token plus the claims the client reads.
type Credential struct {
	Token     string
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// Expired reports whether the credential is past its expiry at now.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

var (
	mu      sync.RWMutex
	current *Credential

	// now is swapped in tests.
	now = time.Now
)

// Parse reads the claims of a bearer token without verifying its signature.
func Parse(token string) (Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Credential{}, apperror.ValidationFailed("token", "token is required")
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Credential{}, apperror.ValidationFailed("token",
			fmt.Sprintf("token is not a valid JWT: %v", err))
	}

	c := Credential{Token: token, Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		c.ExpiresAt = claims.ExpiresAt.Time
	}
	return c, nil
}

// Init installs token as the process credential, replacing any previous one.
// An already-expired token is rejected.
func Init(token string) (Credential, error) {
	c, err := Parse(token)
	if err != nil {
		return Credential{}, err
	}
	if c.Expired(now()) {
		return Credential{}, apperror.ValidationFailed("token", "token has expired")
	}

	mu.Lock()
	current = &c
	mu.Unlock()
	return c, nil
}

// Teardown clears the process credential. Safe to call without a session.
func Teardown() {
	mu.Lock()
	current = nil
	mu.Unlock()
}

// Current returns the live credential. It returns false when there is none or when
// it has expired; an expired credential is torn down as a side effect.
func Current() (Credential, bool) {
	mu.RLock()
	c := current
	mu.RUnlock()

	if c == nil {
		return Credential{}, false
	}
	if c.Expired(now()) {
		mu.Lock()
		if current == c {
			current = nil
		}
		mu.Unlock()
		return Credential{}, false
	}
	return *c, true
}

// Source is the auth provider consumed by the request layer.
type Source struct{}

var _ oauth2.TokenSource = Source{}

// Token implements oauth2.TokenSource. The error wraps apperror.ErrNoSession when
// there is no usable credential.
func (Source) Token() (*oauth2.Token, error) {
	c, ok := Current()
	if !ok {
		return nil, apperror.NoSession()
	}
	return &oauth2.Token{
		AccessToken: c.Token,
		TokenType:   "Bearer",
		Expiry:      c.ExpiresAt,
	}, nil
}

// Store persists the credential between process runs.
type Store interface {
	SaveCredential(ctx context.Context, token string) error
	LoadCredential(ctx context.Context) (string, error)
	DeleteCredential(ctx context.Context) error
}

// SignIn initialises the session and persists the token.
func SignIn(ctx context.Context, store Store, token string) (Credential, error) {
	c, err := Init(token)
	if err != nil {
		return Credential{}, err
	}
	if err := store.SaveCredential(ctx, c.Token); err != nil {
		Teardown()
		return Credential{}, fmt.Errorf("session: saving credential: %w", err)
	}
	return c, nil
}

// SignOut tears the session down and forgets the persisted token.
func SignOut(ctx context.Context, store Store) error {
	Teardown()
	if err := store.DeleteCredential(ctx); err != nil {
		return fmt.Errorf("session: deleting credential: %w", err)
	}
	return nil
}

// Restore initialises the session from a previously persisted token. It returns
// false without error when nothing usable is stored; a stored token that has
// expired is deleted.
func Restore(ctx context.Context, store Store) (Credential, bool, error) {
	token, err := store.LoadCredential(ctx)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return Credential{}, false, nil
		}
		return Credential{}, false, fmt.Errorf("session: loading credential: %w", err)
	}

	c, err := Init(token)
	if err != nil {
		if delErr := store.DeleteCredential(ctx); delErr != nil {
			return Credential{}, false, fmt.Errorf("session: deleting unusable credential: %w", delErr)
		}
		return Credential{}, false, nil
	}
	return c, true, nil
}
