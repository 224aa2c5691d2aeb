package authstate

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound means the state was never saved or has already been consumed.
	ErrNotFound = errors.New("auth state not found")
	// ErrExpired means the state existed but its TTL elapsed before it was consumed.
	ErrExpired = errors.New("auth state expired")
	// ErrInvalid is returned by Save for empty or inconsistent values.
	ErrInvalid = errors.New("invalid auth state")
)

// AuthState binds an opaque state value to the PKCE verifier for one redirect round-trip.
type AuthState struct {
	State        string
	CodeVerifier string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the state is past its expiry at now.
func (s *AuthState) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Validate checks the fields every store requires.
func (s *AuthState) Validate() error {
	if s == nil || strings.TrimSpace(s.State) == "" || s.CodeVerifier == "" || s.ExpiresAt.IsZero() {
		return ErrInvalid
	}
	return nil
}

// Repo stores authorization state with a TTL and at-most-once consumption.
//
// Consume must be atomic with respect to deletion: when several callers (or
// several service instances) consume the same state concurrently, at most one
// of them gets the verifier. The others see ErrNotFound.
type Repo interface {
	Save(ctx context.Context, state *AuthState) error
	Consume(ctx context.Context, state string) (*AuthState, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// New builds an AuthState that expires ttl after now.
func New(state, codeVerifier string, now time.Time, ttl time.Duration) *AuthState {
	return &AuthState{
		State:        state,
		CodeVerifier: codeVerifier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}
