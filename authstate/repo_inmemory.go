package authstate

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface.
// Consumption is atomic within one process only.
type InMemoryRepo struct {
	mu      sync.Mutex
	states  map[string]AuthState
	nowTime func() time.Time
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory auth state repository
func NewInMemoryRepo(nowTime func() time.Time) *InMemoryRepo {
	if nowTime == nil {
		nowTime = time.Now
	}
	return &InMemoryRepo{
		states:  make(map[string]AuthState),
		nowTime: nowTime,
	}
}

// Save stores a copy of the auth state, replacing any previous value for the same key.
func (r *InMemoryRepo) Save(_ context.Context, state *AuthState) error {
	if err := state.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[state.State] = *state
	return nil
}

// Consume removes the state and returns it. Expired entries are removed as well.
func (r *InMemoryRepo) Consume(_ context.Context, state string) (*AuthState, error) {
	r.mu.Lock()
	stored, exists := r.states[state]
	delete(r.states, state)
	r.mu.Unlock()

	if !exists {
		return nil, ErrNotFound
	}
	if stored.Expired(r.nowTime()) {
		return nil, ErrExpired
	}
	return &stored, nil
}

func (r *InMemoryRepo) PurgeExpired(_ context.Context) (int64, error) {
	now := r.nowTime()

	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for k, v := range r.states {
		if v.Expired(now) {
			delete(r.states, k)
			purged++
		}
	}
	return purged, nil
}
