package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OWOX/owox-data-marts-sub009/authstate"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "idp_owox_state:"
	// DefaultExpiredRetention keeps entries readable past their expiry so Consume can
	// report ErrExpired instead of ErrNotFound.
	DefaultExpiredRetention = 5 * time.Minute
)

type storedState struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"codeVerifier"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Repo keeps auth state in Redis. Consume relies on GETDEL, so only one of several
// instances racing on the same state receives it.
type Repo struct {
	client    redis.Cmdable
	retention time.Duration
	nowTime   func() time.Time
}

var _ authstate.Repo = (*Repo)(nil)

type Option func(*Repo)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(r *Repo) {
		r.nowTime = nowFunc
	}
}

// WithExpiredRetention sets how long an expired entry stays in Redis.
func WithExpiredRetention(d time.Duration) Option {
	return func(r *Repo) {
		r.retention = d
	}
}

func New(client redis.Cmdable, options ...Option) *Repo {
	r := &Repo{
		client:    client,
		retention: DefaultExpiredRetention,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func key(state string) string {
	return fmt.Sprintf("%s%s", keyPrefix, state)
}

func (r *Repo) Save(ctx context.Context, state *authstate.AuthState) error {
	if err := state.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(storedState{
		State:        state.State,
		CodeVerifier: state.CodeVerifier,
		CreatedAt:    state.CreatedAt,
		ExpiresAt:    state.ExpiresAt,
	})
	if err != nil {
		return errors.Wrap(err, "[redisrepo Save] marshal state")
	}

	ttl := state.ExpiresAt.Sub(r.nowTime()) + r.retention
	if ttl <= 0 {
		ttl = r.retention
	}
	if err := r.client.Set(ctx, key(state.State), data, ttl).Err(); err != nil {
		return errors.Wrap(err, "[redisrepo Save] set state")
	}
	return nil
}

func (r *Repo) Consume(ctx context.Context, state string) (*authstate.AuthState, error) {
	data, err := r.client.GetDel(ctx, key(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, authstate.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[redisrepo Consume] getdel state")
	}

	var stored storedState
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrap(err, "[redisrepo Consume] unmarshal state")
	}

	consumed := &authstate.AuthState{
		State:        stored.State,
		CodeVerifier: stored.CodeVerifier,
		CreatedAt:    stored.CreatedAt,
		ExpiresAt:    stored.ExpiresAt,
	}
	if consumed.Expired(r.nowTime()) {
		return nil, authstate.ErrExpired
	}
	return consumed, nil
}

// PurgeExpired is a no-op: Redis evicts entries through their TTL.
func (r *Repo) PurgeExpired(context.Context) (int64, error) {
	return 0, nil
}

// Ping is used by the health endpoint.
func (r *Repo) Ping(ctx context.Context) error {
	return errors.Wrap(r.client.Ping(ctx).Err(), "[redisrepo Ping]")
}
