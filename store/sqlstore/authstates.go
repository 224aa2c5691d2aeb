package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/OWOX/owox-data-marts-sub009/authstate"
	"github.com/pkg/errors"
)

var _ authstate.Repo = (*Store)(nil)

// Save inserts or replaces the state row.
func (s *Store) Save(ctx context.Context, state *authstate.AuthState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	query := s.rebind(`INSERT INTO auth_states (state, code_verifier, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (state) DO UPDATE SET
			code_verifier = excluded.code_verifier,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`)
	_, err := s.db.ExecContext(ctx, query,
		state.State,
		state.CodeVerifier,
		state.CreatedAt.UnixMilli(),
		state.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return errors.Wrap(err, "[sqlstore Save] insert auth state")
	}
	return nil
}

// Consume deletes the row and returns it in one statement, so concurrent
// consumers cannot both receive the verifier.
func (s *Store) Consume(ctx context.Context, state string) (*authstate.AuthState, error) {
	query := s.rebind(`DELETE FROM auth_states WHERE state = ?
		RETURNING state, code_verifier, created_at, expires_at`)

	var (
		consumed             authstate.AuthState
		createdAt, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, query, state).Scan(&consumed.State, &consumed.CodeVerifier, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authstate.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[sqlstore Consume] delete auth state")
	}
	consumed.CreatedAt = time.UnixMilli(createdAt)
	consumed.ExpiresAt = time.UnixMilli(expiresAt)

	if consumed.Expired(s.nowTime()) {
		return nil, authstate.ErrExpired
	}
	return &consumed, nil
}

func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM auth_states WHERE expires_at <= ?`), s.nowTime().UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "[sqlstore PurgeExpired]")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "[sqlstore PurgeExpired] rows affected")
	}
	if n > 0 {
		s.logger.Debug().Int64("purged", n).Msg("Purged expired auth states")
	}
	return n, nil
}
