package sqlstore

import (
	"context"
	"database/sql"

	"github.com/OWOX/owox-data-marts-sub009/users"
	"github.com/pkg/errors"
)

var (
	_ users.UserRepo    = (*Store)(nil)
	_ users.AccountRepo = (*Store)(nil)
)

const userColumns = `id, email, "emailVerified", name, image, "firstLoginMethod", "lastLoginMethod", "biUserId"`

func scanUser(row *sql.Row) (*users.DatabaseUser, error) {
	var (
		u                                            users.DatabaseUser
		name, image, firstLogin, lastLogin, external sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.EmailVerified, &name, &image, &firstLogin, &lastLogin, &external)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Name = name.String
	u.Image = image.String
	u.FirstLoginMethod = nullable(firstLogin)
	u.LastLoginMethod = nullable(lastLogin)
	u.ExternalUserID = nullable(external)
	return &u, nil
}

func nullable(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}

func (s *Store) GetByID(ctx context.Context, id string) (*users.DatabaseUser, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM "user" WHERE id = ?`), id)
	u, err := scanUser(row)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return nil, errors.Wrap(err, "[sqlstore GetByID]")
	}
	return u, err
}

// GetByEmail expects an already normalized address.
func (s *Store) GetByEmail(ctx context.Context, email string) (*users.DatabaseUser, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM "user" WHERE lower(email) = ?`), email)
	u, err := scanUser(row)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return nil, errors.Wrap(err, "[sqlstore GetByEmail]")
	}
	return u, err
}

func (s *Store) SetFirstLoginMethod(ctx context.Context, userID, method string) error {
	return s.setOnce(ctx, "firstLoginMethod", userID, method)
}

// SetExternalUserID stores the Identity Authority user id in the biUserId column.
func (s *Store) SetExternalUserID(ctx context.Context, userID, externalUserID string) error {
	return s.setOnce(ctx, "biUserId", userID, externalUserID)
}

func (s *Store) SetLastLoginMethod(ctx context.Context, userID, method string) error {
	query := s.rebind(`UPDATE "user" SET "lastLoginMethod" = ?, "updatedAt" = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, method, s.nowTime().UTC(), userID); err != nil {
		return errors.Wrap(err, "[sqlstore SetLastLoginMethod]")
	}
	return nil
}

// setOnce only writes column when it is NULL or empty. column is never user input.
func (s *Store) setOnce(ctx context.Context, column, userID, value string) error {
	query := s.rebind(`UPDATE "user" SET "` + column + `" = ?, "updatedAt" = ?
		WHERE id = ? AND ("` + column + `" IS NULL OR "` + column + `" = '')`)
	if _, err := s.db.ExecContext(ctx, query, value, s.nowTime().UTC(), userID); err != nil {
		return errors.Wrapf(err, "[sqlstore setOnce] %s", column)
	}
	return nil
}

const accountColumns = `id, "userId", "providerId", "accountId", "createdAt"`

func (s *Store) GetByUserAndProvider(ctx context.Context, userID, providerID string) (*users.DatabaseAccount, error) {
	query := s.rebind(`SELECT ` + accountColumns + ` FROM account
		WHERE "userId" = ? AND "providerId" = ?
		ORDER BY "createdAt" DESC LIMIT 1`)
	return s.queryAccount(ctx, "[sqlstore GetByUserAndProvider]", query, userID, providerID)
}

func (s *Store) GetLatestByUser(ctx context.Context, userID string) (*users.DatabaseAccount, error) {
	query := s.rebind(`SELECT ` + accountColumns + ` FROM account
		WHERE "userId" = ?
		ORDER BY "createdAt" DESC LIMIT 1`)
	return s.queryAccount(ctx, "[sqlstore GetLatestByUser]", query, userID)
}

func (s *Store) queryAccount(ctx context.Context, op, query string, args ...any) (*users.DatabaseAccount, error) {
	var a users.DatabaseAccount
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.UserID, &a.ProviderID, &a.AccountID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return &a, nil
}

// InsertUser adds a user row. Used for seeding development databases and tests.
func (s *Store) InsertUser(ctx context.Context, u *users.DatabaseUser) error {
	now := s.nowTime().UTC()
	query := s.rebind(`INSERT INTO "user" (` + userColumns + `, "createdAt", "updatedAt")
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.EmailVerified, u.Name, nullString(u.Image),
		ptrString(u.FirstLoginMethod), ptrString(u.LastLoginMethod), ptrString(u.ExternalUserID),
		now, now,
	)
	if err != nil {
		return errors.Wrap(err, "[sqlstore InsertUser]")
	}
	return nil
}

// InsertAccount links an account row. CreatedAt defaults to now.
func (s *Store) InsertAccount(ctx context.Context, a *users.DatabaseAccount) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.nowTime().UTC()
	}
	query := s.rebind(`INSERT INTO account (` + accountColumns + `) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, a.ID, a.UserID, a.ProviderID, a.AccountID, a.CreatedAt.UTC()); err != nil {
		return errors.Wrap(err, "[sqlstore InsertAccount]")
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func ptrString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return nullString(*v)
}
