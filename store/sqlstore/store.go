package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style and DDL types.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Store reads the user and account tables owned by the social-login provider
// and owns the auth_states table.
type Store struct {
	db      *sql.DB
	dialect Dialect
	nowTime func() time.Time
	logger  zerolog.Logger
}

type Option func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// Open connects to sqlite (dsn is a file path or ":memory:") or postgres (dsn is a
// lib/pq connection string) and ensures the auth_states table exists.
func Open(ctx context.Context, dialect Dialect, dsn string, options ...Option) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectSQLite:
		db, err = openSQLite(dsn)
	case DialectPostgres:
		if dsn == "" {
			return nil, errors.New("[sqlstore Open] postgres dsn is required")
		}
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("[sqlstore Open] unsupported database type %q", dialect)
	}
	if err != nil {
		return nil, errors.Wrap(err, "[sqlstore Open] open database")
	}

	s := New(db, dialect, options...)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqlstore Open] ping database")
	}
	if err := s.EnsureAuthStatesTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func openSQLite(path string) (*sql.DB, error) {
	inMemory := path == "" || path == ":memory:"
	if inMemory {
		path = ":memory:"
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		path += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if inMemory {
		// each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, dialect Dialect, options ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		nowTime: time.Now,
		logger:  log.With().Str("component", "sqlstore").Logger(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping is used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureAuthStatesTable creates the only table the bridge owns.
func (s *Store) EnsureAuthStatesTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS auth_states (
			state TEXT PRIMARY KEY,
			code_verifier TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_auth_states_expires_at ON auth_states (expires_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "[sqlstore EnsureAuthStatesTable]")
		}
	}
	return nil
}

// EnsureUserTables creates the user and account tables for local development and
// tests. In production they are created by the social-login provider's migrations.
func (s *Store) EnsureUserTables(ctx context.Context) error {
	boolType := "INTEGER"
	if s.dialect == DialectPostgres {
		boolType = "BOOLEAN"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS "user" (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			"emailVerified" ` + boolType + ` NOT NULL DEFAULT ` + s.falseLiteral() + `,
			name TEXT NOT NULL DEFAULT '',
			image TEXT,
			"firstLoginMethod" TEXT,
			"lastLoginMethod" TEXT,
			"biUserId" TEXT,
			"createdAt" TIMESTAMP NOT NULL,
			"updatedAt" TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS account (
			id TEXT PRIMARY KEY,
			"userId" TEXT NOT NULL REFERENCES "user" (id),
			"providerId" TEXT NOT NULL,
			"accountId" TEXT NOT NULL,
			"createdAt" TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_account_user_provider ON account ("userId", "providerId")`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "[sqlstore EnsureUserTables]")
		}
	}
	return nil
}

func (s *Store) falseLiteral() string {
	if s.dialect == DialectPostgres {
		return "FALSE"
	}
	return "0"
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
