package sqlite

import (
	"context"
	"database/sql"

	"github.com/ageniuscoder/mmchat/widget/internal/storage"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

type Sqlite struct {
	Db *sql.DB
}

var _ storage.Storage = (*Sqlite)(nil)

func New(dsn string) (*Sqlite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable WAL for better concurrency
	_, _ = db.Exec(`PRAGMA journal_mode=WAL;`)

	// Wait up to 5s if locked
	_, _ = db.Exec(`PRAGMA busy_timeout = 5000;`)

	s := &Sqlite{
		Db: db,
	}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite: migrate")
	}
	return s, nil
}

func (s *Sqlite) Ping(ctx context.Context) error {
	return s.Db.PingContext(ctx)
}

func (s *Sqlite) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.Db.QueryRowContext(ctx, `SELECT value FROM device_kv WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "sqlite: get %s", key)
	}
	return v, nil
}

func (s *Sqlite) Set(ctx context.Context, key, value string) error {
	_, err := s.Db.ExecContext(ctx,
		`INSERT INTO device_kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP`,
		key, value)
	return errors.Wrapf(err, "sqlite: set %s", key)
}

func (s *Sqlite) Delete(ctx context.Context, key string) error {
	_, err := s.Db.ExecContext(ctx, `DELETE FROM device_kv WHERE key=?`, key)
	return errors.Wrapf(err, "sqlite: delete %s", key)
}

func (s *Sqlite) Close() error {
	return s.Db.Close()
}
