package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/groupwatch/pkg/logger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	name       TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// sqlitePragmas tune the connection. They are best effort: a failure is
// logged and the backend still opens.
var sqlitePragmas = []string{ //nolint:gochecknoglobals // replaced in tests
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
}

// sqliteBackend keeps snapshot documents in a single table. Each Put is one
// upsert statement, so readers see either the old or the new document.
type sqliteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteBackend opens (and migrates) the database at path. log receives
// pragma failures at debug level; nil discards them.
func NewSQLiteBackend(ctx context.Context, path string, log logger.Logger) (Backend, error) {
	if log == nil {
		log = logger.Nop()
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrStorage)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), dirPermission); err != nil {
			return nil, fmt.Errorf("%w: create sqlite dir: %v", ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrStorage, err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			log.Debug(ctx, "sqlite pragma failed", logger.String("pragma", pragma), logger.Error(err))
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate sqlite: %v", ErrStorage, err)
	}
	return &sqliteBackend{db: db, now: time.Now}, nil
}

func (b *sqliteBackend) Get(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := b.db.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotExist
	}
	return body, err
}

func (b *sqliteBackend) Put(ctx context.Context, name string, body []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO snapshots(name, body, updated_at) VALUES(?,?,?)
		 ON CONFLICT(name) DO UPDATE SET body=excluded.body, updated_at=excluded.updated_at`,
		name, body, b.now().Unix(),
	)
	return err
}

func (b *sqliteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
