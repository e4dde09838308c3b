package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/qlhub/qlhub/internal/log"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS items (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	locator            TEXT NOT NULL,
	last_notify        INTEGER NOT NULL DEFAULT 0,
	notification_count INTEGER NOT NULL DEFAULT 0,
	snapshots          TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
)`}

// SQLiteStore keeps one row per item. Snapshots are stored as a json array.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) *Document {
	logger := log.LoggerFromContext(ctx).With(slog.String("store", s.path))
	doc, err := s.load(ctx)
	if err != nil {
		logger.Error(fmt.Sprintf("error while loading history, starting from scratch: %v", err))
		return NewDocument()
	}
	logger.Debug(fmt.Sprintf("loaded history of %d items", len(doc.Items)))
	return doc
}

func (s *SQLiteStore) load(ctx context.Context) (*Document, error) {
	doc := NewDocument()
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'last_update'`).Scan(&doc.LastUpdate)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, locator, last_notify, notification_count, snapshots FROM items`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		h := &ItemHistory{}
		var snapshots string
		if err := rows.Scan(&h.ID, &h.Name, &h.Locator, &h.LastNotify, &h.NotificationCount, &snapshots); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(snapshots), &h.Snapshots); err != nil {
			return nil, fmt.Errorf("item %s: %w", h.ID, err)
		}
		doc.Items[h.ID] = h
	}
	return doc, rows.Err()
}

// Save replaces all rows inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, doc *Document) error {
	doc.LastUpdate = At(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	for id, h := range doc.Items {
		snapshots, err := json.Marshal(h.Snapshots)
		if err != nil {
			return fmt.Errorf("encode snapshots of %s: %w", id, err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO items(id, name, locator, last_notify, notification_count, snapshots)
VALUES (?, ?, ?, ?, ?, ?)`, id, h.Name, h.Locator, int64(h.LastNotify), h.NotificationCount, string(snapshots))
		if err != nil {
			return fmt.Errorf("insert item %s: %w", id, err)
		}
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO meta(key, value) VALUES ('last_update', ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, int64(doc.LastUpdate))
	if err != nil {
		return fmt.Errorf("update meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
