package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-board/internal/config"
)

// Keys written by the session guard.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// LocalStorage is a persistent key/value store for client state, backed by
// a single SQLite table.
type LocalStorage struct {
	db *sql.DB
}

// OpenLocalStorage opens (and creates when needed) the storage database.
func OpenLocalStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*LocalStorage, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local storage: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS local_storage (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create local_storage table: %w", err)
	}

	if logger != nil {
		logger.Debug("local storage ready", zap.String("path", cfg.Path))
	}
	return &LocalStorage{db: db}, nil
}

// Get returns the value stored under key and whether it exists.
func (s *LocalStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *LocalStorage) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO local_storage (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Remove deletes keys; absent keys are ignored.
func (s *LocalStorage) Remove(ctx context.Context, keys ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, key); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *LocalStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
