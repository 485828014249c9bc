package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SettingStore = (*SettingRepo)(nil)

// SettingRepo is the SQLite implementation of the SettingStore port interface.
type SettingRepo struct {
	db *DB
}

// NewSettingRepo creates a new SettingRepo backed by the given DB.
func NewSettingRepo(db *DB) *SettingRepo {
	return &SettingRepo{db: db}
}

// Get returns the value for key, or ("", nil) when the key is absent.
func (r *SettingRepo) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM settings WHERE key = ?`

	var value string
	err := r.db.Reader.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}

	return value, nil
}

// Set stores or replaces the value for key.
func (r *SettingRepo) Set(ctx context.Context, key, value string) error {
	const query = `INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`

	_, err := r.db.Writer.ExecContext(ctx, query, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}

	return nil
}
