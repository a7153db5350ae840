package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SettingsRepository is a small key/value store for calculation settings
// such as the imported grading policy and per-mark-set overrides.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value for a key; ok is false when the key is absent.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	const query = `SELECT value FROM settings WHERE key = $1`
	if err := r.db.GetContext(ctx, &value, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get setting: %w", err)
	}
	return value, true, nil
}

// Set writes a key, replacing any previous value.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	const query = `INSERT INTO settings (key, value, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (key)
        DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM settings WHERE key = $1`
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	return nil
}
