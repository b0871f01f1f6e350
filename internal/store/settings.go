package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// settingRevokedKeys counts hard-deleted API keys, since revocation removes
// the row itself.
const settingRevokedKeys = "revoked_key_count"

// GetSetting returns the value for a settings key, or ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting upserts a settings key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	const q = `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// RevokedKeyCount returns the number of keys revoked over the store's lifetime.
func (s *Store) RevokedKeyCount(ctx context.Context) (int64, error) {
	value, err := s.GetSetting(ctx, settingRevokedKeys)
	if err != nil {
		if err == ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse revoked key count: %w", err)
	}
	return n, nil
}

func incrementCounterTx(ctx context.Context, tx *sqlx.Tx, key string) error {
	const q = `INSERT INTO settings (key, value) VALUES (?, '1')
		ON CONFLICT(key) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)`
	if _, err := tx.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("increment %s: %w", key, err)
	}
	return nil
}
