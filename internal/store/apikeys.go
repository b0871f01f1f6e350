package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/academicchain/platform/internal/model"
)

// CreateAPIKey inserts a new API key record. The key_hash must already be set
// (use HashAPIKey). If key.ID is empty a UUID is assigned; CreatedAt is
// populated after insert. The unique index on key_hash guarantees at most one
// record per digest.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	key.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_keys
		(id, institution_id, name, role, key_prefix, key_hash, is_active, created_at, expires_at, last_used)
		VALUES
		(:id, :institution_id, :name, :role, :key_prefix, :key_hash, :is_active, :created_at, :expires_at, :last_used)`

	if _, err := s.db.NamedExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetActiveAPIKeyByHash looks up an active API key by its SHA-256 digest.
// Inactive records and unknown digests are indistinguishable to the caller;
// both return ErrNotFound.
func (s *Store) GetActiveAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key,
		"SELECT * FROM api_keys WHERE key_hash = ? AND is_active = 1", hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return &key, nil
}

// GetAPIKey returns an API key record by ID.
func (s *Store) GetAPIKey(ctx context.Context, id string) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, "SELECT * FROM api_keys WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &key, nil
}

// ListAPIKeys returns all API key records, newest first.
func (s *Store) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.SelectContext(ctx, &keys,
		"SELECT * FROM api_keys ORDER BY created_at DESC, id"); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// DeleteAPIKey removes an API key record outright. Revocation is a hard
// delete so the next validation against the digest misses immediately; the
// revoked-key counter in settings is bumped in the same transaction so the
// overview can still report it.
func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx, "DELETE FROM api_keys WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := incrementCounterTx(ctx, tx, settingRevokedKeys); err != nil {
		return err
	}

	return tx.Commit()
}

// TouchAPIKeyLastUsed sets the last_used timestamp for an API key.
func (s *Store) TouchAPIKeyLastUsed(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET last_used = ? WHERE id = ?", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch api key last used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
