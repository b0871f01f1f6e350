package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/academicchain/platform/internal/model"
	"github.com/academicchain/platform/internal/store"
)

// KeyMarker prefixes every raw key so leaked secrets are recognizable in
// scanners and logs.
const KeyMarker = "ac_live_"

// DefaultKeyRole is assigned when a key is created without an explicit role.
const DefaultKeyRole = "institution_admin"

// KeyService is the API key lifecycle: generation, revocation, listing.
type KeyService struct {
	store *store.Store
}

// NewKeyService creates a KeyService.
func NewKeyService(st *store.Store) *KeyService {
	return &KeyService{store: st}
}

// Generate creates a new key for an institution: 32 random bytes hex-encoded
// behind the marker, hashed for storage. The raw secret is returned exactly
// once and is not recoverable afterwards.
//
// The institution must exist unless institutionID is the "admin" sentinel.
// Returns store.ErrNotFound otherwise.
func (s *KeyService) Generate(ctx context.Context, institutionID, name, role string, expiresAt *time.Time) (*model.APIKey, string, error) {
	if institutionID != model.AdminOwner {
		if _, err := s.store.GetInstitution(ctx, institutionID); err != nil {
			return nil, "", err
		}
	}

	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, "", fmt.Errorf("generate random key: %w", err)
	}
	rawKey := KeyMarker + hex.EncodeToString(randomBytes)

	if role == "" {
		role = DefaultKeyRole
	}

	key := &model.APIKey{
		InstitutionID: institutionID,
		Name:          name,
		Role:          role,
		KeyPrefix:     rawKey[:len(KeyMarker)+8],
		KeyHash:       store.HashAPIKey(rawKey),
		IsActive:      true,
		ExpiresAt:     expiresAt,
	}

	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, "", err
	}
	return key, rawKey, nil
}

// Revoke removes a key record outright. The deletion is visible to the very
// next validation call; there is no cache in front of the store.
func (s *KeyService) Revoke(ctx context.Context, id string) error {
	return s.store.DeleteAPIKey(ctx, id)
}

// RedactedKey is an API key record enriched with its owner's display name,
// with the digest withheld.
type RedactedKey struct {
	model.APIKey
	InstitutionName string `json:"institutionName"`
}

// List returns all key records, newest first, with institution names joined
// in. Hashes are never serialized (the model withholds them) and raw secrets
// were never stored.
func (s *KeyService) List(ctx context.Context) ([]RedactedKey, error) {
	keys, err := s.store.ListAPIKeys(ctx)
	if err != nil {
		return nil, err
	}
	insts, err := s.store.ListInstitutions(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(insts))
	for _, inst := range insts {
		names[inst.ID] = inst.Name
	}

	out := make([]RedactedKey, len(keys))
	for i, k := range keys {
		name, ok := names[k.InstitutionID]
		if !ok {
			name = "Unknown"
		}
		out[i] = RedactedKey{APIKey: k, InstitutionName: name}
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
