package model

import "time"

// AdminOwner is the sentinel institution ID for platform-level keys that are
// not bound to any partner institution.
const AdminOwner = "admin"

// APIKey represents an API key issued to an institution. The raw key is
// generated once, returned once, and never stored; only a SHA-256 hash and a
// short display prefix are persisted.
type APIKey struct {
	ID            string     `json:"id" db:"id"`
	InstitutionID string     `json:"institutionId" db:"institution_id"`
	Name          string     `json:"name" db:"name"`
	Role          string     `json:"role" db:"role"`
	KeyPrefix     string     `json:"keyPrefix" db:"key_prefix"`
	KeyHash       string     `json:"-" db:"key_hash"` // SHA-256 hex, never expose
	IsActive      bool       `json:"status" db:"is_active"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty" db:"expires_at"`
	LastUsed      *time.Time `json:"lastUsed,omitempty" db:"last_used"`
}
