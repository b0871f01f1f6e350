package model

import (
	"strings"
	"time"
)

// Institution statuses. Only "active" institutions are admitted through the
// issuance gates; "blocked" and "revoked" are both hard denials.
const (
	InstitutionActive  = "active"
	InstitutionBlocked = "blocked"
	InstitutionRevoked = "revoked"
)

// Institution is a partner organization that consumes issuance credits.
// Credits are decremented by one per admitted issuance validation; emissions
// and verifications are monotonic usage counters.
type Institution struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Slug          string    `json:"slug" db:"slug"`
	Status        string    `json:"status" db:"status"`
	Plan          string    `json:"plan" db:"plan"`
	Credits       int64     `json:"credits" db:"credits"`
	Emissions     int64     `json:"emissions" db:"emissions"`
	Verifications int64     `json:"verifications" db:"verifications"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// Slugify derives a URL-safe slug from an institution name: lowercase with
// whitespace runs collapsed to single hyphens.
func Slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
