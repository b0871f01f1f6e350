package model

import (
	"database/sql"
	"time"
)

// Audit entry statuses. Every validation attempt produces exactly one entry,
// except the expired-key path which produces none.
// A plain success entry is rewritten in place to AuditSuccessIssuance when the
// same request goes on to debit a credit.
const (
	AuditSuccess         = "success"
	AuditSuccessIssuance = "success_issuance"
	AuditFailed          = "failed"
	AuditFailedNoCredits = "failed_no_credits"
)

// AuditEntry is one validation attempt in the append-only audit log.
// InstitutionID is null when no key matched the presented digest.
type AuditEntry struct {
	ID            string         `json:"id" db:"id"`
	InstitutionID sql.NullString `json:"-" db:"institution_id"`
	Endpoint      string         `json:"endpoint" db:"endpoint"`
	Status        string         `json:"status" db:"status"`
	Timestamp     time.Time      `json:"timestamp" db:"timestamp"`
}
