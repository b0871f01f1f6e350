package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/academicchain/platform/internal/model"
)

// AppendAuditEntry appends one entry to the audit log. If entry.ID is empty a
// UUID is assigned; if the timestamp is zero it defaults to now. Entries are
// never mutated after insertion except for the status rewrite performed by
// IssuanceDebit, which targets the request's own entry by ID.
func (s *Store) AppendAuditEntry(ctx context.Context, entry *model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	const q = `INSERT INTO audit_log (id, institution_id, endpoint, status, timestamp)
		VALUES (:id, :institution_id, :endpoint, :status, :timestamp)`

	if _, err := s.db.NamedExecContext(ctx, q, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns the audit log, newest first.
func (s *Store) ListAuditEntries(ctx context.Context) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	if err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM audit_log ORDER BY timestamp DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// DayCount is the number of audit entries recorded on one calendar day.
type DayCount struct {
	Day   string `db:"day" json:"label"`
	Count int64  `db:"count" json:"value"`
}

// UsageByDay returns per-day request counts over the whole audit log,
// ascending by day.
func (s *Store) UsageByDay(ctx context.Context) ([]DayCount, error) {
	var counts []DayCount
	const q = `SELECT substr(timestamp, 1, 10) AS day, COUNT(*) AS count
		FROM audit_log GROUP BY day ORDER BY day`
	if err := s.db.SelectContext(ctx, &counts, q); err != nil {
		return nil, fmt.Errorf("usage by day: %w", err)
	}
	return counts, nil
}

// RequestCountsByInstitution returns the number of audit entries per
// institution ID. Entries with a null institution are excluded.
func (s *Store) RequestCountsByInstitution(ctx context.Context) (map[string]int64, error) {
	rows := []struct {
		InstitutionID string `db:"institution_id"`
		Count         int64  `db:"count"`
	}{}
	const q = `SELECT institution_id, COUNT(*) AS count
		FROM audit_log WHERE institution_id IS NOT NULL GROUP BY institution_id`
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("request counts by institution: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.InstitutionID] = r.Count
	}
	return counts, nil
}
