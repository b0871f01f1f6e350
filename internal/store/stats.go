package store

import (
	"context"
	"fmt"
)

// UsageTotals are the platform-wide counters shown on the overview.
type UsageTotals struct {
	TotalEmissions     int64 `db:"total_emissions"`
	TotalVerifications int64 `db:"total_verifications"`
	ActiveInstitutions int64 `db:"active_institutions"`
}

// Totals aggregates emission/verification counters and the active
// institution count in one query.
func (s *Store) Totals(ctx context.Context) (*UsageTotals, error) {
	var t UsageTotals
	const q = `SELECT
		COALESCE(SUM(emissions), 0) AS total_emissions,
		COALESCE(SUM(verifications), 0) AS total_verifications,
		COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0) AS active_institutions
		FROM institutions`
	if err := s.db.GetContext(ctx, &t, q); err != nil {
		return nil, fmt.Errorf("usage totals: %w", err)
	}
	return &t, nil
}
