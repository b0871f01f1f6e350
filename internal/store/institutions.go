package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/academicchain/platform/internal/model"
)

// Credit adjustment modes for AdjustCredits.
const (
	CreditAdd = "add"
	CreditSet = "set"
)

// CreateInstitution inserts a new institution. If inst.ID is empty a UUID is
// assigned; the CreatedAt field is populated after a successful insert.
func (s *Store) CreateInstitution(ctx context.Context, inst *model.Institution) error {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	if inst.Slug == "" {
		inst.Slug = model.Slugify(inst.Name)
	}
	if inst.Status == "" {
		inst.Status = model.InstitutionActive
	}
	inst.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO institutions
		(id, name, slug, status, plan, credits, emissions, verifications, created_at)
		VALUES
		(:id, :name, :slug, :status, :plan, :credits, :emissions, :verifications, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, inst); err != nil {
		return fmt.Errorf("insert institution: %w", err)
	}
	return nil
}

// GetInstitution returns an institution by ID.
func (s *Store) GetInstitution(ctx context.Context, id string) (*model.Institution, error) {
	var inst model.Institution
	if err := s.db.GetContext(ctx, &inst, "SELECT * FROM institutions WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get institution: %w", err)
	}
	return &inst, nil
}

// ListInstitutions returns all institutions ordered by creation time.
func (s *Store) ListInstitutions(ctx context.Context) ([]model.Institution, error) {
	var insts []model.Institution
	if err := s.db.SelectContext(ctx, &insts, "SELECT * FROM institutions ORDER BY created_at, id"); err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	return insts, nil
}

// AdjustCredits applies a credit adjustment and returns the resulting balance.
// CreditAdd adds the signed amount to the current balance; any other mode
// replaces the balance outright.
// The balance is allowed to go negative; only the issuance debit floors at zero.
func (s *Store) AdjustCredits(ctx context.Context, id string, amount int64, mode string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var credits int64
	if err := tx.GetContext(ctx, &credits, "SELECT credits FROM institutions WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get credits: %w", err)
	}

	if mode == CreditAdd {
		credits += amount
	} else {
		credits = amount
	}

	if _, err := tx.ExecContext(ctx, "UPDATE institutions SET credits = ? WHERE id = ?", credits, id); err != nil {
		return 0, fmt.Errorf("update credits: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit credits: %w", err)
	}
	return credits, nil
}

// IssuanceDebit performs the issuance critical section for one institution in
// a single transaction: gate on status, gate on remaining credits, then
// decrement credits by one, increment emissions by one, and rewrite the
// request's audit entry to success_issuance. No partial application is
// observable; either all three mutations commit or none do.
//
// Returns the remaining balance, or ErrNotFound / ErrInstitutionBlocked /
// ErrNoCredits when a gate denies the debit (with no mutation applied).
func (s *Store) IssuanceDebit(ctx context.Context, institutionID, auditID string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var row struct {
		Status  string `db:"status"`
		Credits int64  `db:"credits"`
	}
	if err := tx.GetContext(ctx, &row,
		"SELECT status, credits FROM institutions WHERE id = ?", institutionID); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get institution for debit: %w", err)
	}

	if row.Status == model.InstitutionBlocked || row.Status == model.InstitutionRevoked {
		return 0, ErrInstitutionBlocked
	}
	if row.Credits <= 0 {
		return 0, ErrNoCredits
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE institutions SET credits = credits - 1, emissions = emissions + 1 WHERE id = ?",
		institutionID); err != nil {
		return 0, fmt.Errorf("debit credits: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE audit_log SET status = ? WHERE id = ?",
		model.AuditSuccessIssuance, auditID); err != nil {
		return 0, fmt.Errorf("rewrite audit status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit debit: %w", err)
	}
	return row.Credits - 1, nil
}

// ActiveKeyCounts returns the number of active API keys per institution ID.
func (s *Store) ActiveKeyCounts(ctx context.Context) (map[string]int64, error) {
	rows := []struct {
		InstitutionID string `db:"institution_id"`
		Count         int64  `db:"count"`
	}{}
	const q = `SELECT institution_id, COUNT(*) AS count
		FROM api_keys WHERE is_active = 1 GROUP BY institution_id`
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("count active keys: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.InstitutionID] = r.Count
	}
	return counts, nil
}
