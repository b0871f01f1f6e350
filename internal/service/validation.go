package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/academicchain/platform/internal/model"
	"github.com/academicchain/platform/internal/store"
)

// OperationIssuance is the explicit request flag that marks a validation call
// as credit-consuming regardless of its endpoint string.
const OperationIssuance = "blockchain_issuance"

// DenyReason enumerates every way a validation request can be refused.
// Callers branch on the reason rather than parsing messages.
type DenyReason string

const (
	DenyUnknownKey         DenyReason = "unknown_key"
	DenyExpired            DenyReason = "expired"
	DenyInstitutionBlocked DenyReason = "institution_blocked"
	DenyNoCredits          DenyReason = "no_credits"
)

// Decision is the admission result of one validation request. When Admitted
// is false, Reason says why; when true, Institution carries the owning
// institution's display name (empty for platform-level keys) and
// RemainingCredits the balance after any debit.
type Decision struct {
	Admitted         bool
	Reason           DenyReason
	Institution      string
	RemainingCredits int64
}

// ValidationRequest is the input to the validation pipeline. Digest is the
// hex SHA-256 of the full raw key, computed caller-side; the raw key never
// crosses the wire.
type ValidationRequest struct {
	Digest    string
	Endpoint  string
	Operation string
}

// ValidationService decides admission for hashed-key requests and performs
// the metering side effects: last-used touch, audit entries, and the
// per-institution credit debit.
type ValidationService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewValidationService creates a ValidationService.
func NewValidationService(st *store.Store, logger *slog.Logger) *ValidationService {
	return &ValidationService{store: st, logger: logger}
}

// Validate runs the admission pipeline. Denials are expressed through the
// Decision; the error return is reserved for internal store faults.
//
// Pipeline order is load-bearing: lookup, expiry, last-used touch, base audit
// entry, then (for issuance requests only) the status and credit gates and
// the atomic debit. An issuance denial after the base entry leaves that entry
// in place; only a full debit rewrites it to success_issuance.
func (s *ValidationService) Validate(ctx context.Context, req ValidationRequest) (*Decision, error) {
	key, err := s.store.GetActiveAPIKeyByHash(ctx, req.Digest)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Unknown digest and revoked key are indistinguishable here,
			// which keeps the endpoint useless for key enumeration.
			entry := &model.AuditEntry{
				Endpoint: req.Endpoint,
				Status:   model.AuditFailed,
			}
			if err := s.store.AppendAuditEntry(ctx, entry); err != nil {
				return nil, fmt.Errorf("audit failed attempt: %w", err)
			}
			return &Decision{Admitted: false, Reason: DenyUnknownKey}, nil
		}
		return nil, fmt.Errorf("key lookup: %w", err)
	}

	now := time.Now().UTC()
	if key.ExpiresAt != nil && key.ExpiresAt.Before(now) {
		// Expired keys leave no trace: no audit entry, no last-used touch.
		return &Decision{Admitted: false, Reason: DenyExpired}, nil
	}

	if err := s.store.TouchAPIKeyLastUsed(ctx, key.ID, now); err != nil {
		s.logger.Warn("touch last used failed", "key_id", key.ID, "error", err)
	}

	entry := &model.AuditEntry{
		InstitutionID: nullString(key.InstitutionID),
		Endpoint:      req.Endpoint,
		Status:        model.AuditSuccess,
		Timestamp:     now,
	}
	if err := s.store.AppendAuditEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("audit success attempt: %w", err)
	}

	inst, err := s.store.GetInstitution(ctx, key.InstitutionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("institution lookup: %w", err)
	}
	// inst is nil for platform-level keys owned by the "admin" sentinel.

	if !IsIssuance(req.Endpoint, req.Operation) || inst == nil {
		d := &Decision{Admitted: true}
		if inst != nil {
			d.Institution = inst.Name
			d.RemainingCredits = inst.Credits
		}
		return d, nil
	}

	remaining, err := s.store.IssuanceDebit(ctx, inst.ID, entry.ID)
	switch {
	case errors.Is(err, store.ErrInstitutionBlocked):
		return &Decision{Admitted: false, Reason: DenyInstitutionBlocked, Institution: inst.Name}, nil
	case errors.Is(err, store.ErrNoCredits):
		failed := &model.AuditEntry{
			InstitutionID: nullString(key.InstitutionID),
			Endpoint:      req.Endpoint,
			Status:        model.AuditFailedNoCredits,
			Timestamp:     now,
		}
		if err := s.store.AppendAuditEntry(ctx, failed); err != nil {
			return nil, fmt.Errorf("audit no-credits attempt: %w", err)
		}
		return &Decision{Admitted: false, Reason: DenyNoCredits, Institution: inst.Name}, nil
	case err != nil:
		return nil, fmt.Errorf("issuance debit: %w", err)
	}

	return &Decision{
		Admitted:         true,
		Institution:      inst.Name,
		RemainingCredits: remaining,
	}, nil
}

// IsIssuance reports whether a request consumes a credit: either the endpoint
// contains an issuance marker or the caller flagged the operation explicitly.
func IsIssuance(endpoint, operation string) bool {
	if operation == OperationIssuance {
		return true
	}
	return strings.Contains(endpoint, "emissions") || strings.Contains(endpoint, "mint")
}
