package handler

import (
	"net/http"
	"time"
)

// logEntry is one audit entry as serialized for the dashboard, with the
// institution name joined in. InstitutionID and InstitutionName are null for
// failed attempts that matched no key.
type logEntry struct {
	ID              string    `json:"id"`
	InstitutionID   *string   `json:"institutionId"`
	InstitutionName *string   `json:"institutionName"`
	Endpoint        string    `json:"endpoint"`
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
}

// ListLogs returns the audit log, newest first.
// GET /api/v1/logs
func (h *PartnerHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListAuditEntries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list logs")
		return
	}
	insts, err := h.store.ListInstitutions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list institutions")
		return
	}
	names := make(map[string]string, len(insts))
	for _, inst := range insts {
		names[inst.ID] = inst.Name
	}

	out := make([]logEntry, len(entries))
	for i, e := range entries {
		le := logEntry{
			ID:        e.ID,
			Endpoint:  e.Endpoint,
			Status:    e.Status,
			Timestamp: e.Timestamp,
		}
		if e.InstitutionID.Valid {
			instID := e.InstitutionID.String
			le.InstitutionID = &instID
			if name, ok := names[instID]; ok {
				le.InstitutionName = &name
			}
		}
		out[i] = le
	}
	writeJSON(w, http.StatusOK, out)
}
