package handler

import (
	"net/http"

	"github.com/academicchain/platform/internal/store"
)

// hbarBalanceStub stands in for the ledger account balance until real
// ledger integration lands.
const hbarBalanceStub = 12500

// institutionUsage is one row of the overview's per-institution breakdown.
type institutionUsage struct {
	Name      string `json:"name"`
	Emissions int64  `json:"emissions"`
	Plan      string `json:"plan"`
	Requests  int64  `json:"requests"`
}

type overviewResponse struct {
	TotalEmissions     int64              `json:"totalEmissions"`
	TotalVerifications int64              `json:"totalVerifications"`
	RevokedCount       int64              `json:"revokedCount"`
	ActiveInstitutions int64              `json:"activeInstitutions"`
	HbarBalance        int64              `json:"hbarBalance"`
	UsageSeries        []store.DayCount   `json:"usageSeries"`
	ByInstitution      []institutionUsage `json:"byInstitution"`
}

// Overview returns the dashboard's aggregate counters: platform totals,
// revoked key count, per-day request series, and per-institution usage.
// GET /api/v1/overview
func (h *PartnerHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totals, err := h.store.Totals(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to aggregate usage")
		return
	}
	revoked, err := h.store.RevokedKeyCount(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count revoked keys")
		return
	}
	series, err := h.store.UsageByDay(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build usage series")
		return
	}
	requests, err := h.store.RequestCountsByInstitution(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count requests")
		return
	}
	insts, err := h.store.ListInstitutions(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list institutions")
		return
	}

	byInstitution := make([]institutionUsage, len(insts))
	for i, inst := range insts {
		byInstitution[i] = institutionUsage{
			Name:      inst.Name,
			Emissions: inst.Emissions,
			Plan:      inst.Plan,
			Requests:  requests[inst.ID],
		}
	}
	if series == nil {
		series = []store.DayCount{}
	}

	writeJSON(w, http.StatusOK, overviewResponse{
		TotalEmissions:     totals.TotalEmissions,
		TotalVerifications: totals.TotalVerifications,
		RevokedCount:       revoked,
		ActiveInstitutions: totals.ActiveInstitutions,
		HbarBalance:        hbarBalanceStub,
		UsageSeries:        series,
		ByInstitution:      byInstitution,
	})
}
