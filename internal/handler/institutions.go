package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/academicchain/platform/internal/model"
	"github.com/academicchain/platform/internal/store"
)

type createInstitutionRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan string `json:"plan"`
}

// CreateInstitution registers a new partner institution with zero credits
// and counters, status active.
// POST /api/v1/institutions
func (h *PartnerHandler) CreateInstitution(w http.ResponseWriter, r *http.Request) {
	var req createInstitutionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Institution name is required")
		return
	}

	plan := req.Plan
	if plan == "" {
		plan = "Startup"
	}

	inst := &model.Institution{
		Name: req.Name,
		Slug: req.Slug,
		Plan: plan,
	}
	if err := h.store.CreateInstitution(r.Context(), inst); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create institution")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// institutionWithKeys annotates an institution with its active key count.
type institutionWithKeys struct {
	model.Institution
	ActiveKeys int64 `json:"activeKeys"`
}

// ListInstitutions returns all institutions, each with its active key count.
// GET /api/v1/institutions
func (h *PartnerHandler) ListInstitutions(w http.ResponseWriter, r *http.Request) {
	insts, err := h.store.ListInstitutions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list institutions")
		return
	}
	counts, err := h.store.ActiveKeyCounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count keys")
		return
	}

	out := make([]institutionWithKeys, len(insts))
	for i, inst := range insts {
		out[i] = institutionWithKeys{Institution: inst, ActiveKeys: counts[inst.ID]}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetInstitution returns one institution by ID.
// GET /api/v1/institutions/{id}
func (h *PartnerHandler) GetInstitution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inst, err := h.store.GetInstitution(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Institution not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get institution")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type adjustCreditsRequest struct {
	Amount json.RawMessage `json:"amount"`
	Action string          `json:"action"`
}

// AdjustCredits tops up or overwrites an institution's credit balance.
// Action "add" adds the signed amount; anything else sets the balance
// outright. Setting zero is the operator's panic button: the next issuance
// validation fails immediately with no_credits.
// POST /api/v1/institutions/{id}/credits
func (h *PartnerHandler) AdjustCredits(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req adjustCreditsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	mode := store.CreditSet
	if req.Action == "add" {
		mode = store.CreditAdd
	}

	credits, err := h.store.AdjustCredits(r.Context(), id, amount, mode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Institution not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to adjust credits")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"credits": credits,
	})
}

type generateKeyRequest struct {
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// generateKeyResponse embeds the stored record plus the one-time secret and
// the owning institution's name. This response is the only place the raw key
// ever appears.
type generateKeyResponse struct {
	model.APIKey
	RawKey          string `json:"apiKey"`
	InstitutionName string `json:"institutionName"`
}

// GenerateKey creates an API key for an institution and returns the raw
// secret exactly once.
// POST /api/v1/institutions/{id}/generate-key
func (h *PartnerHandler) GenerateKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inst, err := h.store.GetInstitution(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Institution not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get institution")
		return
	}

	var req generateKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	key, rawKey, err := h.keySvc.Generate(r.Context(), id, req.Name, req.Role, req.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate key")
		return
	}

	writeJSON(w, http.StatusOK, generateKeyResponse{
		APIKey:          *key,
		RawKey:          rawKey,
		InstitutionName: inst.Name,
	})
}
