package handler

import (
	"net/http"

	"github.com/academicchain/platform/internal/service"
)

// ValidateHandler serves the hashed-key admission endpoint called by issuing
// services. It is the only route on the API reachable without a session.
type ValidateHandler struct {
	validation *service.ValidationService
}

// NewValidateHandler creates a ValidateHandler.
func NewValidateHandler(validation *service.ValidationService) *ValidateHandler {
	return &ValidateHandler{validation: validation}
}

type validateRequest struct {
	Hash      string `json:"hash"`
	Endpoint  string `json:"endpoint"`
	Operation string `json:"operation"`
}

type validateResponse struct {
	Valid            bool   `json:"valid"`
	Institution      string `json:"institution,omitempty"`
	RemainingCredits *int64 `json:"remainingCredits,omitempty"`
	Message          string `json:"message,omitempty"`
}

// denyMessages are the fixed per-reason denial texts. Unknown keys get no
// message at all: the caller learns nothing beyond valid=false.
var denyMessages = map[service.DenyReason]string{
	service.DenyExpired:            "API key expired",
	service.DenyInstitutionBlocked: "Institution blocked for security reasons (access revoked)",
	service.DenyNoCredits:          "Credits exhausted. Contact support to top up.",
}

// Validate decides admission for one hashed-key request. Denials are 200
// responses with valid=false; only a missing hash is a 400 and only an
// internal store fault is a 500.
// POST /api/v1/validate
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, validateResponse{Valid: false, Message: "Invalid request body"})
		return
	}
	if req.Hash == "" {
		writeJSON(w, http.StatusBadRequest, validateResponse{Valid: false, Message: "Hash is required"})
		return
	}

	decision, err := h.validation.Validate(r.Context(), service.ValidationRequest{
		Digest:    req.Hash,
		Endpoint:  req.Endpoint,
		Operation: req.Operation,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Validation system error")
		return
	}

	if !decision.Admitted {
		writeJSON(w, http.StatusOK, validateResponse{
			Valid:   false,
			Message: denyMessages[decision.Reason],
		})
		return
	}

	remaining := decision.RemainingCredits
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:            true,
		Institution:      decision.Institution,
		RemainingCredits: &remaining,
	})
}
