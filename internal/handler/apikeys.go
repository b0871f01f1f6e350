package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/academicchain/platform/internal/store"
)

// ListAPIKeys returns all keys with digests withheld and institution names
// joined in.
// GET /api/v1/api-keys
func (h *PartnerHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keySvc.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list API keys")
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// RevokeAPIKey deletes a key record. The key stops validating on the very
// next call; there is nothing to cache-expire.
// DELETE /api/v1/api-keys/{id}
func (h *PartnerHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.keySvc.Revoke(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke API key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key revoked",
	})
}
