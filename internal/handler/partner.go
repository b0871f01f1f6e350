package handler

import (
	"github.com/academicchain/platform/internal/service"
	"github.com/academicchain/platform/internal/store"
)

// PartnerHandler serves the operator-facing API: institutions, API keys, the
// audit log, and the overview. Every route it handles sits behind the
// session-cookie middleware.
type PartnerHandler struct {
	store  *store.Store
	keySvc *service.KeyService
}

// NewPartnerHandler creates a PartnerHandler.
func NewPartnerHandler(st *store.Store, keySvc *service.KeyService) *PartnerHandler {
	return &PartnerHandler{store: st, keySvc: keySvc}
}
