package handlers

import (
	"net/http"

	"care4kids/internal/models"
	"care4kids/internal/service"
)

// FamilyHandler serves the rendered family document
type FamilyHandler struct {
	coordinator *service.Coordinator
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(coordinator *service.Coordinator) *FamilyHandler {
	return &FamilyHandler{coordinator: coordinator}
}

// Get handles GET /api/family, returning the caller's family document
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	account := AccountFrom(r)
	if account.FamilyID == "" {
		respondError(w, models.ErrNotFound)
		return
	}

	doc, err := h.coordinator.GetFamily(r.Context(), account.FamilyID)
	if err != nil {
		respondError(w, err)
		return
	}
	if doc == nil {
		respondError(w, models.ErrNotFound)
		return
	}

	respondData(w, http.StatusOK, doc)
}
