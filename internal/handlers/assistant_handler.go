package handlers

import (
	"net/http"
	"strings"

	"care4kids/internal/models"
	"care4kids/internal/service"
)

// AssistantHandler proxies parent questions to the assistant API
type AssistantHandler struct {
	assistantService *service.AssistantService
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(assistantService *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistantService: assistantService}
}

type assistantRequest struct {
	Question string `json:"question"`
}

// Ask handles POST /api/assistant
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		respondError(w, models.ValidationError{Field: "question", Message: "question is required"})
		return
	}

	answer, err := h.assistantService.Ask(r.Context(), question)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"answer": answer})
}
