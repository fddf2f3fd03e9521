package handlers

import (
	"net/http"
	"time"

	"care4kids/internal/models"
	"care4kids/internal/service"
)

// InvitationHandler handles co-parent invitation requests
type InvitationHandler struct {
	invitationService *service.InvitationService
}

// NewInvitationHandler creates a new invitation handler
func NewInvitationHandler(invitationService *service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService}
}

type sendInvitationRequest struct {
	Email string `json:"email"`
}

type checkCodeRequest struct {
	Code string `json:"code"`
}

type acceptInvitationRequest struct {
	Code            string `json:"code"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type invitationView struct {
	ID            int64  `json:"id"`
	Code          string `json:"code,omitempty"`
	InvitedEmail  string `json:"invited_email"`
	InviterName   string `json:"inviter_name,omitempty"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	ExpiresAt     string `json:"expires_at"`
	DaysRemaining int    `json:"days_remaining"`
}

func invitationViewOf(inv *models.Invitation, includeCode bool) invitationView {
	v := invitationView{
		ID:            inv.ID,
		InvitedEmail:  inv.InvitedEmail,
		InviterName:   inv.InviterName,
		Status:        inv.Status,
		CreatedAt:     inv.CreatedAt.Format(time.RFC3339),
		ExpiresAt:     inv.ExpiresAt.Format(time.RFC3339),
		DaysRemaining: inv.DaysRemaining(),
	}
	if includeCode {
		v.Code = inv.Code
	}
	return v
}

// Send handles POST /api/invitations/send
func (h *InvitationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendInvitationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	inv, err := h.invitationService.Issue(r.Context(), AccountFrom(r), req.Email)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusCreated, invitationViewOf(inv, true))
}

// Check handles POST /api/invitations/check. It is unauthenticated: the
// invited person has no account yet.
func (h *InvitationHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	inv, err := h.invitationService.Check(req.Code)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{
		"invited_email":  inv.InvitedEmail,
		"inviter_name":   inv.InviterName,
		"family_id":      inv.FamilyID,
		"status":         inv.Status,
		"expires_at":     inv.ExpiresAt.Format(time.RFC3339),
		"days_remaining": inv.DaysRemaining(),
	})
}

// Accept handles POST /api/invitations/accept. Unauthenticated; creates the
// secondary parent account from the code.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req acceptInvitationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	account, err := h.invitationService.Accept(r.Context(), req.Code, req.FullName, req.Password, req.PasswordConfirm)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusCreated, viewOf(account))
}

// Mine handles GET /api/invitations/my
func (h *InvitationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.invitationService.ListByInviter(AccountFrom(r).ID)
	if err != nil {
		respondError(w, err)
		return
	}

	views := make([]invitationView, 0, len(invitations))
	for i := range invitations {
		views = append(views, invitationViewOf(&invitations[i], true))
	}
	respondData(w, http.StatusOK, map[string]any{"invitations": views})
}
