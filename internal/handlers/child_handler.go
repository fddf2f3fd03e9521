package handlers

import (
	"net/http"
	"time"

	"care4kids/internal/models"
	"care4kids/internal/service"
)

// ChildHandler handles child registration codes and device linking
type ChildHandler struct {
	registrationService *service.RegistrationService
}

// NewChildHandler creates a new child handler
func NewChildHandler(registrationService *service.RegistrationService) *ChildHandler {
	return &ChildHandler{registrationService: registrationService}
}

type generateCodeRequest struct {
	ChildName   string `json:"child_name"`
	DeviceType  string `json:"device_type"`
	DeviceModel string `json:"device_model"`
	Notes       string `json:"notes"`
}

type acceptChildCodeRequest struct {
	Code       string `json:"code"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	OS         string `json:"os"`
	Model      string `json:"model"`
	AppVersion string `json:"app_version"`
}

type registrationView struct {
	ID         int64          `json:"id"`
	Code       string         `json:"code,omitempty"`
	ChildName  string         `json:"child_name"`
	Status     string         `json:"status"`
	CreatedAt  string         `json:"created_at"`
	ExpiresAt  string         `json:"expires_at"`
	UsedAt     string         `json:"used_at,omitempty"`
	DeviceInfo map[string]any `json:"device_info,omitempty"`
}

func registrationViewOf(reg *models.ChildRegistration, includeCode bool) registrationView {
	v := registrationView{
		ID:         reg.ID,
		ChildName:  reg.ChildName,
		Status:     reg.Status,
		CreatedAt:  reg.CreatedAt.Format(time.RFC3339),
		ExpiresAt:  reg.ExpiresAt.Format(time.RFC3339),
		DeviceInfo: reg.DeviceInfo,
	}
	if reg.UsedAt != nil {
		v.UsedAt = reg.UsedAt.Format(time.RFC3339)
	}
	if includeCode {
		v.Code = reg.Code
	}
	return v
}

// GenerateCode handles POST /api/children/generate-code
func (h *ChildHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	var req generateCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	reg, err := h.registrationService.Issue(AccountFrom(r), req.ChildName, service.DeviceMetadata{
		DeviceType:  req.DeviceType,
		DeviceModel: req.DeviceModel,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusCreated, registrationViewOf(reg, true))
}

// AcceptCode handles POST /api/children/accept-code. It is unauthenticated:
// the call comes from the child's device during setup, before any credential
// exists on that device.
func (h *ChildHandler) AcceptCode(w http.ResponseWriter, r *http.Request) {
	var req acceptChildCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	reg, err := h.registrationService.Redeem(r.Context(), req.Code, models.Device{
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		OS:         req.OS,
		Model:      req.Model,
		AppVersion: req.AppVersion,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{
		"child_name": reg.ChildName,
		"family_id":  reg.FamilyID,
		"linked_at":  reg.UsedAt.Format(time.RFC3339),
		"monitoring": models.DefaultMonitoring(),
	})
}

// MyCodes handles GET /api/children/my-codes
func (h *ChildHandler) MyCodes(w http.ResponseWriter, r *http.Request) {
	registrations, err := h.registrationService.ListByCreator(AccountFrom(r).ID)
	if err != nil {
		respondError(w, err)
		return
	}

	views := make([]registrationView, 0, len(registrations))
	for i := range registrations {
		views = append(views, registrationViewOf(&registrations[i], true))
	}
	respondData(w, http.StatusOK, map[string]any{"registrations": views})
}
