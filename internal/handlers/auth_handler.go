package handlers

import (
	"net/http"
	"time"

	"care4kids/internal/models"
	"care4kids/internal/service"
)

// AuthHandler handles parent registration, login and profile requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registerRequest struct {
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// accountView is the JSON shape of an account; the password hash never leaves
type accountView struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	FamilyID   string `json:"family_id,omitempty"`
	Role       string `json:"role"`
	IsVerified bool   `json:"is_verified"`
}

func viewOf(account *models.Account) accountView {
	return accountView{
		ID:         account.ID,
		Username:   account.Username,
		Email:      account.Email,
		FullName:   account.FullName,
		FamilyID:   account.FamilyID,
		Role:       account.Role,
		IsVerified: account.IsVerified,
	}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	account, token, err := h.authService.Register(r.Context(), req.Email, req.FullName, req.Password, req.PasswordConfirm)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusCreated, map[string]any{
		"account": viewOf(account),
		"token":   token.Token,
		"expires": token.ExpiresAt.Format(time.RFC3339),
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	account, token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{
		"account": viewOf(account),
		"token":   token.Token,
		"expires": token.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(tokenFromRequest(r)); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Profile handles GET /api/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	account := AccountFrom(r)
	respondData(w, http.StatusOK, viewOf(account))
}
