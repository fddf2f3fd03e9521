package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"care4kids/internal/models"
	"care4kids/internal/service"
)

// envelope is the uniform JSON response shape: success with data, or
// failure with errors.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Errors  any  `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// respondData writes a success envelope
func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// respondError maps a service error onto a status code and failure envelope
func respondError(w http.ResponseWriter, err error) {
	var ve models.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Errors:  map[string]string{ve.Field: ve.Message},
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		respondDetail(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, models.ErrNotFound):
		respondDetail(w, http.StatusNotFound, "no matching pending code")
	case errors.Is(err, models.ErrExpired):
		respondDetail(w, http.StatusGone, "this code has expired")
	case errors.Is(err, models.ErrConflict):
		respondDetail(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrStoreUnavailable), errors.Is(err, service.ErrAssistantDisabled):
		respondDetail(w, http.StatusServiceUnavailable, "service temporarily unavailable, please try again")
	default:
		log.Printf("Internal error: %v", err)
		respondDetail(w, http.StatusInternalServerError, "internal server error")
	}
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, envelope{
		Success: false,
		Errors:  map[string]string{"detail": detail},
	})
}

// decodeJSON reads a request body into dst, capping the body size
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.ValidationError{Field: "body", Message: "invalid JSON body"}
	}
	return nil
}
