package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"care4kids/internal/models"
	"care4kids/internal/security"
	"care4kids/internal/service"
)

type contextKey string

const accountContextKey contextKey = "account"

// RequireAuth wraps a handler with opaque-token authentication. Tokens are
// presented as "Authorization: Token <value>" (Bearer is accepted too).
func RequireAuth(auth *service.AuthService, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := auth.Authenticate(tokenFromRequest(r))
		if err != nil {
			respondError(w, service.ErrInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), accountContextKey, account)
		next(w, r.WithContext(ctx))
	}
}

// AccountFrom returns the authenticated account stored by RequireAuth
func AccountFrom(r *http.Request) *models.Account {
	account, _ := r.Context().Value(accountContextKey).(*models.Account)
	return account
}

func tokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	for _, scheme := range []string{"Token ", "Bearer "} {
		if strings.HasPrefix(header, scheme) {
			return strings.TrimSpace(header[len(scheme):])
		}
	}
	return ""
}

// RateLimit rejects requests once the per-IP budget is spent
func RateLimit(limiter *security.RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := security.GetClientIP(r)
		if !limiter.Allow(ip) {
			log.Printf("Rate limit exceeded for %s on %s", ip, r.URL.Path)
			respondDetail(w, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}
		next(w, r)
	}
}

// LogRequests logs each request with method and path
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s from %s", r.Method, r.URL.Path, security.GetClientIP(r))
		next.ServeHTTP(w, r)
	})
}
