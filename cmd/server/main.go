package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"care4kids/internal/codes"
	"care4kids/internal/config"
	"care4kids/internal/database"
	"care4kids/internal/docstore"
	"care4kids/internal/handlers"
	"care4kids/internal/repository"
	"care4kids/internal/security"
	"care4kids/internal/service"
)

func main() {
	cfg := config.Load()

	// Identity store (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations completed successfully")

	// Document store
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	mongoClient, err := docstore.Connect(ctx, cfg.MongoURI)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to document store: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Printf("Error disconnecting from document store: %v", err)
		}
	}()

	familyStore := docstore.NewFamilyStore(mongoClient, cfg.MongoDatabase)
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	err = familyStore.EnsureIndexes(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to ensure document store indexes: %v", err)
	}

	log.Println("Document store connection established")

	// Repositories
	accountRepo := repository.NewAccountRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	codeIndex := repository.NewCodeIndex(invitationRepo, registrationRepo)

	// Services
	codegen := codes.NewGenerator(codeIndex)
	coordinator := service.NewCoordinator(familyStore, cfg.DocStoreRetries, cfg.DocStoreBackoff)
	authService := service.NewAuthService(accountRepo, tokenRepo, coordinator, cfg.TokenDuration)

	emailService, err := service.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}
	var sender service.InvitationSender
	if emailService.IsEnabled() {
		sender = emailService
	}

	invitationService := service.NewInvitationService(invitationRepo, accountRepo, codegen, coordinator, sender)
	registrationService := service.NewRegistrationService(registrationRepo, codegen, coordinator)
	assistantService := service.NewAssistantService(cfg.AssistantAPIURL, cfg.AssistantAPIKey, cfg.AssistantModel)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	invitationHandler := handlers.NewInvitationHandler(invitationService)
	childHandler := handlers.NewChildHandler(registrationService)
	familyHandler := handlers.NewFamilyHandler(coordinator)
	assistantHandler := handlers.NewAssistantHandler(assistantService)

	// The unauthenticated code endpoints are brute-forceable, so they share
	// a tight per-IP budget; login and register get a looser one.
	codeLimiter := security.NewRateLimiter(10, time.Minute)
	authLimiter := security.NewRateLimiter(20, time.Minute)

	mux := http.NewServeMux()

	// Auth routes
	mux.HandleFunc("POST /api/auth/register", handlers.RateLimit(authLimiter, authHandler.Register))
	mux.HandleFunc("POST /api/auth/login", handlers.RateLimit(authLimiter, authHandler.Login))
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/profile", handlers.RequireAuth(authService, authHandler.Profile))

	// Invitation routes; check and accept are public, the invited person has
	// no account yet
	mux.HandleFunc("POST /api/invitations/send", handlers.RequireAuth(authService, invitationHandler.Send))
	mux.HandleFunc("POST /api/invitations/check", handlers.RateLimit(codeLimiter, invitationHandler.Check))
	mux.HandleFunc("POST /api/invitations/accept", handlers.RateLimit(codeLimiter, invitationHandler.Accept))
	mux.HandleFunc("GET /api/invitations/my", handlers.RequireAuth(authService, invitationHandler.Mine))

	// Child registration routes; accept-code is called from the child device
	mux.HandleFunc("POST /api/children/generate-code", handlers.RequireAuth(authService, childHandler.GenerateCode))
	mux.HandleFunc("POST /api/children/accept-code", handlers.RateLimit(codeLimiter, childHandler.AcceptCode))
	mux.HandleFunc("GET /api/children/my-codes", handlers.RequireAuth(authService, childHandler.MyCodes))

	// Family document
	mux.HandleFunc("GET /api/family", handlers.RequireAuth(authService, familyHandler.Get))

	// Assistant proxy
	mux.HandleFunc("POST /api/assistant", handlers.RequireAuth(authService, assistantHandler.Ask))

	handler := handlers.LogRequests(mux)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background sweep of overdue codes and expired tokens
	stopSweeper := make(chan struct{})
	go sweepExpired(invitationService, registrationService, authService, stopSweeper)

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	close(stopSweeper)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

// sweepExpired periodically transitions overdue pending codes to expired and
// deletes expired tokens. Lazy expiry on read already keeps answers correct;
// the sweep just keeps listings tidy without waiting for a read.
func sweepExpired(invitations *service.InvitationService, registrations *service.RegistrationService, auth *service.AuthService, stop <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if n, err := invitations.ExpireOverdue(); err != nil {
			log.Printf("Error expiring overdue invitations: %v", err)
		} else if n > 0 {
			log.Printf("Expired %d overdue invitation(s)", n)
		}

		if n, err := registrations.ExpireOverdue(); err != nil {
			log.Printf("Error expiring overdue registrations: %v", err)
		} else if n > 0 {
			log.Printf("Expired %d overdue registration(s)", n)
		}

		if err := auth.CleanupExpiredTokens(); err != nil {
			log.Printf("Error cleaning up expired tokens: %v", err)
		}
	}
}
