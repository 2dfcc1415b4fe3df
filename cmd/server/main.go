package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classpulse-backend/internal/config"
	"classpulse-backend/internal/database"
	"classpulse-backend/internal/handlers"
	"classpulse-backend/internal/middleware"
	"classpulse-backend/internal/repository"
	"classpulse-backend/internal/router"
	"classpulse-backend/internal/services"
)

func main() {
	log.Println("🚀 Starting ClassPulse Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	sessionRepo := repository.NewSessionRepo(pool)
	rosterRepo := repository.NewRosterRepo(pool)

	// ──── Step 5: Initialize Conferencing Provider Client ────
	meetClient := services.NewMeetClient(
		cfg.MeetAPIBaseURL,
		cfg.MeetAPIKey,
		time.Duration(cfg.MeetTimeoutSeconds)*time.Second,
		cfg.MeetMaxRetries,
	)
	defer meetClient.Close()
	log.Println("✓ Conferencing provider client initialized")

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	locks := services.NewRedisSessionLocker(redisClient)
	tracker := services.NewPresenceTracker(sessionRepo, rosterRepo, locks, cfg.JoinGraceMinutes)
	syncService := services.NewSyncService(sessionRepo, rosterRepo, meetClient, locks, cfg.JoinGraceMinutes)

	// ──── Initialize Handlers ────
	sessionHandler := handlers.NewSessionHandler(sessionRepo, tracker, syncService)

	// ──── Step 6: Start Auto-Leave Sweeper ────
	sweeper := services.NewAutoLeaveSweeper(
		sessionRepo,
		tracker,
		time.Duration(cfg.HeartbeatStaleSeconds)*time.Second,
		time.Duration(cfg.AutoLeaveSweepSeconds)*time.Second,
	)
	sweeper.Start()

	// ──── Step 7: Start HTTP Server ────
	r := router.New(jwtAuth, sessionHandler, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		sweeper.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ ClassPulse Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
