package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"club-ratings/config"
	"club-ratings/db"
	"club-ratings/handlers"
	"club-ratings/live"
	"club-ratings/repositories"
	"club-ratings/routes"
	"club-ratings/services"
	"club-ratings/storage"
)

// How often crashed recalculation locks are swept.
const lockSweepInterval = time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// The archive store keeps a copy of deleted sessions. Running without
	// one is allowed; deletion then skips the archive step.
	var archiveStore storage.ArchiveStore
	if cfg.ArchiveEnabled() {
		archiveStore, err = storage.NewR2ArchiveStore(storage.R2ArchiveConfig{
			AccountID:       cfg.ArchiveAccountID,
			AccessKeyID:     cfg.ArchiveAccessKeyID,
			SecretAccessKey: cfg.ArchiveSecretAccessKey,
			BucketName:      cfg.ArchiveBucket,
			PublicBaseURL:   cfg.ArchivePublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize archive store", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("session archive store initialized", slog.String("bucket", cfg.ArchiveBucket))
	} else {
		logger.Info("session archiving disabled: no archive store configured")
	}

	wsHub := live.NewHub(logger)
	go wsHub.Run()
	logger.Info("websocket hub started")

	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	sessionRepo := repositories.NewPostgresSessionRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	teamRepo := repositories.NewPostgresDoubleTeamRepository(dbConn)
	ratingRepo := repositories.NewPostgresRatingRepository(dbConn)
	snapshotRepo := repositories.NewPostgresSnapshotRepository(dbConn)
	historyRepo := repositories.NewPostgresHistoryRepository(dbConn)
	lockRepo := repositories.NewPostgresRecalculationLockRepository(dbConn)
	logger.Info("repositories initialized")

	teamService := services.NewDoubleTeamService(teamRepo)
	baselineService := services.NewBaselineService(sessionRepo, matchRepo, teamService)
	playerService := services.NewPlayerService(playerRepo)

	matchService := services.NewMatchService(
		playerRepo,
		sessionRepo,
		matchRepo,
		ratingRepo,
		snapshotRepo,
		historyRepo,
		teamService,
		wsHub,
	)

	sessionService := services.NewSessionService(
		dbConn, // for the multi-table delete transaction
		sessionRepo,
		matchRepo,
		ratingRepo,
		snapshotRepo,
		historyRepo,
		baselineService,
		archiveStore,
		wsHub,
		logger,
	)

	recalcService := services.NewRecalculationService(
		matchRepo,
		sessionRepo,
		ratingRepo,
		snapshotRepo,
		historyRepo,
		lockRepo,
		baselineService,
		wsHub,
		logger,
		cfg.RecalcLockTTL,
	)

	summaryService := services.NewSummaryService(sessionRepo, playerRepo, teamRepo, baselineService)
	ratingService := services.NewRatingService(ratingRepo, playerRepo, teamRepo)
	logger.Info("services initialized")

	// Sweep locks left running by a crashed recalculation, so an edit that
	// died mid-flight cannot block its session forever.
	go func() {
		ticker := time.NewTicker(lockSweepInterval)
		defer ticker.Stop()
		logger.Info("stale lock sweeper started",
			slog.Duration("interval", lockSweepInterval),
			slog.Duration("ttl", cfg.RecalcLockTTL))

		if err := recalcService.FailStaleLocks(context.Background()); err != nil {
			logger.Error("stale lock sweep failed", slog.Any("error", err))
		}
		for range ticker.C {
			if err := recalcService.FailStaleLocks(context.Background()); err != nil {
				logger.Error("stale lock sweep failed", slog.Any("error", err))
			}
		}
	}()

	playerHandler := handlers.NewPlayerHandler(playerService)
	sessionHandler := handlers.NewSessionHandler(sessionService, summaryService)
	matchHandler := handlers.NewMatchHandler(matchService, recalcService)
	ratingHandler := handlers.NewRatingHandler(ratingService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, sessionService)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	routes.SetupRoutes(
		router,
		playerHandler,
		sessionHandler,
		matchHandler,
		ratingHandler,
		webSocketHandler,
		cfg.JWTSecretKey,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
