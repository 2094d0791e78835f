package main

import (
	"fmt"
	"log"
	"net/http"

	"staysync/internal/api"
	"staysync/internal/api/handlers"
	"staysync/internal/api/middleware"
	"staysync/internal/engine/calendar"
	enginesync "staysync/internal/engine/sync"
	"staysync/internal/platform/audit"
	"staysync/internal/platform/config"
	"staysync/internal/platform/database"
	"staysync/internal/platform/repositories"
	"staysync/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Repositories
	eventRepo := repositories.NewWebhookEventRepository(db)
	propertyRepo := repositories.NewPropertyRepository(db)
	externalPropertyRepo := repositories.NewExternalPropertyRepository(db)
	externalReservationRepo := repositories.NewExternalReservationRepository(db)
	syncLogRepo := repositories.NewSyncLogRepository(db)

	// Engine
	recorder := audit.NewRecorder(syncLogRepo)
	verifier := enginesync.NewVerifier(cfg.Webhooks)
	reconciler := enginesync.NewReconciler(externalPropertyRepo, externalReservationRepo, recorder)

	fetcher := calendar.NewFetcher(cfg.Calendar.FetchTimeout)
	cache := calendar.NewCache(fetcher.Fetch, cfg.Calendar.TTL, cfg.Calendar.ErrorTTL, recorder)
	calendarService := calendar.NewService(propertyRepo, cache, fetcher)

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(verifier, eventRepo, reconciler, cfg.Webhooks)
	calendarHandler := handlers.NewCalendarHandler(calendarService)
	syncHandler := handlers.NewSyncHandler(syncLogRepo, eventRepo, reconciler)
	healthHandler := handlers.NewHealthHandler(db)

	// Router
	deps := &api.Dependencies{
		WebhookHandler:  webhookHandler,
		CalendarHandler: calendarHandler,
		SyncHandler:     syncHandler,
		HealthHandler:   healthHandler,
		RateLimiter:     middleware.NewRateLimiter(cfg.RateLimit),
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
