package main

import (
	"context"
	"log"
	"time"

	"staysync/internal/engine/calendar"
	enginesync "staysync/internal/engine/sync"
	"staysync/internal/platform/audit"
	"staysync/internal/platform/config"
	"staysync/internal/platform/database"
	"staysync/internal/platform/repositories"
	"staysync/internal/pkg/logger"
	"staysync/internal/workers"
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

	eventRepo := repositories.NewWebhookEventRepository(db)
	propertyRepo := repositories.NewPropertyRepository(db)
	externalPropertyRepo := repositories.NewExternalPropertyRepository(db)
	externalReservationRepo := repositories.NewExternalReservationRepository(db)
	syncLogRepo := repositories.NewSyncLogRepository(db)

	recorder := audit.NewRecorder(syncLogRepo)
	reconciler := enginesync.NewReconciler(externalPropertyRepo, externalReservationRepo, recorder)

	fetcher := calendar.NewFetcher(cfg.Calendar.FetchTimeout)
	cache := calendar.NewCache(fetcher.Fetch, cfg.Calendar.TTL, cfg.Calendar.ErrorTTL, recorder)

	w := workers.New(eventRepo, propertyRepo, reconciler, cache)

	log.Println("Starting StaySync background workers...")

	go runPendingEventWorker(w)
	go runCalendarRefreshWorker(w, cfg.Calendar.RefreshInterval)

	// Keep process alive
	select {}
}

func runPendingEventWorker(w *workers.Workers) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		if err := w.ReprocessPendingEvents(context.Background()); err != nil {
			log.Printf("Pending event reprocessing error: %v", err)
		}
	}
}

func runCalendarRefreshWorker(w *workers.Workers, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := w.RefreshCalendars(context.Background()); err != nil {
			log.Printf("Calendar refresh error: %v", err)
		}
	}
}
