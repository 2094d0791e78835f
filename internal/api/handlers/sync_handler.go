package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	enginesync "staysync/internal/engine/sync"
	"staysync/internal/pkg/errors"
	"staysync/internal/platform/models"
	"staysync/internal/platform/repositories"
)

// SyncHandler exposes the operational surfaces of the sync subsystem: the
// append-only sync log, the webhook intake log, and event replay.
type SyncHandler struct {
	logs       *repositories.SyncLogRepository
	events     *repositories.WebhookEventRepository
	reconciler *enginesync.Reconciler
}

func NewSyncHandler(
	logs *repositories.SyncLogRepository,
	events *repositories.WebhookEventRepository,
	reconciler *enginesync.Reconciler,
) *SyncHandler {
	return &SyncHandler{logs: logs, events: events, reconciler: reconciler}
}

func (h *SyncHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.logs.List(limitFrom(r, 50))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
		return
	}
	if entries == nil {
		entries = []*models.SyncLog{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (h *SyncHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := limitFrom(r, 50)

	var events []*models.WebhookEvent
	var err error
	if r.URL.Query().Get("pending") == "1" {
		events, err = h.events.ListPending(limit)
	} else {
		events, err = h.events.List(limit)
	}
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
		return
	}
	if events == nil {
		events = []*models.WebhookEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// ReplayEvent re-runs reconciliation for a recorded webhook event.
// Reconciliation is idempotent, so replaying a processed event is safe.
func (h *SyncHandler) ReplayEvent(w http.ResponseWriter, r *http.Request) {
	eventID := paramFrom(r, "event_id")

	event, err := h.events.GetByID(eventID)
	if err != nil {
		if err == sql.ErrNoRows {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook event not found", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
		return
	}

	env := enginesync.ParseEnvelope([]byte(event.Payload), event.EntityType+"."+event.EventType)
	result, recErr := h.reconciler.Reconcile(r.Context(), event.EntityType, event.EventType, event.EntityID, env.Payload)
	if recErr != nil {
		errors.WriteError(w, http.StatusServiceUnavailable, errors.ErrCodeStorageUnavailable, "Replay failed on storage, please retry", nil)
		return
	}

	processingError := ""
	if !result.Success {
		processingError = result.Message
	}
	h.events.MarkProcessed(event.ID, processingError)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		EventID string `json:"event_id"`
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{
		EventID: event.ID,
		Success: result.Success,
		Message: result.Message,
	})
}

func limitFrom(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > 200 {
		return 200
	}
	return limit
}
