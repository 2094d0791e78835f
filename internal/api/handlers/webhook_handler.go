package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	enginesync "staysync/internal/engine/sync"
	"staysync/internal/pkg/errors"
	"staysync/internal/platform/config"
	"staysync/internal/platform/models"
	"staysync/internal/platform/repositories"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler receives inbound webhooks from the upstream provider.
// Pipeline: verify signature, durably record the event, reconcile, mark
// the outcome. Response codes are chosen for the sender's retry policy:
// 4xx means do not retry, 503 means the event was not durably received
// and should be redelivered.
type WebhookHandler struct {
	verifier   *enginesync.Verifier
	intake     *repositories.WebhookEventRepository
	reconciler *enginesync.Reconciler

	signatureHeader string
	eventHeader     string
}

func NewWebhookHandler(
	verifier *enginesync.Verifier,
	intake *repositories.WebhookEventRepository,
	reconciler *enginesync.Reconciler,
	cfg config.WebhooksConfig,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:        verifier,
		intake:          intake,
		reconciler:      reconciler,
		signatureHeader: cfg.SignatureHeader,
		eventHeader:     cfg.EventHeader,
	}
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Could not read request body", nil)
		return
	}

	signature := r.Header.Get(h.signatureHeader)
	if err := h.verifier.Verify(body, signature); err != nil {
		if err == enginesync.ErrSecretNotConfigured {
			log.Error().Msg("rejecting webhook: no shared secret configured")
		} else {
			log.Warn().Err(err).Str("source", r.RemoteAddr).Msg("rejecting webhook: signature verification failed")
		}
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeAuthenticationFailed, "Signature verification failed", nil)
		return
	}

	env := enginesync.ParseEnvelope(body, r.Header.Get(h.eventHeader))

	// Intake before processing. Even a payload that will fail validation
	// is recorded for forensics; only a failed write here is retryable.
	event := &models.WebhookEvent{
		EventType:  env.EventType,
		EntityType: env.EntityType,
		EntityID:   env.EntityID,
		Payload:    string(body),
		Signature:  signature,
		SourceAddr: r.RemoteAddr,
	}
	eventID, err := h.intake.Create(event)
	if err != nil {
		log.Error().Err(err).Msg("webhook intake write failed")
		errors.WriteError(w, http.StatusServiceUnavailable, errors.ErrCodeStorageUnavailable, "Event could not be recorded, please retry", nil)
		return
	}

	result, recErr := h.reconciler.Reconcile(r.Context(), env.EntityType, env.EventType, env.EntityID, env.Payload)
	if recErr != nil {
		// Storage failed mid-reconciliation. Leave the event unprocessed
		// so the worker (or a redelivery) picks it up.
		log.Error().Err(recErr).Str("event_id", eventID).Msg("reconciliation failed on storage")
		errors.WriteError(w, http.StatusServiceUnavailable, errors.ErrCodeStorageUnavailable, "Event recorded but not processed, please retry", map[string]string{"event_id": eventID})
		return
	}

	processingError := ""
	if !result.Success {
		processingError = result.Message
	}
	if err := h.intake.MarkProcessed(eventID, processingError); err != nil {
		// The reconciliation itself is done and idempotent; the pending
		// reprocessor will converge this event later.
		log.Warn().Err(err).Str("event_id", eventID).Msg("failed to mark webhook event processed")
	}

	// Validation failures are acknowledged; redelivering the same broken
	// payload would not help the sender.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(struct {
		EventID string `json:"event_id"`
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{
		EventID: eventID,
		Success: result.Success,
		Message: result.Message,
	})
}
