package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"staysync/internal/engine/calendar"
	enginesync "staysync/internal/engine/sync"
	"staysync/internal/platform/repositories"
)

// graceWindow keeps the reprocessor away from events a live request is
// still handling.
const graceWindow = time.Minute

type Workers struct {
	events     *repositories.WebhookEventRepository
	properties *repositories.PropertyRepository
	reconciler *enginesync.Reconciler
	calendars  *calendar.Cache
}

func New(
	events *repositories.WebhookEventRepository,
	properties *repositories.PropertyRepository,
	reconciler *enginesync.Reconciler,
	calendars *calendar.Cache,
) *Workers {
	return &Workers{
		events:     events,
		properties: properties,
		reconciler: reconciler,
		calendars:  calendars,
	}
}

// ReprocessPendingEvents picks up webhook events that were durably
// recorded but never marked processed, typically after a crash between
// intake and reconciliation. Reconciliation is idempotent, so reprocessing
// an event that actually did complete is harmless.
func (w *Workers) ReprocessPendingEvents(ctx context.Context) error {
	pending, err := w.events.ListPending(100)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-graceWindow).Unix()
	for _, event := range pending {
		if event.ReceivedAt > cutoff {
			continue
		}

		env := enginesync.ParseEnvelope([]byte(event.Payload), event.EntityType+"."+event.EventType)
		result, recErr := w.reconciler.Reconcile(ctx, event.EntityType, event.EventType, event.EntityID, env.Payload)
		if recErr != nil {
			// Storage is down; leave the rest pending for the next tick.
			log.Error().Err(recErr).Str("event_id", event.ID).Msg("reprocessing stopped on storage error")
			return recErr
		}

		processingError := ""
		if !result.Success {
			processingError = result.Message
		}
		if err := w.events.MarkProcessed(event.ID, processingError); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("failed to mark reprocessed event")
		}

		log.Info().Str("event_id", event.ID).Bool("success", result.Success).Msg("reprocessed pending webhook event")
	}

	return nil
}

// RefreshCalendars reads every configured feed through the cache, warming
// entries before the UI asks for them. Fetch failures are recorded by the
// cache itself; nothing to do here but log.
func (w *Workers) RefreshCalendars(ctx context.Context) error {
	props, err := w.properties.ListWithFeeds()
	if err != nil {
		return err
	}

	for _, prop := range props {
		if _, err := w.calendars.GetEvents(ctx, prop.ICalURL); err != nil {
			log.Warn().Err(err).Str("property_id", prop.ID).Msg("calendar refresh failed")
		}
	}

	log.Debug().Int("properties", len(props)).Msg("calendar refresh pass complete")
	return nil
}
