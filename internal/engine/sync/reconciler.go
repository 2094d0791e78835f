package sync

import (
	"context"
	"fmt"
	stdsync "sync"

	"staysync/internal/platform/audit"
	"staysync/internal/platform/models"
	"staysync/internal/platform/repositories"
)

// Result describes the outcome of one reconciliation attempt. Success is
// false for both validation failures and storage failures; the
// accompanying error from Reconcile is non-nil only in the storage case,
// which is the retryable one.
type Result struct {
	Success bool   `json:"success"`
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

// Reconciler maps webhook payloads onto local mirror rows. Writes for the
// same entity are serialized by a per-key mutex, and the repositories use
// atomic upserts keyed on the unique upstream_id, so replaying an event
// any number of times converges to the same state.
type Reconciler struct {
	properties   *repositories.ExternalPropertyRepository
	reservations *repositories.ExternalReservationRepository
	audit        *audit.Recorder

	mu    stdsync.Mutex
	locks map[string]*stdsync.Mutex
}

func NewReconciler(
	properties *repositories.ExternalPropertyRepository,
	reservations *repositories.ExternalReservationRepository,
	recorder *audit.Recorder,
) *Reconciler {
	return &Reconciler{
		properties:   properties,
		reservations: reservations,
		audit:        recorder,
		locks:        make(map[string]*stdsync.Mutex),
	}
}

// Reconcile applies one webhook event to the local mirror. Every attempt,
// success or failure, appends exactly one sync log entry.
func (r *Reconciler) Reconcile(ctx context.Context, entityType, eventType, entityID string, payload []byte) (Result, error) {
	syncType := syncTypeFor(entityType)

	if err := ctx.Err(); err != nil {
		return Result{Success: false, Message: "canceled"}, err
	}

	if entityType != models.EntityProperty && entityType != models.EntityReservation {
		msg := fmt.Sprintf("unknown entity type %q", entityType)
		r.audit.Error(syncType, "", entityID, msg)
		return Result{Success: false, Message: msg}, nil
	}
	if eventType != models.EventCreated && eventType != models.EventUpdated && eventType != models.EventDeleted {
		msg := fmt.Sprintf("unknown event type %q", eventType)
		r.audit.Error(syncType, "", entityID, msg)
		return Result{Success: false, Message: msg}, nil
	}
	if entityID == "" {
		msg := "payload missing entity identifier"
		r.audit.Error(syncType, "", "", msg)
		return Result{Success: false, Message: msg}, nil
	}

	unlock := r.lock(entityType + ":" + entityID)
	defer unlock()

	if eventType == models.EventDeleted {
		return r.reconcileDelete(syncType, entityType, entityID)
	}
	return r.reconcileUpsert(syncType, entityType, entityID, payload)
}

func (r *Reconciler) reconcileUpsert(syncType, entityType, entityID string, payload []byte) (Result, error) {
	var action string
	var err error

	switch entityType {
	case models.EntityProperty:
		var prop *models.ExternalProperty
		prop, err = mapPropertyPayload(entityID, payload)
		if err == nil {
			action, err = r.properties.Upsert(prop)
		} else {
			r.audit.Error(syncType, "upsert", entityID, err.Error())
			return Result{Success: false, Message: err.Error()}, nil
		}
	case models.EntityReservation:
		var res *models.ExternalReservation
		res, err = mapReservationPayload(entityID, payload)
		if err == nil {
			action, err = r.reservations.Upsert(res)
		} else {
			r.audit.Error(syncType, "upsert", entityID, err.Error())
			return Result{Success: false, Message: err.Error()}, nil
		}
	}

	if err != nil {
		r.audit.Error(syncType, "upsert", entityID, err.Error())
		return Result{Success: false, Message: "storage unavailable"}, err
	}

	msg := fmt.Sprintf("%s %sd", entityType, action)
	r.audit.Success(syncType, action, entityID, 1, "")
	return Result{Success: true, Action: action, Message: msg}, nil
}

func (r *Reconciler) reconcileDelete(syncType, entityType, entityID string) (Result, error) {
	var existed bool
	var err error

	switch entityType {
	case models.EntityProperty:
		existed, err = r.properties.Delete(entityID)
	case models.EntityReservation:
		existed, err = r.reservations.Delete(entityID)
	}

	if err != nil {
		r.audit.Error(syncType, "delete", entityID, err.Error())
		return Result{Success: false, Message: "storage unavailable"}, err
	}

	msg := fmt.Sprintf("%s deleted", entityType)
	if !existed {
		msg = fmt.Sprintf("%s already absent", entityType)
	}
	r.audit.Success(syncType, "delete", entityID, 1, msg)
	return Result{Success: true, Action: "delete", Message: msg}, nil
}

// lock serializes reconciliation per entity key.
func (r *Reconciler) lock(key string) func() {
	r.mu.Lock()
	m, ok := r.locks[key]
	if !ok {
		m = &stdsync.Mutex{}
		r.locks[key] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func syncTypeFor(entityType string) string {
	if entityType == models.EntityReservation {
		return models.SyncTypeWebhookReservation
	}
	return models.SyncTypeWebhookProperty
}
