package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"staysync/internal/platform/models"
)

// WebhookEventRepository is the intake log. Every inbound webhook is
// appended here before any processing happens, so no delivery is silently
// lost and any event can be replayed later.
type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Create appends the event and returns its ID. If this write fails the
// caller must report a retryable error to the sender; the delivery was not
// durably received.
func (r *WebhookEventRepository) Create(event *models.WebhookEvent) (string, error) {
	event.ID = "evt_" + uuid.New().String()
	event.ReceivedAt = time.Now().Unix()

	query := `
		INSERT INTO webhook_events (id, event_type, entity_type, entity_id, payload, signature, source_addr, received_at, processed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
	`
	_, err := r.db.Exec(query, event.ID, event.EventType, event.EntityType, event.EntityID, event.Payload, event.Signature, event.SourceAddr, event.ReceivedAt)
	if err != nil {
		return "", err
	}
	return event.ID, nil
}

// MarkProcessed records the processing outcome. This is the only mutation
// a webhook event ever receives.
func (r *WebhookEventRepository) MarkProcessed(id string, processingError string) error {
	query := `UPDATE webhook_events SET processed = 1, processed_at = ?, processing_error = ? WHERE id = ?`
	_, err := r.db.Exec(query, time.Now().Unix(), processingError, id)
	return err
}

func (r *WebhookEventRepository) GetByID(id string) (*models.WebhookEvent, error) {
	query := `
		SELECT id, event_type, entity_type, entity_id, payload, signature, source_addr, received_at, processed, processed_at, processing_error
		FROM webhook_events WHERE id = ?
	`
	return scanWebhookEvent(r.db.QueryRow(query, id))
}

// ListPending returns events that were recorded but never marked
// processed, oldest first. Used by the worker for crash recovery.
func (r *WebhookEventRepository) ListPending(limit int) ([]*models.WebhookEvent, error) {
	query := `
		SELECT id, event_type, entity_type, entity_id, payload, signature, source_addr, received_at, processed, processed_at, processing_error
		FROM webhook_events WHERE processed = 0 ORDER BY received_at ASC LIMIT ?
	`
	return r.queryEvents(query, limit)
}

func (r *WebhookEventRepository) List(limit int) ([]*models.WebhookEvent, error) {
	query := `
		SELECT id, event_type, entity_type, entity_id, payload, signature, source_addr, received_at, processed, processed_at, processing_error
		FROM webhook_events ORDER BY received_at DESC LIMIT ?
	`
	return r.queryEvents(query, limit)
}

func (r *WebhookEventRepository) queryEvents(query string, args ...interface{}) ([]*models.WebhookEvent, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.WebhookEvent
	for rows.Next() {
		event, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanWebhookEvent(s interface {
	Scan(dest ...interface{}) error
}) (*models.WebhookEvent, error) {
	var e models.WebhookEvent
	var signature, sourceAddr, processingError sql.NullString
	var processedAt sql.NullInt64

	err := s.Scan(
		&e.ID,
		&e.EventType,
		&e.EntityType,
		&e.EntityID,
		&e.Payload,
		&signature,
		&sourceAddr,
		&e.ReceivedAt,
		&e.Processed,
		&processedAt,
		&processingError,
	)
	if err != nil {
		return nil, err
	}

	e.Signature = signature.String
	e.SourceAddr = sourceAddr.String
	e.ProcessingError = processingError.String
	if processedAt.Valid {
		val := processedAt.Int64
		e.ProcessedAt = &val
	}

	return &e, nil
}
