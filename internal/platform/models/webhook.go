package models

// Webhook event types and entity types as delivered by the upstream
// provider (`<entity>.<action>`).
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"

	EntityProperty    = "property"
	EntityReservation = "reservation"
)

// WebhookEvent is the durable intake record for one inbound webhook
// delivery. Rows are appended before processing and mutated exactly once,
// to mark the processing outcome. They are never deleted.
type WebhookEvent struct {
	ID              string `json:"id"`
	EventType       string `json:"event_type"`  // created, updated, deleted
	EntityType      string `json:"entity_type"` // property, reservation
	EntityID        string `json:"entity_id"`   // upstream identifier
	Payload         string `json:"payload"`     // raw JSON as received
	Signature       string `json:"signature,omitempty"`
	SourceAddr      string `json:"source_addr,omitempty"`
	ReceivedAt      int64  `json:"received_at"`
	Processed       bool   `json:"processed"`
	ProcessedAt     *int64 `json:"processed_at,omitempty"`
	ProcessingError string `json:"processing_error,omitempty"`
}
