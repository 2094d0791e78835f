package models

// Property is a locally managed property. The sync subsystem only cares
// about its upstream linkage and the iCal feed URL configured for it; the
// rest of the property CRUD surface lives outside this service.
type Property struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	UpstreamID string `json:"upstream_id,omitempty"`
	ICalURL    string `json:"ical_url,omitempty"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

// ExternalProperty mirrors a property record owned by the upstream
// provider. At most one row exists per upstream ID.
type ExternalProperty struct {
	ID         string   `json:"id"`
	UpstreamID string   `json:"upstream_id"`
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	Bedrooms   int      `json:"bedrooms"`
	Bathrooms  float64  `json:"bathrooms"`
	Amenities  []string `json:"amenities"` // JSON array in DB
	ListingURL string   `json:"listing_url,omitempty"`
	CreatedAt  int64    `json:"created_at"`
	UpdatedAt  int64    `json:"updated_at"`
}

// ExternalReservation mirrors a reservation record owned by the upstream
// provider, keyed by its upstream ID.
type ExternalReservation struct {
	ID                 string  `json:"id"`
	UpstreamID         string  `json:"upstream_id"`
	PropertyUpstreamID string  `json:"property_upstream_id"`
	GuestName          string  `json:"guest_name"`
	GuestEmail         string  `json:"guest_email,omitempty"`
	CheckIn            int64   `json:"check_in"`
	CheckOut           int64   `json:"check_out"`
	Status             string  `json:"status"`
	Channel            string  `json:"channel,omitempty"`
	TotalPrice         float64 `json:"total_price"`
	CreatedAt          int64   `json:"created_at"`
	UpdatedAt          int64   `json:"updated_at"`
}

// Sync log types and statuses.
const (
	SyncTypeWebhookProperty    = "webhook_property"
	SyncTypeWebhookReservation = "webhook_reservation"
	SyncTypeCalendarFetch      = "calendar_fetch"

	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// SyncLog is one append-only record of a reconciliation attempt or a
// calendar fetch. Never updated or deleted by this service.
type SyncLog struct {
	ID           string `json:"id"`
	SyncType     string `json:"sync_type"`
	Status       string `json:"status"`
	Action       string `json:"action,omitempty"` // create, update, delete, fetch
	EntityID     string `json:"entity_id,omitempty"`
	ItemsSynced  int    `json:"items_synced"`
	ErrorMessage string `json:"error_message,omitempty"`
	Notes        string `json:"notes,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}
