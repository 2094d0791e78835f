package sync

import (
	"testing"
	"time"
)

func TestMapPropertyPayload_Defaults(t *testing.T) {
	prop, err := mapPropertyPayload("P1", []byte(`{"id":"P1","title":"Unit A"}`))
	if err != nil {
		t.Fatalf("mapPropertyPayload: %v", err)
	}

	if prop.UpstreamID != "P1" {
		t.Errorf("UpstreamID = %q, want P1", prop.UpstreamID)
	}
	if prop.Name != "Unit A" {
		t.Errorf("Name = %q, want Unit A", prop.Name)
	}
	if prop.Bedrooms != 0 || prop.Bathrooms != 0 {
		t.Errorf("missing counts should default to zero, got %d/%v", prop.Bedrooms, prop.Bathrooms)
	}
	if prop.Amenities == nil || len(prop.Amenities) != 0 {
		t.Errorf("Amenities = %v, want empty list", prop.Amenities)
	}
}

func TestMapPropertyPayload_NestedListing(t *testing.T) {
	raw := []byte(`{"id":"P2","name":"Unit B","bedrooms":3,"bathrooms":1.5,"amenities":["wifi","pool"],"listing":{"url":"https://upstream.example/p/P2"}}`)

	prop, err := mapPropertyPayload("P2", raw)
	if err != nil {
		t.Fatalf("mapPropertyPayload: %v", err)
	}

	if prop.Name != "Unit B" {
		t.Errorf("Name = %q, want Unit B", prop.Name)
	}
	if prop.Bedrooms != 3 || prop.Bathrooms != 1.5 {
		t.Errorf("got %d bedrooms / %v bathrooms", prop.Bedrooms, prop.Bathrooms)
	}
	if prop.ListingURL != "https://upstream.example/p/P2" {
		t.Errorf("ListingURL = %q", prop.ListingURL)
	}
}

func TestMapPropertyPayload_Malformed(t *testing.T) {
	if _, err := mapPropertyPayload("P1", []byte(`not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestMapReservationPayload(t *testing.T) {
	raw := []byte(`{
		"id": "R1",
		"guest": {"name": "Ada Lovelace", "email": "ada@example.com"},
		"listing": {"id": "P1"},
		"check_in": "2025-07-01",
		"check_out": "2025-07-05T10:00:00Z",
		"channel": "airbnb",
		"total_price": 840.50
	}`)

	res, err := mapReservationPayload("R1", raw)
	if err != nil {
		t.Fatalf("mapReservationPayload: %v", err)
	}

	if res.GuestName != "Ada Lovelace" || res.GuestEmail != "ada@example.com" {
		t.Errorf("guest = %q / %q", res.GuestName, res.GuestEmail)
	}
	if res.PropertyUpstreamID != "P1" {
		t.Errorf("PropertyUpstreamID = %q, want P1", res.PropertyUpstreamID)
	}
	if res.Status != "confirmed" {
		t.Errorf("Status = %q, want default confirmed", res.Status)
	}
	if res.TotalPrice != 840.50 {
		t.Errorf("TotalPrice = %v", res.TotalPrice)
	}

	wantCheckIn := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC).Unix()
	if res.CheckIn != wantCheckIn {
		t.Errorf("CheckIn = %d, want %d", res.CheckIn, wantCheckIn)
	}
}

func TestMapReservationPayload_MissingNestedGuest(t *testing.T) {
	res, err := mapReservationPayload("R2", []byte(`{"id":"R2"}`))
	if err != nil {
		t.Fatalf("mapReservationPayload: %v", err)
	}

	if res.GuestName != "" || res.GuestEmail != "" {
		t.Errorf("missing guest should default empty, got %q/%q", res.GuestName, res.GuestEmail)
	}
	if res.CheckIn != 0 || res.CheckOut != 0 {
		t.Errorf("missing dates should default to zero, got %d/%d", res.CheckIn, res.CheckOut)
	}
}

func TestMapReservationPayload_MalformedDate(t *testing.T) {
	_, err := mapReservationPayload("R3", []byte(`{"id":"R3","check_in":"next tuesday"}`))
	if err == nil {
		t.Error("malformed date must be rejected, not coerced")
	}
}

func TestParseEnvelope(t *testing.T) {
	t.Run("wrapped form", func(t *testing.T) {
		body := []byte(`{"event":"reservation.created","data":{"id":"R1","status":"confirmed"}}`)
		env := ParseEnvelope(body, "")

		if env.EntityType != "reservation" || env.EventType != "created" {
			t.Errorf("got %s/%s", env.EntityType, env.EventType)
		}
		if env.EntityID != "R1" {
			t.Errorf("EntityID = %q, want R1", env.EntityID)
		}
	})

	t.Run("bare payload with header event", func(t *testing.T) {
		body := []byte(`{"id":"P1","title":"Unit A"}`)
		env := ParseEnvelope(body, "property.updated")

		if env.EntityType != "property" || env.EventType != "updated" {
			t.Errorf("got %s/%s", env.EntityType, env.EventType)
		}
		if env.EntityID != "P1" {
			t.Errorf("EntityID = %q, want P1", env.EntityID)
		}
		if string(env.Payload) != string(body) {
			t.Errorf("payload should be the raw body")
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		env := ParseEnvelope([]byte(`garbage`), "")
		if env.EntityType != "" || env.EventType != "" || env.EntityID != "" {
			t.Errorf("malformed body should parse to empty envelope, got %+v", env)
		}
	})
}
