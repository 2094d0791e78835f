package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"staysync/internal/platform/models"
)

// Upstream payloads are duck-typed JSON. The extraction here is
// deliberately explicit: missing fields fall back to safe zero values,
// while fields that are present but malformed (dates in particular) are
// rejected instead of being coerced.

type propertyPayload struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Bedrooms  *int     `json:"bedrooms"`
	Bathrooms *float64 `json:"bathrooms"`
	Amenities []string `json:"amenities"`
	Listing   *struct {
		URL string `json:"url"`
	} `json:"listing"`
	ListingURL string `json:"listing_url"`
}

type reservationPayload struct {
	ID    string `json:"id"`
	Guest *struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"guest"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
	Listing    *struct {
		ID string `json:"id"`
	} `json:"listing"`
	PropertyID string   `json:"property_id"`
	CheckIn    string   `json:"check_in"`
	CheckOut   string   `json:"check_out"`
	Status     string   `json:"status"`
	Channel    string   `json:"channel"`
	TotalPrice *float64 `json:"total_price"`
}

func mapPropertyPayload(upstreamID string, raw []byte) (*models.ExternalProperty, error) {
	var p propertyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed property payload: %w", err)
	}

	name := p.Title
	if name == "" {
		name = p.Name
	}

	listingURL := p.ListingURL
	if listingURL == "" && p.Listing != nil {
		listingURL = p.Listing.URL
	}

	prop := &models.ExternalProperty{
		UpstreamID: upstreamID,
		Name:       name,
		Address:    p.Address,
		Amenities:  p.Amenities,
		ListingURL: listingURL,
	}
	if p.Bedrooms != nil {
		prop.Bedrooms = *p.Bedrooms
	}
	if p.Bathrooms != nil {
		prop.Bathrooms = *p.Bathrooms
	}
	if prop.Amenities == nil {
		prop.Amenities = []string{}
	}

	return prop, nil
}

func mapReservationPayload(upstreamID string, raw []byte) (*models.ExternalReservation, error) {
	var p reservationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed reservation payload: %w", err)
	}

	guestName := p.GuestName
	guestEmail := p.GuestEmail
	if p.Guest != nil {
		if guestName == "" {
			guestName = p.Guest.Name
		}
		if guestEmail == "" {
			guestEmail = p.Guest.Email
		}
	}

	propertyID := p.PropertyID
	if propertyID == "" && p.Listing != nil {
		propertyID = p.Listing.ID
	}

	checkIn, err := parseTimestamp(p.CheckIn)
	if err != nil {
		return nil, fmt.Errorf("invalid check_in %q: %w", p.CheckIn, err)
	}
	checkOut, err := parseTimestamp(p.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("invalid check_out %q: %w", p.CheckOut, err)
	}

	status := p.Status
	if status == "" {
		status = "confirmed"
	}

	res := &models.ExternalReservation{
		UpstreamID:         upstreamID,
		PropertyUpstreamID: propertyID,
		GuestName:          guestName,
		GuestEmail:         guestEmail,
		CheckIn:            checkIn,
		CheckOut:           checkOut,
		Status:             status,
		Channel:            p.Channel,
	}
	if p.TotalPrice != nil {
		res.TotalPrice = *p.TotalPrice
	}

	return res, nil
}

var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts the date shapes the provider emits. An absent
// field is a safe default (zero); a present but unparseable one is an
// error, never coerced to now.
func parseTimestamp(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized timestamp format")
}
