package calendar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"staysync/internal/platform/repositories"
)

// Feed health states surfaced to the property detail UI.
const (
	StateUnconfigured = "unconfigured"
	StateOK           = "ok"
	StateStale        = "stale"
	StateError        = "error"
)

var ErrPropertyNotFound = errors.New("property not found")

// PropertyCalendar is the calendar view for one property: the feed state
// plus whatever events are available. Events may be present alongside an
// error when stale data is being served.
type PropertyCalendar struct {
	PropertyID string          `json:"property_id"`
	State      string          `json:"state"`
	Events     []CalendarEvent `json:"events,omitempty"`
	Error      *FeedError      `json:"error,omitempty"`
}

// Service resolves a property's configured feed URL and reads through the
// cache.
type Service struct {
	properties *repositories.PropertyRepository
	cache      *Cache
	fetcher    *Fetcher
}

func NewService(properties *repositories.PropertyRepository, cache *Cache, fetcher *Fetcher) *Service {
	return &Service{properties: properties, cache: cache, fetcher: fetcher}
}

// GetPropertyEvents returns the calendar for a property. A missing
// property is the only error; feed problems come back classified inside
// the result.
func (s *Service) GetPropertyEvents(ctx context.Context, propertyID string) (*PropertyCalendar, error) {
	prop, err := s.properties.GetByID(propertyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPropertyNotFound
		}
		return nil, fmt.Errorf("loading property: %w", err)
	}

	result := &PropertyCalendar{PropertyID: propertyID}
	if prop.ICalURL == "" {
		result.State = StateUnconfigured
		return result, nil
	}

	events, fetchErr := s.cache.GetEvents(ctx, prop.ICalURL)
	status := s.cache.Status(prop.ICalURL)

	if fetchErr != nil {
		result.State = StateError
		result.Error = status.LastError
		if result.Error == nil {
			result.Error = &FeedError{Kind: KindUnknown, Message: fetchErr.Error()}
		}
		return result, nil
	}

	result.Events = events
	if status.LastError != nil {
		result.State = StateStale
		result.Error = status.LastError
	} else {
		result.State = StateOK
	}
	return result, nil
}

// Refresh drops the cached entry for the property's feed and refetches.
// Backs the manual retry action in the UI.
func (s *Service) Refresh(ctx context.Context, propertyID string) (*PropertyCalendar, error) {
	prop, err := s.properties.GetByID(propertyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPropertyNotFound
		}
		return nil, fmt.Errorf("loading property: %w", err)
	}

	if prop.ICalURL != "" {
		s.cache.Clear(prop.ICalURL)
	}
	return s.GetPropertyEvents(ctx, propertyID)
}

// SetFeedURL validates and stores a new feed URL for the property, then
// invalidates both old and new cache entries so the next read reflects the
// new source immediately.
func (s *Service) SetFeedURL(ctx context.Context, propertyID, feedURL string) error {
	if feedURL != "" {
		if err := ValidateURL(feedURL); err != nil {
			return err
		}
		if s.fetcher != nil {
			if err := s.fetcher.Probe(ctx, feedURL); err != nil {
				return err
			}
		}
	}

	prop, err := s.properties.GetByID(propertyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPropertyNotFound
		}
		return fmt.Errorf("loading property: %w", err)
	}

	if err := s.properties.UpdateICalURL(propertyID, feedURL); err != nil {
		return fmt.Errorf("saving feed url: %w", err)
	}

	if prop.ICalURL != "" {
		s.cache.Clear(prop.ICalURL)
	}
	if feedURL != "" {
		s.cache.Clear(feedURL)
	}
	return nil
}
