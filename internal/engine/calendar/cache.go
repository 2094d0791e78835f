package calendar

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"staysync/internal/platform/models"
)

// FetchFunc retrieves a feed. In production it is Fetcher.Fetch; tests
// substitute their own.
type FetchFunc func(ctx context.Context, feedURL string) ([]CalendarEvent, error)

// Recorder is the slice of the audit recorder the cache needs.
type Recorder interface {
	Success(syncType, action, entityID string, items int, notes string)
	Error(syncType, action, entityID, errMsg string)
}

// FeedError is the recorded outcome of the most recent failed fetch for a
// feed URL.
type FeedError struct {
	Kind       FetchErrorKind `json:"kind"`
	Message    string         `json:"message"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// FeedStatus describes the cache state for one feed URL.
type FeedStatus struct {
	State     string     `json:"state"` // empty, fresh, stale, error
	FetchedAt time.Time  `json:"fetched_at,omitempty"`
	LastError *FeedError `json:"last_error,omitempty"`
}

type feedEntry struct {
	events    []CalendarEvent // nil until the first successful fetch
	fetchedAt time.Time
	lastError *FeedError
}

// Cache is a process-wide, time-bounded cache in front of the fetcher.
// Fresh entries are served without a network call; an expired entry whose
// refresh fails is served stale with the error recorded alongside; repeated
// failures are throttled by a shorter error TTL so a broken upstream is not
// hammered. Concurrent misses for the same URL share one fetch.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*feedEntry
	group   singleflight.Group

	fetch    FetchFunc
	ttl      time.Duration
	errorTTL time.Duration
	audit    Recorder

	now func() time.Time
}

func NewCache(fetch FetchFunc, ttl, errorTTL time.Duration, audit Recorder) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if errorTTL <= 0 {
		errorTTL = 10 * time.Minute
	}
	return &Cache{
		entries:  make(map[string]*feedEntry),
		fetch:    fetch,
		ttl:      ttl,
		errorTTL: errorTTL,
		audit:    audit,
		now:      time.Now,
	}
}

// GetEvents returns the events for a feed URL, fetching if the cache has
// nothing fresh. It fails only when no usable data, fresh or stale,
// exists.
func (c *Cache) GetEvents(ctx context.Context, feedURL string) ([]CalendarEvent, error) {
	now := c.now()

	c.mu.RLock()
	entry := c.entries[feedURL]
	if entry != nil {
		if entry.events != nil && now.Sub(entry.fetchedAt) < c.ttl {
			events := copyEvents(entry.events)
			c.mu.RUnlock()
			return events, nil
		}
		if entry.lastError != nil && now.Sub(entry.lastError.OccurredAt) < c.errorTTL {
			// Inside the error backoff window: do not retry. Serve stale
			// data if any exists, otherwise re-raise the cached error.
			if entry.events != nil {
				events := copyEvents(entry.events)
				c.mu.RUnlock()
				return events, nil
			}
			err := &FetchError{Kind: entry.lastError.Kind, Message: entry.lastError.Message}
			c.mu.RUnlock()
			return nil, err
		}
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(feedURL, func() (interface{}, error) {
		// A concurrent flight may have refreshed the entry while this
		// caller was queued behind the singleflight lock.
		c.mu.RLock()
		if e := c.entries[feedURL]; e != nil && e.events != nil && c.now().Sub(e.fetchedAt) < c.ttl {
			events := copyEvents(e.events)
			c.mu.RUnlock()
			return events, nil
		}
		c.mu.RUnlock()

		events, fetchErr := c.fetch(ctx, feedURL)
		if fetchErr != nil {
			c.recordError(feedURL, fetchErr)
			return nil, fetchErr
		}
		c.recordSuccess(feedURL, events)
		return copyEvents(events), nil
	})

	if err != nil {
		// Refresh failed; fall back to stale data when a previous
		// successful fetch left some.
		c.mu.RLock()
		entry := c.entries[feedURL]
		var stale []CalendarEvent
		if entry != nil && entry.events != nil {
			stale = copyEvents(entry.events)
		}
		c.mu.RUnlock()

		if stale != nil {
			return stale, nil
		}
		return nil, err
	}

	return v.([]CalendarEvent), nil
}

// Status reports the cache state for a feed URL so callers can
// distinguish healthy, stale-served and errored feeds.
func (c *Cache) Status(feedURL string) FeedStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry := c.entries[feedURL]
	if entry == nil {
		return FeedStatus{State: "empty"}
	}

	status := FeedStatus{FetchedAt: entry.fetchedAt, LastError: entry.lastError}
	switch {
	case entry.events == nil:
		status.State = "error"
	case entry.lastError != nil:
		status.State = "stale"
	default:
		status.State = "fresh"
	}
	return status
}

// Clear drops the entry for one feed URL so the next read refetches
// immediately, e.g. after a property's feed URL changed.
func (c *Cache) Clear(feedURL string) {
	c.mu.Lock()
	delete(c.entries, feedURL)
	c.mu.Unlock()
}

// ClearAll drops every cached entry.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[string]*feedEntry)
	c.mu.Unlock()
}

func (c *Cache) recordSuccess(feedURL string, events []CalendarEvent) {
	c.mu.Lock()
	c.entries[feedURL] = &feedEntry{
		events:    copyEvents(events),
		fetchedAt: c.now(),
	}
	c.mu.Unlock()

	if c.audit != nil {
		c.audit.Success(models.SyncTypeCalendarFetch, "fetch", feedURL, len(events), "")
	}
}

func (c *Cache) recordError(feedURL string, fetchErr error) {
	kind := KindUnknown
	if fe, ok := fetchErr.(*FetchError); ok {
		kind = fe.Kind
	}
	feedErr := &FeedError{
		Kind:       kind,
		Message:    fetchErr.Error(),
		OccurredAt: c.now(),
	}

	c.mu.Lock()
	entry := c.entries[feedURL]
	if entry == nil {
		entry = &feedEntry{}
		c.entries[feedURL] = entry
	}
	entry.lastError = feedErr
	c.mu.Unlock()

	if c.audit != nil {
		c.audit.Error(models.SyncTypeCalendarFetch, "fetch", feedURL, fetchErr.Error())
	}
}

func copyEvents(events []CalendarEvent) []CalendarEvent {
	if events == nil {
		return []CalendarEvent{}
	}
	out := make([]CalendarEvent, len(events))
	copy(out, events)
	return out
}
