package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const userAgent = "staysync/1.0"

// CalendarEvent is one normalized feed entry. Events are recomputed on
// every fetch and never persisted, only cached in memory.
type CalendarEvent struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Title  string    `json:"title"`
	UID    string    `json:"uid"`
	Status string    `json:"status"`
}

// FetchErrorKind classifies a fetch failure so the UI can render the
// right guidance.
type FetchErrorKind string

const (
	KindInvalidURL   FetchErrorKind = "invalid_url"
	KindUnreachable  FetchErrorKind = "unreachable"
	KindTimeout      FetchErrorKind = "timeout"
	KindUnauthorized FetchErrorKind = "unauthorized"
	KindNotFound     FetchErrorKind = "not_found"
	KindServerError  FetchErrorKind = "server_error"
	KindUnknown      FetchErrorKind = "unknown"
)

type FetchError struct {
	Kind    FetchErrorKind
	Message string
	Err     error
}

func (e *FetchError) Error() string { return e.Message }
func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves and parses remote iCal feeds.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// ValidateURL checks that the feed URL is something we are willing to
// fetch. Only http and https are accepted.
func ValidateURL(feedURL string) error {
	u, err := url.Parse(feedURL)
	if err != nil {
		return &FetchError{Kind: KindInvalidURL, Message: "calendar URL is not a valid URL", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &FetchError{Kind: KindInvalidURL, Message: "calendar URL must start with http:// or https://"}
	}
	if u.Host == "" {
		return &FetchError{Kind: KindInvalidURL, Message: "calendar URL has no host"}
	}
	return nil
}

// Probe does a cheap HEAD request to fail fast on clearly dead URLs, e.g.
// when an operator saves a new feed URL. A probe failure is advisory; some
// feed servers reject HEAD outright.
func (f *Fetcher) Probe(ctx context.Context, feedURL string) error {
	if err := ValidateURL(feedURL); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, feedURL, nil)
	if err != nil {
		return &FetchError{Kind: KindInvalidURL, Message: "calendar URL is not a valid URL", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusMethodNotAllowed {
		return classifyStatus(resp.StatusCode)
	}
	return nil
}

// Fetch retrieves the feed and returns its events sorted by start time.
// Entries that are not valid date-bounded events are skipped with a
// warning; a decode failure partway through returns whatever parsed.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]CalendarEvent, error) {
	if err := ValidateURL(feedURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindInvalidURL, Message: "calendar URL is not a valid URL", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/calendar, text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	events, parseErr := parseFeed(resp.Body, feedURL)
	if parseErr != nil && len(events) == 0 {
		return nil, &FetchError{Kind: KindUnknown, Message: "calendar feed could not be parsed", Err: parseErr}
	}
	if parseErr != nil {
		// Partial result is strictly better than none.
		log.Warn().Err(parseErr).Str("feed_url", feedURL).Int("events", len(events)).
			Msg("calendar feed truncated, returning partial result")
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

func parseFeed(r io.Reader, feedURL string) ([]CalendarEvent, error) {
	var events []CalendarEvent

	dec := ical.NewDecoder(r)
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			event, ok := normalizeEvent(comp, feedURL)
			if ok {
				events = append(events, event)
			}
		}
	}
}

// normalizeEvent maps one VEVENT onto a CalendarEvent. Entries without
// parseable DTSTART and DTEND are skipped, not fatal.
func normalizeEvent(comp *ical.Component, feedURL string) (CalendarEvent, bool) {
	start, err := propDateTime(comp, ical.PropDateTimeStart)
	if err != nil {
		log.Warn().Err(err).Str("feed_url", feedURL).Msg("skipping calendar entry without valid start")
		return CalendarEvent{}, false
	}
	end, err := propDateTime(comp, ical.PropDateTimeEnd)
	if err != nil {
		log.Warn().Err(err).Str("feed_url", feedURL).Msg("skipping calendar entry without valid end")
		return CalendarEvent{}, false
	}

	title := propValue(comp, ical.PropSummary)
	if title == "" {
		title = "Reservation"
	}

	uid := propValue(comp, ical.PropUID)
	if uid == "" {
		// The feed omitted a stable identifier; generate one so consumers
		// can still deduplicate within this fetch.
		uid = uuid.New().String()
	}

	status := strings.ToLower(propValue(comp, ical.PropStatus))
	if status == "" {
		status = "confirmed"
	}

	return CalendarEvent{
		Start:  start,
		End:    end,
		Title:  title,
		UID:    uid,
		Status: status,
	}, true
}

func propDateTime(comp *ical.Component, name string) (time.Time, error) {
	prop := comp.Props.Get(name)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing %s", name)
	}
	t, err := prop.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return t, nil
}

func propValue(comp *ical.Component, name string) string {
	prop := comp.Props.Get(name)
	if prop == nil {
		return ""
	}
	return strings.TrimSpace(prop.Value)
}

func classifyTransportError(err error) *FetchError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &FetchError{Kind: KindTimeout, Message: "calendar server took too long to respond", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, Message: "calendar server took too long to respond", Err: err}
	}
	return &FetchError{Kind: KindUnreachable, Message: "calendar server could not be reached", Err: err}
}

func classifyStatus(status int) *FetchError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &FetchError{Kind: KindUnauthorized, Message: "calendar URL requires authorization"}
	case status == http.StatusNotFound || status == http.StatusGone:
		return &FetchError{Kind: KindNotFound, Message: "calendar was not found at this URL"}
	case status >= 500:
		return &FetchError{Kind: KindServerError, Message: fmt.Sprintf("calendar server error (HTTP %d)", status)}
	default:
		return &FetchError{Kind: KindUnknown, Message: fmt.Sprintf("calendar fetch failed (HTTP %d)", status)}
	}
}
