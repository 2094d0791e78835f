package sync

import (
	"encoding/json"
	"strings"
)

// Envelope is what the provider delivers: either a wrapped form
// {"event":"property.updated","data":{...}} or a bare entity payload with
// the event name in a header. Parsing is best effort; the intake log
// records the raw body regardless, and the reconciler rejects anything
// that came out incomplete.
type Envelope struct {
	EntityType string
	EventType  string
	EntityID   string
	Payload    []byte
}

func ParseEnvelope(body []byte, headerEvent string) Envelope {
	var wrapper struct {
		Event string          `json:"event"`
		ID    string          `json:"id"`
		Data  json.RawMessage `json:"data"`
	}
	// Malformed JSON leaves every field empty; the reconciler reports the
	// validation failure downstream.
	json.Unmarshal(body, &wrapper)

	event := wrapper.Event
	if event == "" {
		event = headerEvent
	}

	payload := body
	if len(wrapper.Data) > 0 {
		payload = wrapper.Data
	}

	var env Envelope
	env.Payload = payload
	env.EntityType, env.EventType = splitEvent(event)

	var inner struct {
		ID string `json:"id"`
	}
	json.Unmarshal(payload, &inner)
	env.EntityID = inner.ID
	if env.EntityID == "" {
		env.EntityID = wrapper.ID
	}

	return env
}

// splitEvent turns "property.updated" into ("property", "updated").
func splitEvent(event string) (entityType, eventType string) {
	parts := strings.SplitN(event, ".", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return strings.ToLower(parts[0]), strings.ToLower(parts[1])
}
