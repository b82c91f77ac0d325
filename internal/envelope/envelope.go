// Package envelope defines the canonical event wrapper carried on the main
// stream and the DLQ stream, plus the helpers that build and decode it.
//
// Every message on the main stream has a single field named "event" whose
// value is the UTF-8 JSON encoding of an Envelope. Consumers must tolerate
// extra fields on the raw stream entry.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every event published to the main stream.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	Instance      string          `json:"instance"`
	CorrelationID string          `json:"correlation_id"`
	CausationID   string          `json:"causation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// FieldName is the key under which the encoded envelope is stored on a raw
// stream entry.
const FieldName = "event"

// BuildOption customizes Build.
type BuildOption func(*Envelope)

// WithCorrelationID sets an explicit correlation id instead of generating one.
func WithCorrelationID(id string) BuildOption {
	return func(e *Envelope) { e.CorrelationID = id }
}

// WithCausationID sets the event_id that caused this event.
func WithCausationID(id string) BuildOption {
	return func(e *Envelope) { e.CausationID = id }
}

// WithInstance overrides the producer instance tag (defaults to source).
func WithInstance(instance string) BuildOption {
	return func(e *Envelope) { e.Instance = instance }
}

// WithEventVersion overrides the default event_version of 1.
func WithEventVersion(v int) BuildOption {
	return func(e *Envelope) { e.EventVersion = v }
}

// WithEventID overrides the generated event_id. Intended for tests and for
// replay tooling; production callers should let Build generate a fresh id.
func WithEventID(id string) BuildOption {
	return func(e *Envelope) { e.EventID = id }
}

// Build constructs a new Envelope with a generated event_id, the current UTC
// timestamp truncated to seconds (RFC3339 seconds precision), and a
// correlation_id defaulted to the fresh event_id when none is supplied.
func Build(eventType string, payload any, source string, opts ...BuildOption) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: marshal payload: %w", err)
	}

	e := Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		Timestamp:    time.Now().UTC().Truncate(time.Second),
		Source:       source,
		Instance:     source,
		Payload:      raw,
	}

	for _, opt := range opts {
		opt(&e)
	}

	if e.CorrelationID == "" {
		e.CorrelationID = e.EventID
	}

	return e, nil
}

// Encode renders the envelope into the wire form: a map with a single
// "event" field containing the JSON-encoded envelope.
func Encode(e Envelope) (map[string]string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("envelope: encode: %w", err)
	}
	return map[string]string{FieldName: string(data)}, nil
}

// DecodeError reports a failure to decode a raw stream entry into an
// Envelope. Category is always "decode" per the failure taxonomy.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("envelope: decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("envelope: decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses the raw stream entry fields back into an Envelope. Extra
// fields beyond FieldName are ignored.
func Decode(rawFields map[string]string) (Envelope, error) {
	raw, ok := rawFields[FieldName]
	if !ok {
		return Envelope{}, &DecodeError{Reason: "missing '" + FieldName + "' field"}
	}

	var e Envelope
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Envelope{}, &DecodeError{Reason: "invalid JSON", Err: err}
	}

	if e.EventID == "" || e.EventType == "" || e.Source == "" {
		return Envelope{}, &DecodeError{Reason: "missing required envelope field"}
	}

	return e, nil
}

// DecodePayload unmarshals the envelope's payload into dst.
func (e Envelope) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("envelope: empty payload")
	}
	return json.Unmarshal(e.Payload, dst)
}
