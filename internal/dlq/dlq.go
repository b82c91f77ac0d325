// Package dlq implements the DLQ publisher (C6): it appends a quarantine
// record to the dead-letter stream, preserving the original raw fields
// verbatim alongside whatever metadata could be extracted from them.
//
// Design Note (open question): the source had two overlapping ways of
// recording DLQ context, one decoding the envelope inside the DLQ writer
// and one carrying an explicit original_event field. This implementation
// picks the former — decode best-effort inside Publish — and always keeps
// original_fields verbatim, which is the only invariant the spec requires
// (I6).
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BourguignonSimon/eventflow/internal/envelope"
	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

// FieldName is the key under which the encoded DLQ record is stored on a
// raw DLQ stream entry.
const FieldName = "dlq"

// Record is the JSON document stored under FieldName.
type Record struct {
	Timestamp      time.Time         `json:"timestamp"`
	EventID        string            `json:"event_id,omitempty"`
	EventType      string            `json:"event_type,omitempty"`
	Reason         string            `json:"reason"`
	SchemaID       string            `json:"schema_id,omitempty"`
	OriginalEvent  *envelope.Envelope `json:"original_event,omitempty"`
	OriginalFields map[string]string `json:"original_fields"`
}

// Publisher appends Records to the configured DLQ stream.
type Publisher struct {
	store  substrate.Substrate
	stream string
}

// New constructs a Publisher writing to the given DLQ stream name
// (conventionally "audit:dlq").
func New(store substrate.Substrate, stream string) *Publisher {
	return &Publisher{store: store, stream: stream}
}

// Option customizes Publish.
type Option func(*Record)

// WithSchemaID attaches the schema id that rejected the original event.
func WithSchemaID(id string) Option {
	return func(r *Record) { r.SchemaID = id }
}

// Publish writes a quarantine record for originalFields, tagged with
// reason, and returns the new DLQ entry id. Publish never returns an error
// caused by bad caller input (e.g. an undecodable original event) — it
// degrades to a record with empty EventID/EventType/OriginalEvent instead,
// per C6's "never throws on caller input" contract. It can still fail if
// the underlying substrate append fails.
func (p *Publisher) Publish(ctx context.Context, reason string, originalFields map[string]string, opts ...Option) (string, error) {
	rec := Record{
		Timestamp:      time.Now().UTC(),
		Reason:         reason,
		OriginalFields: originalFields,
	}
	for _, opt := range opts {
		opt(&rec)
	}

	if env, err := envelope.Decode(originalFields); err == nil {
		rec.EventID = env.EventID
		rec.EventType = env.EventType
		rec.OriginalEvent = &env
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("dlq: marshal record: %w", err)
	}

	id, err := p.store.Append(ctx, p.stream, map[string]string{FieldName: string(data)})
	if err != nil {
		return "", fmt.Errorf("dlq: append: %w", err)
	}
	return id, nil
}
