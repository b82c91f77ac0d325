// Package schemaregistry implements the Schema Registry (C1): it loads the
// envelope schema plus one JSON Schema draft 2020-12 document per
// event_type, compiles them with google/jsonschema-go, and validates raw
// instances against them.
package schemaregistry

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/BourguignonSimon/eventflow/schemas"
)

// EnvelopeSchemaID is the id the envelope schema is registered under.
const EnvelopeSchemaID = "envelope"

// Registry holds compiled schemas, indexed by event_type (plus the special
// EnvelopeSchemaID entry).
type Registry struct {
	resolved map[string]*jsonschema.Resolved
}

// eventTypeToFile maps an event_type to its schema file name under
// schemas/. Kept explicit (rather than derived by string transform) so a
// new event type is a one-line addition, not a naming-convention trap.
var eventTypeToFile = map[string]string{
	"PROJECT.INITIAL_REQUEST_RECEIVED": "project.initial_request_received.schema.json",
	"WORK.ITEM_DISPATCHED":             "work.item_dispatched.schema.json",
	"WORK.ITEM_STARTED":                "work.item_started.schema.json",
	"WORK.ITEM_COMPLETED":              "work.item_completed.schema.json",
	"WORK.ITEM_FAILED":                 "work.item_failed.schema.json",
	"DELIVERABLE.PUBLISHED":            "deliverable.published.schema.json",
	"QUESTION.CREATED":                 "question.created.schema.json",
	"CLARIFICATION.NEEDED":             "clarification.needed.schema.json",
	"USER.ANSWER_SUBMITTED":            "user.answer_submitted.schema.json",
	"BACKLOG.ITEM_UNBLOCKED":           "backlog.item_unblocked.schema.json",
}

// New loads and compiles the envelope schema and every registered payload
// schema from the embedded schemas/ directory.
func New() (*Registry, error) {
	r := &Registry{resolved: make(map[string]*jsonschema.Resolved, len(eventTypeToFile)+1)}

	if err := r.load(EnvelopeSchemaID, "envelope.schema.json"); err != nil {
		return nil, err
	}
	for eventType, file := range eventTypeToFile {
		if err := r.load(eventType, file); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) load(key, file string) error {
	data, err := schemas.FS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("schemaregistry: read %s: %w", file, err)
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return fmt.Errorf("schemaregistry: parse %s: %w", file, err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("schemaregistry: resolve %s: %w", file, err)
	}

	r.resolved[key] = resolved
	return nil
}

// ValidationError reports a schema violation. Category is always "contract"
// per the failure taxonomy.
type ValidationError struct {
	SchemaID string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schemaregistry: %s: %v", e.SchemaID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ValidateEnvelope validates a decoded envelope's top-level shape.
func (r *Registry) ValidateEnvelope(instance any) error {
	return r.validate(EnvelopeSchemaID, instance)
}

// ValidatePayload validates a decoded payload against the schema registered
// for eventType. An unknown event_type is itself a contract violation: the
// registry only recognizes the required event types listed in the
// external-interfaces section.
func (r *Registry) ValidatePayload(eventType string, instance any) error {
	resolved, ok := r.resolved[eventType]
	if !ok {
		return &ValidationError{SchemaID: eventType, Err: fmt.Errorf("no schema registered for event_type %q", eventType)}
	}
	return r.validateResolved(eventType, resolved, instance)
}

func (r *Registry) validate(schemaID string, instance any) error {
	resolved, ok := r.resolved[schemaID]
	if !ok {
		return &ValidationError{SchemaID: schemaID, Err: fmt.Errorf("no schema registered")}
	}
	return r.validateResolved(schemaID, resolved, instance)
}

func (r *Registry) validateResolved(schemaID string, resolved *jsonschema.Resolved, instance any) error {
	if err := resolved.Validate(instance); err != nil {
		return &ValidationError{SchemaID: schemaID, Err: err}
	}
	return nil
}

// KnownEventTypes returns the sorted-independent set of event types this
// registry can validate payloads for.
func (r *Registry) KnownEventTypes() []string {
	out := make([]string, 0, len(eventTypeToFile))
	for t := range eventTypeToFile {
		out = append(out, t)
	}
	return out
}

// schemaIDForFile derives a readable schema id from its file name. Nothing
// in the repository calls it; the stream runtime tags DLQ records with the
// envelope schema id or the event type instead.
func schemaIDForFile(file string) string {
	return strings.TrimSuffix(path.Base(file), ".schema.json")
}
