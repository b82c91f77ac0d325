package schemaregistry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LoadsAllSchemas(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.Len(t, r.KnownEventTypes(), 10)
}

func TestValidateEnvelope(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	valid := map[string]any{
		"event_id":       "e1",
		"event_type":     "PROJECT.INITIAL_REQUEST_RECEIVED",
		"event_version":  1,
		"timestamp":      "2026-08-02T00:00:00Z",
		"source":         "gateway",
		"instance":       "gateway",
		"correlation_id": "e1",
		"payload":        json.RawMessage(`{}`),
	}
	assert.NoError(t, r.ValidateEnvelope(valid))

	delete(valid, "event_id")
	assert.Error(t, r.ValidateEnvelope(valid))
}

func TestValidatePayload_KnownAndUnknownType(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	err = r.ValidatePayload("PROJECT.INITIAL_REQUEST_RECEIVED", map[string]any{
		"project_id":   "p1",
		"request_text": "build me a thing",
	})
	assert.NoError(t, err)

	err = r.ValidatePayload("PROJECT.INITIAL_REQUEST_RECEIVED", map[string]any{
		"project_id": "p1",
	})
	assert.Error(t, err)

	err = r.ValidatePayload("NOT.A_REAL_TYPE", map[string]any{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidatePayload_WorkItemFailedCategoryEnum(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	err = r.ValidatePayload("WORK.ITEM_FAILED", map[string]any{
		"project_id":      "p1",
		"backlog_item_id": "b1",
		"reason":          "boom",
		"category":        "not_a_category",
	})
	assert.Error(t, err)

	err = r.ValidatePayload("WORK.ITEM_FAILED", map[string]any{
		"project_id":      "p1",
		"backlog_item_id": "b1",
		"reason":          "boom",
		"category":        "tool",
	})
	assert.NoError(t, err)
}
