package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ProjectID string `json:"project_id"`
}

func TestBuild_DefaultsCorrelationIDToEventID(t *testing.T) {
	e, err := Build("PROJECT.INITIAL_REQUEST_RECEIVED", payload{ProjectID: "P1"}, "gateway")
	require.NoError(t, err)

	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, e.EventID, e.CorrelationID)
	assert.Equal(t, "gateway", e.Instance, "instance defaults to source")
	assert.Equal(t, 1, e.EventVersion)
	assert.Empty(t, e.CausationID)
	assert.WithinDuration(t, time.Now().UTC(), e.Timestamp, 5*time.Second)
}

func TestBuild_RoundTrip(t *testing.T) {
	// R1: decode(build(t, p, s, correlation_id=c, causation_id=x)) preserves t, p, s, c, x
	// and yields a fresh event_id and a monotone timestamp.
	before := time.Now().UTC()

	built, err := Build(
		"WORK.ITEM_DISPATCHED",
		payload{ProjectID: "P1"},
		"orchestrator",
		WithCorrelationID("corr-1"),
		WithCausationID("cause-1"),
	)
	require.NoError(t, err)

	fields, err := Encode(built)
	require.NoError(t, err)

	decoded, err := Decode(fields)
	require.NoError(t, err)

	assert.Equal(t, "WORK.ITEM_DISPATCHED", decoded.EventType)
	assert.Equal(t, "orchestrator", decoded.Source)
	assert.Equal(t, "corr-1", decoded.CorrelationID)
	assert.Equal(t, "cause-1", decoded.CausationID)
	assert.NotEmpty(t, decoded.EventID)
	assert.False(t, decoded.Timestamp.Before(before.Add(-time.Second)))

	var p payload
	require.NoError(t, decoded.DecodePayload(&p))
	assert.Equal(t, "P1", p.ProjectID)
}

func TestDecode_MissingEventField(t *testing.T) {
	_, err := Decode(map[string]string{"other": "value"})
	require.Error(t, err)

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode(map[string]string{FieldName: "{not json"})
	require.Error(t, err)

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestDecode_ToleratesExtraFields(t *testing.T) {
	built, err := Build("WORK.ITEM_STARTED", payload{ProjectID: "P1"}, "worker")
	require.NoError(t, err)

	fields, err := Encode(built)
	require.NoError(t, err)
	fields["stream_id"] = "1234-0"
	fields["unrelated"] = "noise"

	decoded, err := Decode(fields)
	require.NoError(t, err)
	assert.Equal(t, built.EventID, decoded.EventID)
}

func TestDecode_MissingRequiredField(t *testing.T) {
	_, err := Decode(map[string]string{FieldName: `{"event_type":"X"}`})
	require.Error(t, err)
}
