package dlq

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BourguignonSimon/eventflow/internal/envelope"
	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

func TestPublish_PreservesOriginalFieldsVerbatim(t *testing.T) {
	// I6: for every entry the validator rejects, a DLQ record exists
	// whose original_fields equal the rejected raw fields.
	store := substrate.NewMemory()
	p := New(store, "audit:dlq")
	ctx := context.Background()

	original := map[string]string{envelope.FieldName: "{not json", "stream_id": "12-0"}

	id, err := p.Publish(ctx, "envelope_decode", original)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, store.EnsureGroup(ctx, "audit:dlq", "inspector"))
	entries, err := store.ReadGroup(ctx, "audit:dlq", "inspector", "c1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(entries[0].Fields[FieldName]), &rec))
	assert.Equal(t, original, rec.OriginalFields)
	assert.Equal(t, "envelope_decode", rec.Reason)
	assert.Nil(t, rec.OriginalEvent, "undecodable envelope leaves OriginalEvent nil")
}

func TestPublish_DecodesValidEnvelopeBestEffort(t *testing.T) {
	store := substrate.NewMemory()
	p := New(store, "audit:dlq")
	ctx := context.Background()

	built, err := envelope.Build("WORK.ITEM_FAILED", map[string]string{}, "worker")
	require.NoError(t, err)
	fields, err := envelope.Encode(built)
	require.NoError(t, err)

	id, err := p.Publish(ctx, "max_attempts_exhausted", fields, WithSchemaID("work.item_failed.schema.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, store.EnsureGroup(ctx, "audit:dlq", "inspector"))
	entries, err := store.ReadGroup(ctx, "audit:dlq", "inspector", "c1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(entries[0].Fields[FieldName]), &rec))
	assert.Equal(t, built.EventID, rec.EventID)
	assert.Equal(t, "WORK.ITEM_FAILED", rec.EventType)
	assert.Equal(t, "work.item_failed.schema.json", rec.SchemaID)
	require.NotNil(t, rec.OriginalEvent)
	assert.Equal(t, built.EventID, rec.OriginalEvent.EventID)
}
