package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ParsesLevel(t *testing.T) {
	l, err := New("debug", "json")
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = New("not-a-level", "json")
	assert.Error(t, err)
}

func TestContextFields_CorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-1")
	fields := ContextFields(ctx)
	require.Len(t, fields, 1)
	assert.Equal(t, "correlation_id", fields[0].Key)
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	l := FromContext(context.Background())
	assert.NotNil(t, l)
	l.Info(context.Background(), "no panic expected")
}

func TestWithLogger_RoundTrip(t *testing.T) {
	l := Nop()
	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
