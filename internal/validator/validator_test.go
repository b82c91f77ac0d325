package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BourguignonSimon/eventflow/internal/envelope"
)

func TestHandle_ValidatedEntryPassesThrough(t *testing.T) {
	env, err := envelope.Build("PROJECT.INITIAL_REQUEST_RECEIVED", map[string]any{
		"project_id": "P1", "request_text": "full audit",
	}, "gateway")
	require.NoError(t, err)

	require.NoError(t, Handle(context.Background(), env))
}
