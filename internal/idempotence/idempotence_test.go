package idempotence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

func TestMarkIfNew_OnlyFirstCallerProceeds(t *testing.T) {
	// I1: for all events that reach a handler of group G,
	// mark_if_new(G, event_id) was true exactly once.
	g := New(substrate.NewMemory(), "audit:idemp")
	ctx := context.Background()

	ok, err := g.MarkIfNew(ctx, "orchestrator", "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.MarkIfNew(ctx, "orchestrator", "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "replay of the same event_id must not proceed twice")
}

func TestMarkIfNew_IsolatedPerGroup(t *testing.T) {
	g := New(substrate.NewMemory(), "audit:idemp")
	ctx := context.Background()

	ok, err := g.MarkIfNew(ctx, "orchestrator", "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.MarkIfNew(ctx, "validators", "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "a different consumer group must get its own marker")
}

func TestMarkIfNew_DefaultsTTL(t *testing.T) {
	g := New(substrate.NewMemory(), "audit:idemp")
	ctx := context.Background()

	ok, err := g.MarkIfNew(ctx, "orchestrator", "evt-1", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsMarked_PeeksWithoutConsuming(t *testing.T) {
	g := New(substrate.NewMemory(), "audit:idemp")
	ctx := context.Background()

	marked, err := g.IsMarked(ctx, "orchestrator", "evt-1")
	require.NoError(t, err)
	assert.False(t, marked)

	marked, err = g.IsMarked(ctx, "orchestrator", "evt-1")
	require.NoError(t, err)
	assert.False(t, marked, "a peek must not itself mark the event")

	ok, err := g.MarkIfNew(ctx, "orchestrator", "evt-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	marked, err = g.IsMarked(ctx, "orchestrator", "evt-1")
	require.NoError(t, err)
	assert.True(t, marked)
}
