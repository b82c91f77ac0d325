package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

func newStore() *Store {
	return New(substrate.NewMemory(), "audit")
}

func TestRecord_AppendsInOrder(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, Fact{ProjectID: "p1", SourceEventID: "e1", Claim: "first"}))
	require.NoError(t, s.Record(ctx, Fact{ProjectID: "p1", SourceEventID: "e2", Claim: "second"}))

	facts, err := s.All(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "first", facts[0].Claim)
	assert.Equal(t, "second", facts[1].Claim)
}

func TestAll_EmptyForUnknownProject(t *testing.T) {
	s := newStore()
	facts, err := s.All(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestTracesToEvent(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, Fact{ProjectID: "p1", SourceEventID: "e1", Claim: "grounded"}))

	ok, err := s.TracesToEvent(ctx, "p1", "e1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TracesToEvent(ctx, "p1", "e-missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
