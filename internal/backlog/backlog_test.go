package backlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BourguignonSimon/eventflow/internal/statemachine"
	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

func newStore() *Store {
	return New(substrate.NewMemory(), "audit")
}

func TestPutItem_IndexesByProjectStatusAndRegistry(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	item := Item{ProjectID: "p1", ItemID: "i1", ItemType: GenericTask, Status: statemachine.Ready}
	require.NoError(t, s.PutItem(ctx, item))

	ids, err := s.ListItemIDs(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"i1"}, ids)

	ready, err := s.ListItemIDsByStatus(ctx, "p1", statemachine.Ready)
	require.NoError(t, err)
	assert.Equal(t, []string{"i1"}, ready)

	projects, err := s.ListProjectIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, projects)
}

func TestPutItem_StatusChangeMovesBetweenIndicesAtomically(t *testing.T) {
	// I2: exactly one status index at a time.
	s := newStore()
	ctx := context.Background()

	require.NoError(t, s.PutItem(ctx, Item{ProjectID: "p1", ItemID: "i1", Status: statemachine.Ready}))
	_, err := s.SetStatus(ctx, "p1", "i1", statemachine.InProgress)
	require.NoError(t, err)

	ready, err := s.ListItemIDsByStatus(ctx, "p1", statemachine.Ready)
	require.NoError(t, err)
	assert.Empty(t, ready)

	inProgress, err := s.ListItemIDsByStatus(ctx, "p1", statemachine.InProgress)
	require.NoError(t, err)
	assert.Equal(t, []string{"i1"}, inProgress)
}

func TestSetStatus_NotFound(t *testing.T) {
	s := newStore()
	_, err := s.SetStatus(context.Background(), "p1", "missing", statemachine.Ready)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListItemIDs_SortedForDeterminism(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	require.NoError(t, s.PutItem(ctx, Item{ProjectID: "p1", ItemID: "zzz", Status: statemachine.Ready}))
	require.NoError(t, s.PutItem(ctx, Item{ProjectID: "p1", ItemID: "aaa", Status: statemachine.Ready}))

	ids, err := s.ListItemIDs(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "zzz"}, ids)
}
