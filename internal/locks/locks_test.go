package locks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

func TestAcquire_SecondCallerBlocked(t *testing.T) {
	// S5: two dispatchers observing the same item, only one acquires.
	svc := New(substrate.NewMemory(), "audit:lock")
	ctx := context.Background()

	ok, err := svc.Acquire(ctx, DispatchLockName("item-1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Acquire(ctx, DispatchLockName("item-1"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRelease_AllowsReacquire(t *testing.T) {
	svc := New(substrate.NewMemory(), "audit:lock")
	ctx := context.Background()

	name := DispatchLockName("item-1")
	ok, err := svc.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.Release(ctx, name))

	ok, err = svc.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_AbsentLockIsNoOp(t *testing.T) {
	svc := New(substrate.NewMemory(), "audit:lock")
	require.NoError(t, svc.Release(context.Background(), DispatchLockName("missing")))
}
