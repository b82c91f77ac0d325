package substrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetNX(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ok, err := m.SetNX(ctx, "lock:a", "holder-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetNX(ctx, "lock:a", "holder-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second SetNX on the same key must fail")

	val, present, err := m.Get(ctx, "lock:a")
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, "holder-1", val)
}

func TestMemory_SetNX_ExpiresAfterTTL(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	m.SetClock(func() time.Time { return now })

	ok, err := m.SetNX(ctx, "lock:a", "holder-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	m.SetClock(func() time.Time { return now })

	ok, err = m.SetNX(ctx, "lock:a", "holder-2", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired key should be reacquirable")
}

func TestMemory_ReadGroup_And_Ack(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Append(ctx, "s", map[string]string{"event": "1"})
	require.NoError(t, err)
	_, err = m.Append(ctx, "s", map[string]string{"event": "2"})
	require.NoError(t, err)

	require.NoError(t, m.EnsureGroup(ctx, "s", "g"))

	entries, err := m.ReadGroup(ctx, "s", "g", "c1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Nothing new left to read.
	more, err := m.ReadGroup(ctx, "s", "g", "c1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, more)

	require.NoError(t, m.Ack(ctx, "s", "g", ids(entries)...))
}

// ids extracts the entry ids for use with Ack in a single call.
func ids(entries []StreamEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestMemory_Pending_IdleBoundary(t *testing.T) {
	// B1: a pending entry with idle time equal to the threshold is
	// eligible for reclaim.
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	m.SetClock(func() time.Time { return now })

	_, err := m.Append(ctx, "s", map[string]string{"event": "1"})
	require.NoError(t, err)
	require.NoError(t, m.EnsureGroup(ctx, "s", "g"))

	_, err = m.ReadGroup(ctx, "s", "g", "c1", 10, 0)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	m.SetClock(func() time.Time { return now })

	pending, err := m.Pending(ctx, "s", "g", 30*time.Second, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "idle == threshold must be included")
	assert.Equal(t, "c1", pending[0].Consumer)

	claimed, err := m.Claim(ctx, "s", "g", "c2", []string{pending[0].ID})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, int64(2), claimed[0].DeliveryCount)
}

func TestMemory_SetOps(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SAdd(ctx, "idx", "b", "a", "c"))
	members, err := m.SMembers(ctx, "idx")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, members, "SMembers is sorted for deterministic listings")

	require.NoError(t, m.SRem(ctx, "idx", "b"))
	members, err = m.SMembers(ctx, "idx")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, members)
}

func TestMemory_ListOps(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.RPush(ctx, "l", "one"))
	require.NoError(t, m.RPush(ctx, "l", "two"))
	require.NoError(t, m.RPush(ctx, "l", "three"))

	all, err := m.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, all)
}

func TestMemory_Incr(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	n, err := m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
