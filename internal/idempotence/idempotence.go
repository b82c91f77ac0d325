// Package idempotence implements the per-(consumer_group, event_id)
// once-only marker (C4) that lets the stream runtime absorb at-least-once
// delivery duplicates.
package idempotence

import (
	"context"
	"fmt"
	"time"

	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

// DefaultTTL is the recommended marker TTL: the longest expected replay
// window, per the spec's "default 24h" guidance.
const DefaultTTL = 24 * time.Hour

// Guard marks (group, event_id) pairs as processed.
type Guard struct {
	store  substrate.Substrate
	prefix string
}

// New constructs a Guard. prefix namespaces idempotence keys, e.g.
// "audit:idemp".
func New(store substrate.Substrate, prefix string) *Guard {
	return &Guard{store: store, prefix: prefix}
}

func (g *Guard) key(group, eventID string) string {
	return fmt.Sprintf("%s:%s:%s", g.prefix, group, eventID)
}

// MarkIfNew atomically sets the marker for (group, eventID) with ttl and
// returns true exactly the first time it is called for that pair within the
// TTL window (I1). Callers mark once an event has reached a terminal
// outcome (handled or quarantined) — not before dispatching to the
// handler, since a handler that fails and retries must be allowed to run
// again for the same event_id before it is marked done.
func (g *Guard) MarkIfNew(ctx context.Context, group, eventID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ok, err := g.store.SetNX(ctx, g.key(group, eventID), time.Now().UTC().Format(time.RFC3339), ttl)
	if err != nil {
		return false, fmt.Errorf("idempotence: mark %s/%s: %w", group, eventID, err)
	}
	return ok, nil
}

// IsMarked reports whether (group, eventID) has already been marked
// processed, without itself marking it — the non-consuming peek used
// before dispatching to a handler.
func (g *Guard) IsMarked(ctx context.Context, group, eventID string) (bool, error) {
	_, ok, err := g.store.Get(ctx, g.key(group, eventID))
	if err != nil {
		return false, fmt.Errorf("idempotence: check %s/%s: %w", group, eventID, err)
	}
	return ok, nil
}
