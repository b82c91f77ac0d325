// Package substrate defines the facade every other component uses to reach
// the shared KV+stream store, plus two implementations: a production one
// backed by NATS JetStream and an in-memory fake used by tests (Design
// Note 9: "the KV+stream substrate should be an interface with one
// production implementation ... and one in-memory fake").
//
// All other components in this repository depend only on the Substrate
// interface, never on NATS or any concrete store directly.
package substrate

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by read operations when a key or entry does not exist.
var ErrNotFound = errors.New("substrate: not found")

// StreamEntry is one delivered stream record.
type StreamEntry struct {
	// ID is an opaque, per-stream monotonically increasing identifier.
	ID string
	// Fields is the raw set of fields carried on the entry (the envelope
	// codec stores the encoded envelope under envelope.FieldName; DLQ
	// entries store it under dlq.FieldName).
	Fields map[string]string
	// DeliveryCount is how many times this entry has been delivered to
	// this consumer group, including this delivery.
	DeliveryCount int64
}

// PendingEntry describes one entry a consumer group has delivered but not
// yet acknowledged.
type PendingEntry struct {
	ID            string
	Consumer      string
	Idle          time.Duration
	DeliveryCount int64
}

// Substrate is the thin facade over the shared KV+stream store described by
// component C3. Implementations must be safe for concurrent use.
type Substrate interface {
	// --- streams ---

	// EnsureGroup creates the named consumer group for stream if it does
	// not already exist. Calling it repeatedly is a no-op.
	EnsureGroup(ctx context.Context, stream, group string) error

	// Append appends a new entry to stream and returns its id.
	Append(ctx context.Context, stream string, fields map[string]string) (string, error)

	// ReadGroup blocks up to block for up to count new (">") entries for
	// group on stream, delivered to consumer. A block of 0 means "return
	// immediately with whatever is available". Returns an empty slice,
	// not an error, when nothing is available before the deadline.
	ReadGroup(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]StreamEntry, error)

	// Pending lists entries delivered to group on stream whose idle time
	// is >= idleGE, up to count entries, ordered by id.
	Pending(ctx context.Context, stream, group string, idleGE time.Duration, count int) ([]PendingEntry, error)

	// Claim transfers ownership of the named pending ids to consumer,
	// resetting their idle timer and incrementing delivery count, and
	// returns their current fields.
	Claim(ctx context.Context, stream, group, consumer string, ids []string) ([]StreamEntry, error)

	// Ack acknowledges entries for group on stream, removing them from
	// the pending entries list.
	Ack(ctx context.Context, stream, group string, ids ...string) error

	// --- key/value ---

	// SetNX sets key to value with the given ttl iff key is absent,
	// returning true when the set happened. ttl <= 0 means no expiry.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Set unconditionally sets key to value with no expiry.
	Set(ctx context.Context, key, value string) error

	// Get returns the value at key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Del unconditionally deletes key. Deleting an absent key is a no-op.
	Del(ctx context.Context, key string) error

	// Incr atomically increments the integer stored at key (default 0)
	// and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	// --- sets (used for backlog/question indices and the project registry) ---

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	// SMembers returns the set's members sorted lexically for deterministic
	// listings, per C8/C9's "listings are sorted by id for determinism".
	SMembers(ctx context.Context, key string) ([]string, error)

	// --- lists (used by the fact ledger, an append-only log per project) ---

	RPush(ctx context.Context, key, value string) error
	LRange(ctx context.Context, key string, start, stop int) ([]string, error)
}
