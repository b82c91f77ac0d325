package substrate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-memory Substrate used by tests and local development. It
// reproduces enough of Redis Stream semantics (consumer groups, pending
// entries, idle-based reclaim) for the runtime and stores to be exercised
// without a live NATS server.
type Memory struct {
	mu sync.Mutex

	streams map[string]*memStream
	kv      map[string]*memValue
	sets    map[string]map[string]struct{}
	lists   map[string][]string

	// clock is overridable in tests that need to control idle time.
	clock func() time.Time
}

type memValue struct {
	data      string
	expiresAt time.Time // zero means no expiry
}

type memEntry struct {
	id     string
	fields map[string]string
}

type memGroup struct {
	lastDelivered int // index into stream.entries, exclusive upper bound already delivered as "new"
	pending       map[string]*memPending
}

type memPending struct {
	entryIdx      int
	consumer      string
	deliveredAt   time.Time
	deliveryCount int64
}

type memStream struct {
	entries []memEntry
	groups  map[string]*memGroup
	nextSeq int64
}

// NewMemory constructs an empty in-memory substrate.
func NewMemory() *Memory {
	return &Memory{
		streams: make(map[string]*memStream),
		kv:      make(map[string]*memValue),
		sets:    make(map[string]map[string]struct{}),
		lists:   make(map[string][]string),
		clock:   time.Now,
	}
}

func (m *Memory) now() time.Time { return m.clock() }

func (m *Memory) stream(name string) *memStream {
	s, ok := m.streams[name]
	if !ok {
		s = &memStream{groups: make(map[string]*memGroup)}
		m.streams[name] = s
	}
	return s
}

// EnsureGroup implements Substrate.
func (m *Memory) EnsureGroup(_ context.Context, streamName, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(streamName)
	if _, ok := s.groups[group]; !ok {
		s.groups[group] = &memGroup{pending: make(map[string]*memPending)}
	}
	return nil
}

// Append implements Substrate.
func (m *Memory) Append(_ context.Context, streamName string, fields map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(streamName)
	s.nextSeq++
	id := fmt.Sprintf("%d-0", s.nextSeq)

	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	s.entries = append(s.entries, memEntry{id: id, fields: cp})
	return id, nil
}

// ReadGroup implements Substrate. block is accepted for interface
// compatibility but the in-memory fake never actually sleeps: callers that
// need blocking semantics under test control a fake clock and poll.
func (m *Memory) ReadGroup(_ context.Context, streamName, group, consumer string, count int, _ time.Duration) ([]StreamEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(streamName)
	g, ok := s.groups[group]
	if !ok {
		g = &memGroup{pending: make(map[string]*memPending)}
		s.groups[group] = g
	}

	var out []StreamEntry
	for g.lastDelivered < len(s.entries) && len(out) < count {
		idx := g.lastDelivered
		entry := s.entries[idx]
		g.pending[entry.id] = &memPending{
			entryIdx:      idx,
			consumer:      consumer,
			deliveredAt:   m.now(),
			deliveryCount: 1,
		}
		out = append(out, StreamEntry{ID: entry.id, Fields: cloneFields(entry.fields), DeliveryCount: 1})
		g.lastDelivered++
	}
	return out, nil
}

// Pending implements Substrate.
func (m *Memory) Pending(_ context.Context, streamName, group string, idleGE time.Duration, count int) ([]PendingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(streamName)
	g, ok := s.groups[group]
	if !ok {
		return nil, nil
	}

	var ids []string
	for id := range g.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []PendingEntry
	now := m.now()
	for _, id := range ids {
		p := g.pending[id]
		idle := now.Sub(p.deliveredAt)
		if idle >= idleGE {
			out = append(out, PendingEntry{ID: id, Consumer: p.consumer, Idle: idle, DeliveryCount: p.deliveryCount})
			if len(out) >= count {
				break
			}
		}
	}
	return out, nil
}

// Claim implements Substrate.
func (m *Memory) Claim(_ context.Context, streamName, group, consumer string, ids []string) ([]StreamEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(streamName)
	g, ok := s.groups[group]
	if !ok {
		return nil, nil
	}

	var out []StreamEntry
	for _, id := range ids {
		p, ok := g.pending[id]
		if !ok {
			continue
		}
		p.consumer = consumer
		p.deliveredAt = m.now()
		p.deliveryCount++
		entry := s.entries[p.entryIdx]
		out = append(out, StreamEntry{ID: entry.id, Fields: cloneFields(entry.fields), DeliveryCount: p.deliveryCount})
	}
	return out, nil
}

// Ack implements Substrate.
func (m *Memory) Ack(_ context.Context, streamName, group string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(streamName)
	g, ok := s.groups[group]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(g.pending, id)
	}
	return nil
}

// SetNX implements Substrate.
func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.kv[key]; ok && !m.expired(v) {
		return false, nil
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}
	m.kv[key] = &memValue{data: value, expiresAt: expiresAt}
	return true, nil
}

// Set implements Substrate.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.kv[key] = &memValue{data: value}
	return nil
}

// Get implements Substrate.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.kv[key]
	if !ok || m.expired(v) {
		return "", false, nil
	}
	return v.data, true, nil
}

// Del implements Substrate.
func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.kv, key)
	return nil
}

// Incr implements Substrate.
func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	if v, ok := m.kv[key]; ok && !m.expired(v) {
		parsed, err := strconv.ParseInt(v.data, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("substrate: incr non-integer value at %q", key)
		}
		n = parsed
	}
	n++
	m.kv[key] = &memValue{data: strconv.FormatInt(n, 10)}
	return n, nil
}

func (m *Memory) expired(v *memValue) bool {
	return !v.expiresAt.IsZero() && m.now().After(v.expiresAt)
}

// SAdd implements Substrate.
func (m *Memory) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, mem := range members {
		set[mem] = struct{}{}
	}
	return nil
}

// SRem implements Substrate.
func (m *Memory) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[key]
	if !ok {
		return nil
	}
	for _, mem := range members {
		delete(set, mem)
	}
	return nil
}

// SMembers implements Substrate.
func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[key]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for mem := range set {
		out = append(out, mem)
	}
	sort.Strings(out)
	return out, nil
}

// RPush implements Substrate.
func (m *Memory) RPush(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lists[key] = append(m.lists[key], value)
	return nil
}

// LRange implements Substrate. Negative stop means "to the end", mirroring
// the -1 convention used by list-oriented KV stores.
func (m *Memory) LRange(_ context.Context, key string, start, stop int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.lists[key]
	if len(list) == 0 {
		return nil, nil
	}
	if stop < 0 || stop >= len(list) {
		stop = len(list) - 1
	}
	if start < 0 {
		start = 0
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

// SetClock overrides the substrate's time source. Intended for tests that
// exercise idle-time reclaim boundaries (B1).
func (m *Memory) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

func cloneFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
