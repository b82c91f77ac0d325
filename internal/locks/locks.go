// Package locks implements named TTL leases (C5) used by the orchestrator
// to serialize dispatch of a given backlog item. These are advisory,
// TTL-protected leases, not mutexes: handlers must stay idempotent
// regardless of whether they believe they hold a lease (Design Note
// "Per-entity locks as leases").
package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

// DefaultTTL bounds the exposure window if a lock holder crashes mid-section.
const DefaultTTL = 120 * time.Second

// Service acquires and releases named leases.
type Service struct {
	store  substrate.Substrate
	prefix string
}

// New constructs a lock Service. prefix namespaces lock keys, e.g. "audit:lock".
func New(store substrate.Substrate, prefix string) *Service {
	return &Service{store: store, prefix: prefix}
}

func (s *Service) key(name string) string {
	return fmt.Sprintf("%s:%s", s.prefix, name)
}

// Acquire attempts to take the named lease for ttl, returning true when it
// succeeded. A ttl <= 0 uses DefaultTTL.
func (s *Service) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ok, err := s.store.SetNX(ctx, s.key(name), "held", ttl)
	if err != nil {
		return false, fmt.Errorf("locks: acquire %s: %w", name, err)
	}
	return ok, nil
}

// Release unconditionally drops the named lease. Releasing a lease you
// don't hold (e.g. after it already expired and was reacquired by someone
// else) is a caller error the default runtime does not try to detect — the
// TTL alone bounds any resulting exposure.
func (s *Service) Release(ctx context.Context, name string) error {
	if err := s.store.Del(ctx, s.key(name)); err != nil {
		return fmt.Errorf("locks: release %s: %w", name, err)
	}
	return nil
}

// DispatchLockName returns the conventional lease name used to serialize
// dispatch of a backlog item.
func DispatchLockName(backlogItemID string) string {
	return "dispatch:backlog:" + backlogItemID
}
