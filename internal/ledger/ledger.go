// Package ledger implements the fact ledger supplement (SPEC_FULL.md §7,
// core/fact_ledger.py): an append-only record of claims, each traceable to
// the event that grounded it, kept per project. Workers append a Fact
// alongside DELIVERABLE.PUBLISHED; TracesToEvent checks whether a claim
// traces to an event (tests/test_fact_ledger_integrity.py,
// test_grounding.py). The DoD evaluators in internal/dod do not read it.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

// Fact is one claim recorded against a project, grounded on the event
// that produced it.
type Fact struct {
	ProjectID     string    `json:"project_id"`
	SourceEventID string    `json:"source_event_id"`
	BacklogItemID string    `json:"backlog_item_id,omitempty"`
	Claim         string    `json:"claim"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Store appends and reads Facts via the substrate's list operations.
type Store struct {
	store  substrate.Substrate
	prefix string
}

// New constructs a Store. prefix namespaces keys, e.g. "audit".
func New(store substrate.Substrate, prefix string) *Store {
	return &Store{store: store, prefix: prefix}
}

func (s *Store) key(projectID string) string {
	return fmt.Sprintf("%s:ledger:%s", s.prefix, projectID)
}

// Record appends fact to projectID's ledger. RecordedAt is set if zero.
func (s *Store) Record(ctx context.Context, fact Fact) error {
	if fact.RecordedAt.IsZero() {
		fact.RecordedAt = time.Now().UTC()
	}
	data, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("ledger: marshal fact: %w", err)
	}
	if err := s.store.RPush(ctx, s.key(fact.ProjectID), string(data)); err != nil {
		return fmt.Errorf("ledger: record: %w", err)
	}
	return nil
}

// All returns every fact recorded for projectID, oldest first.
func (s *Store) All(ctx context.Context, projectID string) ([]Fact, error) {
	raws, err := s.store.LRange(ctx, s.key(projectID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("ledger: range: %w", err)
	}
	facts := make([]Fact, 0, len(raws))
	for _, raw := range raws {
		var f Fact
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return nil, fmt.Errorf("ledger: decode fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// TracesToEvent reports whether projectID's ledger contains at least one
// fact grounded on eventID. No component outside this package's tests calls
// it.
func (s *Store) TracesToEvent(ctx context.Context, projectID, eventID string) (bool, error) {
	facts, err := s.All(ctx, projectID)
	if err != nil {
		return false, err
	}
	for _, f := range facts {
		if f.SourceEventID == eventID {
			return true, nil
		}
	}
	return false, nil
}
