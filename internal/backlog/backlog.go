// Package backlog implements the Backlog Store (C8): it persists backlog
// items keyed by (project_id, item_id) with a per-project all-items index,
// a per-status index, and a project registry, following the key layout in
// spec §4.7.
package backlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BourguignonSimon/eventflow/internal/statemachine"
	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

// ItemType enumerates the recognized backlog item kinds. New types are a
// matter of registering a DoD evaluator (internal/dod), not a change here.
type ItemType string

const (
	GenericTask ItemType = "GENERIC_TASK"
	AgentTask   ItemType = "AGENT_TASK"
)

// Item is one unit of work owned by a project.
type Item struct {
	ProjectID   string              `json:"project_id"`
	ItemID      string              `json:"item_id"`
	ItemType    ItemType            `json:"item_type"`
	AgentTarget string              `json:"agent_target,omitempty"`
	Status      statemachine.Status `json:"status"`
	WorkContext map[string]any      `json:"work_context,omitempty"`
	Evidence    map[string]any      `json:"evidence,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ErrNotFound is returned by operations addressing an item that does not exist.
var ErrNotFound = substrate.ErrNotFound

// Store persists Items via the substrate facade.
type Store struct {
	store  substrate.Substrate
	prefix string
}

// New constructs a Store. prefix namespaces keys, e.g. "audit".
func New(store substrate.Substrate, prefix string) *Store {
	return &Store{store: store, prefix: prefix}
}

func (s *Store) itemKey(projectID, itemID string) string {
	return fmt.Sprintf("%s:backlog:%s:%s", s.prefix, projectID, itemID)
}

func (s *Store) indexKey(projectID string) string {
	return fmt.Sprintf("%s:backlog_index:%s", s.prefix, projectID)
}

func (s *Store) statusKey(projectID string, status statemachine.Status) string {
	return fmt.Sprintf("%s:backlog_status:%s:%s", s.prefix, projectID, status)
}

func (s *Store) projectsKey() string {
	return fmt.Sprintf("%s:projects:index", s.prefix)
}

// PutItem upserts item: adds it to the all-items and current-status
// indices, removes it from any previous status index, and ensures its
// project is registered. Old-status lookup and new-status write are both
// applied before returning, per I2's single logical update.
func (s *Store) PutItem(ctx context.Context, item Item) error {
	var previous *Item
	if existing, err := s.GetItem(ctx, item.ProjectID, item.ItemID); err == nil {
		previous = &existing
	} else if err != ErrNotFound {
		return err
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("backlog: marshal item: %w", err)
	}
	if err := s.store.Set(ctx, s.itemKey(item.ProjectID, item.ItemID), string(data)); err != nil {
		return fmt.Errorf("backlog: put item: %w", err)
	}

	if err := s.store.SAdd(ctx, s.indexKey(item.ProjectID), item.ItemID); err != nil {
		return fmt.Errorf("backlog: index item: %w", err)
	}
	if err := s.store.SAdd(ctx, s.projectsKey(), item.ProjectID); err != nil {
		return fmt.Errorf("backlog: register project: %w", err)
	}

	if previous != nil && previous.Status != item.Status {
		if err := s.store.SRem(ctx, s.statusKey(item.ProjectID, previous.Status), item.ItemID); err != nil {
			return fmt.Errorf("backlog: unindex previous status: %w", err)
		}
	}
	if err := s.store.SAdd(ctx, s.statusKey(item.ProjectID, item.Status), item.ItemID); err != nil {
		return fmt.Errorf("backlog: index status: %w", err)
	}

	return nil
}

// SetStatus loads item (project_id, item_id), changes its status, and
// reindexes it. It does not validate the transition against the state
// machine — callers (the orchestrator) call statemachine.AssertTransition
// first and only call SetStatus once the transition is known-legal.
func (s *Store) SetStatus(ctx context.Context, projectID, itemID string, newStatus statemachine.Status) (Item, error) {
	item, err := s.GetItem(ctx, projectID, itemID)
	if err != nil {
		return Item{}, err
	}
	item.Status = newStatus
	if err := s.PutItem(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// GetItem returns the item at (project_id, item_id), or ErrNotFound.
func (s *Store) GetItem(ctx context.Context, projectID, itemID string) (Item, error) {
	raw, ok, err := s.store.Get(ctx, s.itemKey(projectID, itemID))
	if err != nil {
		return Item{}, fmt.Errorf("backlog: get item: %w", err)
	}
	if !ok {
		return Item{}, ErrNotFound
	}
	var item Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return Item{}, fmt.Errorf("backlog: decode item: %w", err)
	}
	return item, nil
}

// ListItemIDs returns every item id registered for projectID, sorted.
func (s *Store) ListItemIDs(ctx context.Context, projectID string) ([]string, error) {
	ids, err := s.store.SMembers(ctx, s.indexKey(projectID))
	if err != nil {
		return nil, fmt.Errorf("backlog: list item ids: %w", err)
	}
	return ids, nil
}

// ListItemIDsByStatus returns the item ids for projectID currently in
// status, sorted.
func (s *Store) ListItemIDsByStatus(ctx context.Context, projectID string, status statemachine.Status) ([]string, error) {
	ids, err := s.store.SMembers(ctx, s.statusKey(projectID, status))
	if err != nil {
		return nil, fmt.Errorf("backlog: list item ids by status: %w", err)
	}
	return ids, nil
}

// ListProjectIDs returns every project id with at least one backlog item, sorted.
func (s *Store) ListProjectIDs(ctx context.Context) ([]string, error) {
	ids, err := s.store.SMembers(ctx, s.projectsKey())
	if err != nil {
		return nil, fmt.Errorf("backlog: list project ids: %w", err)
	}
	return ids, nil
}
