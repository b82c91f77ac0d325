package orchestrator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/BourguignonSimon/eventflow/internal/backlog"
	"github.com/BourguignonSimon/eventflow/internal/locks"
	"github.com/BourguignonSimon/eventflow/internal/statemachine"
)

// dispatchReady attempts to dispatch every READY item in projectID. A
// failure dispatching one item is logged and does not stop the others
// (S6: one poisoned item must not block the rest of the project).
func (r *Runtime) dispatchReady(ctx context.Context, projectID, correlationID, causationID string) error {
	ids, err := r.backlog.ListItemIDsByStatus(ctx, projectID, statemachine.Ready)
	if err != nil {
		return reasoning("list_ready_items", err)
	}
	for _, itemID := range ids {
		if err := r.dispatchItem(ctx, projectID, itemID, correlationID, causationID); err != nil {
			r.log.Error(ctx, "orchestrator: dispatch failed", zap.String("project_id", projectID),
				zap.String("backlog_item_id", itemID), zap.Error(err))
		}
	}
	return nil
}

// dispatchItem implements spec §4.10's dispatch algorithm exactly: acquire
// the item's lock, re-check it is still READY, assert and apply the
// READY -> IN_PROGRESS transition, emit WORK.ITEM_DISPATCHED, persist the
// new status, then release the lock (I4: the lock is held across the
// entire transition).
func (r *Runtime) dispatchItem(ctx context.Context, projectID, itemID, correlationID, causationID string) error {
	lockName := locks.DispatchLockName(itemID)
	held, err := r.locks.Acquire(ctx, lockName, r.lockTTL)
	if err != nil {
		return reasoning("acquire_dispatch_lock", err)
	}
	if !held {
		r.metrics.DispatchLockContended.Inc()
		return nil // S5: another consumer holds the lock; skip, don't retry in-loop
	}
	defer func() {
		if err := r.locks.Release(ctx, lockName); err != nil {
			r.log.Error(ctx, "orchestrator: lock release failed", zap.String("backlog_item_id", itemID), zap.Error(err))
		}
	}()

	item, err := r.backlog.GetItem(ctx, projectID, itemID)
	if errors.Is(err, backlog.ErrNotFound) {
		return nil
	} else if err != nil {
		return reasoning("get_item_for_dispatch", err)
	}
	if item.Status != statemachine.Ready {
		// Someone else already advanced it since we listed READY items.
		return nil
	}

	if err := statemachine.AssertTransition(statemachine.Ready, statemachine.InProgress); err != nil {
		return illegalTransition("dispatch_transition", err)
	}

	if _, err := r.publish(ctx, "WORK.ITEM_DISPATCHED", WorkItemDispatchedPayload{
		ProjectID:     projectID,
		BacklogItemID: itemID,
		ItemType:      string(item.ItemType),
		AgentTarget:   item.AgentTarget,
		WorkContext:   item.WorkContext,
	}, correlationID, causationID); err != nil {
		return reasoning("publish_work_item_dispatched", err)
	}

	if _, err := r.backlog.SetStatus(ctx, projectID, itemID, statemachine.InProgress); err != nil {
		return reasoning("set_status_in_progress", err)
	}

	return nil
}
