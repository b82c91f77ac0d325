package main

import (
	"context"
	"fmt"

	"github.com/BourguignonSimon/eventflow/internal/worker"
)

// passthroughReasoner is the default Reasoner wired by this binary. Actual
// per-domain computation (time/cost/friction/scenario arithmetic, LLM
// calls) is explicitly out of this repo's scope; it satisfies the worker
// protocol by echoing work_context back inside the deliverable, returning
// a one-line summary as evidence, and recording a ledger claim that names
// the dispatched item. A deployment
// with real per-domain logic supplies its own worker.Reasoner in place of
// this one.
func passthroughReasoner(agentTarget string) worker.Reasoner {
	return worker.ReasonerFunc(func(ctx context.Context, req worker.Request) (worker.Result, error) {
		return worker.Result{
			Deliverable: map[string]any{
				"agent_target": agentTarget,
				"item_type":    req.ItemType,
				"work_context": req.WorkContext,
			},
			Evidence: map[string]any{
				"summary": fmt.Sprintf("%s processed %s", agentTarget, req.BacklogItemID),
			},
			Claim: fmt.Sprintf("%s completed backlog item %s", agentTarget, req.BacklogItemID),
		}, nil
	})
}
