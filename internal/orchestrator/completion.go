package orchestrator

import (
	"context"
	"errors"

	"github.com/BourguignonSimon/eventflow/internal/backlog"
	"github.com/BourguignonSimon/eventflow/internal/dod"
	"github.com/BourguignonSimon/eventflow/internal/envelope"
	"github.com/BourguignonSimon/eventflow/internal/question"
	"github.com/BourguignonSimon/eventflow/internal/statemachine"
)

// handleCompletion applies DoD gating (SPEC_FULL.md §7): it evaluates the
// worker's reported evidence and moves the item to DONE, BLOCKED (raising
// a synthetic clarification), or FAILED accordingly.
func (r *Runtime) handleCompletion(ctx context.Context, env envelope.Envelope) error {
	var payload WorkItemCompletedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return reasoning("decode_completed_payload", err)
	}

	item, err := r.backlog.GetItem(ctx, payload.ProjectID, payload.BacklogItemID)
	if errors.Is(err, backlog.ErrNotFound) {
		return reasoning("completion_unknown_item", err)
	} else if err != nil {
		return reasoning("get_item_for_completion", err)
	}
	if item.Status != statemachine.InProgress {
		// Already resolved by a prior (possibly duplicate) completion.
		return nil
	}

	verdict := r.dod.Evaluate(item.ItemType, item.WorkContext, payload.Evidence)

	switch verdict.Status {
	case statemachine.Done:
		if err := statemachine.AssertTransition(statemachine.InProgress, statemachine.Done); err != nil {
			return illegalTransition("complete_item", err)
		}
		if _, err := r.backlog.SetStatus(ctx, payload.ProjectID, payload.BacklogItemID, statemachine.Done); err != nil {
			return reasoning("set_status_done", err)
		}
		return nil

	case statemachine.Blocked:
		if err := statemachine.AssertTransition(statemachine.InProgress, statemachine.Blocked); err != nil {
			return illegalTransition("block_item_on_dod", err)
		}
		if _, err := r.backlog.SetStatus(ctx, payload.ProjectID, payload.BacklogItemID, statemachine.Blocked); err != nil {
			return reasoning("set_status_blocked", err)
		}
		if verdict.ClarificationText == "" {
			return nil
		}
		q, err := r.questions.Create(ctx, payload.ProjectID, payload.BacklogItemID,
			verdict.ClarificationText, question.AnswerText, nil, env.CorrelationID)
		if err != nil {
			return reasoning("create_dod_question", err)
		}
		if _, err := r.publish(ctx, "QUESTION.CREATED", QuestionCreatedPayload{
			ProjectID:          payload.ProjectID,
			QuestionID:         q.QuestionID,
			BacklogItemID:      payload.BacklogItemID,
			QuestionText:       q.QuestionText,
			ExpectedAnswerType: string(q.ExpectedAnswerType),
		}, env.CorrelationID, env.EventID); err != nil {
			return reasoning("publish_question_created", err)
		}
		_, err = r.publish(ctx, "CLARIFICATION.NEEDED", ClarificationNeededPayload{
			ProjectID:     payload.ProjectID,
			BacklogItemID: payload.BacklogItemID,
			MissingFields: []string{"dod_evidence"},
		}, env.CorrelationID, env.EventID)
		if err != nil {
			return reasoning("publish_clarification_needed", err)
		}
		return nil

	case statemachine.Failed:
		if err := statemachine.AssertTransition(statemachine.InProgress, statemachine.Failed); err != nil {
			return illegalTransition("fail_item_on_dod", err)
		}
		if _, err := r.backlog.SetStatus(ctx, payload.ProjectID, payload.BacklogItemID, statemachine.Failed); err != nil {
			return reasoning("set_status_failed", err)
		}
		_, err := r.publish(ctx, "WORK.ITEM_FAILED", WorkItemFailedPayload{
			ProjectID:     payload.ProjectID,
			BacklogItemID: payload.BacklogItemID,
			Reason:        "definition of done rejected evidence",
			Category:      "reasoning",
		}, env.CorrelationID, env.EventID)
		if err != nil {
			return reasoning("publish_work_item_failed", err)
		}
		return nil

	default:
		return reasoning("unknown_dod_verdict", errUnknownVerdict(verdict))
	}
}

// handleWorkerFailure moves an item straight to FAILED when a worker
// itself reports a terminal failure (as opposed to a DoD rejection).
func (r *Runtime) handleWorkerFailure(ctx context.Context, env envelope.Envelope) error {
	var payload WorkItemFailedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return reasoning("decode_failed_payload", err)
	}

	item, err := r.backlog.GetItem(ctx, payload.ProjectID, payload.BacklogItemID)
	if errors.Is(err, backlog.ErrNotFound) {
		return reasoning("failure_unknown_item", err)
	} else if err != nil {
		return reasoning("get_item_for_failure", err)
	}
	if statemachine.IsTerminal(item.Status) {
		return nil
	}

	if err := statemachine.AssertTransition(item.Status, statemachine.Failed); err != nil {
		return illegalTransition("apply_worker_failure", err)
	}
	if _, err := r.backlog.SetStatus(ctx, payload.ProjectID, payload.BacklogItemID, statemachine.Failed); err != nil {
		return reasoning("set_status_failed_from_worker", err)
	}
	return nil
}

func errUnknownVerdict(v dod.Verdict) error {
	return &unknownVerdictError{status: v.Status}
}

type unknownVerdictError struct {
	status statemachine.Status
}

func (e *unknownVerdictError) Error() string {
	return "orchestrator: dod evaluator returned unrecognized status " + string(e.status)
}
