package orchestrator

import (
	"context"
	"errors"

	"github.com/BourguignonSimon/eventflow/internal/envelope"
	"github.com/BourguignonSimon/eventflow/internal/question"
	"github.com/BourguignonSimon/eventflow/internal/statemachine"
	"github.com/BourguignonSimon/eventflow/internal/streamerr"
)

// handleAnswer implements the human approval gate (SPEC_FULL.md §7): it
// validates a submitted answer against the question's declared
// expected_answer_type before accepting it, closes the question exactly
// once (I5, R3), unblocks the backlog item, and attempts dispatch.
func (r *Runtime) handleAnswer(ctx context.Context, env envelope.Envelope) error {
	var payload UserAnswerSubmittedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return reasoning("decode_answer_payload", err)
	}

	q, err := r.questions.GetQuestion(ctx, payload.ProjectID, payload.QuestionID)
	if errors.Is(err, question.ErrNotFound) {
		return reasoning("answer_unknown_question", err)
	} else if err != nil {
		return reasoning("get_question", err)
	}

	if q.Status == question.StatusClosed {
		// Already answered; a replay or a second answer to the same
		// question. R3/I5: closing (and therefore accepting an answer)
		// happens exactly once.
		return nil
	}

	if verr := question.ValidateAnswer(q, payload.Answer); verr != nil {
		if _, perr := r.publish(ctx, "CLARIFICATION.NEEDED", ClarificationNeededPayload{
			ProjectID:     payload.ProjectID,
			BacklogItemID: q.BacklogItemID,
			MissingFields: []string{"answer"},
		}, env.CorrelationID, env.EventID); perr != nil {
			return reasoning("publish_clarification_needed", perr)
		}
		return streamerr.New("validate_answer", streamerr.CategoryDataInsufficiency, verr)
	}

	if _, err := r.questions.SetAnswer(ctx, payload.ProjectID, payload.QuestionID, payload.Answer); err != nil {
		return reasoning("set_answer", err)
	}

	item, err := r.backlog.GetItem(ctx, payload.ProjectID, q.BacklogItemID)
	if err != nil {
		return reasoning("get_backlog_item", err)
	}
	if item.Status != statemachine.Blocked {
		// Nothing left to unblock (e.g. the item already moved on).
		return nil
	}
	if err := statemachine.AssertTransition(statemachine.Blocked, statemachine.Ready); err != nil {
		return illegalTransition("unblock_backlog_item", err)
	}
	if _, err := r.backlog.SetStatus(ctx, payload.ProjectID, q.BacklogItemID, statemachine.Ready); err != nil {
		return reasoning("set_status_ready", err)
	}

	if _, err := r.publish(ctx, "BACKLOG.ITEM_UNBLOCKED", BacklogItemUnblockedPayload{
		ProjectID:     payload.ProjectID,
		BacklogItemID: q.BacklogItemID,
	}, env.CorrelationID, env.EventID); err != nil {
		return reasoning("publish_backlog_item_unblocked", err)
	}

	return r.dispatchReady(ctx, payload.ProjectID, env.CorrelationID, env.EventID)
}
