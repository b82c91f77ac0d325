package orchestrator

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/BourguignonSimon/eventflow/internal/backlog"
	"github.com/BourguignonSimon/eventflow/internal/envelope"
	"github.com/BourguignonSimon/eventflow/internal/question"
	"github.com/BourguignonSimon/eventflow/internal/statemachine"
)

// handleIntake turns PROJECT.INITIAL_REQUEST_RECEIVED into either a READY
// backlog item (dispatched immediately) or a BLOCKED one accompanied by a
// clarification question, per the ambiguity rule's verdict.
func (r *Runtime) handleIntake(ctx context.Context, env envelope.Envelope) error {
	var payload IntakePayload
	if err := env.DecodePayload(&payload); err != nil {
		return reasoning("decode_intake_payload", err)
	}

	itemID := uuid.NewString()
	workContext := map[string]any{"request_text": payload.RequestText}

	missingFields, unambiguous := r.ambiguity.Detect(payload.RequestText)
	if !unambiguous {
		item := backlog.Item{
			ProjectID:   payload.ProjectID,
			ItemID:      itemID,
			ItemType:    backlog.GenericTask,
			Status:      statemachine.Blocked,
			WorkContext: workContext,
		}
		if err := r.backlog.PutItem(ctx, item); err != nil {
			return reasoning("put_blocked_item", err)
		}

		q, err := r.questions.Create(ctx, payload.ProjectID, itemID,
			"Please clarify: "+strings.Join(missingFields, ", "), question.AnswerText, nil, env.CorrelationID)
		if err != nil {
			return reasoning("create_question", err)
		}

		if _, err := r.publish(ctx, "QUESTION.CREATED", QuestionCreatedPayload{
			ProjectID:          payload.ProjectID,
			QuestionID:         q.QuestionID,
			BacklogItemID:      itemID,
			QuestionText:       q.QuestionText,
			ExpectedAnswerType: string(q.ExpectedAnswerType),
		}, env.CorrelationID, env.EventID); err != nil {
			return reasoning("publish_question_created", err)
		}
		if _, err := r.publish(ctx, "CLARIFICATION.NEEDED", ClarificationNeededPayload{
			ProjectID:     payload.ProjectID,
			BacklogItemID: itemID,
			MissingFields: missingFields,
		}, env.CorrelationID, env.EventID); err != nil {
			return reasoning("publish_clarification_needed", err)
		}
		return nil
	}

	item := backlog.Item{
		ProjectID:   payload.ProjectID,
		ItemID:      itemID,
		ItemType:    backlog.GenericTask,
		Status:      statemachine.Ready,
		WorkContext: workContext,
	}
	if err := r.backlog.PutItem(ctx, item); err != nil {
		return reasoning("put_ready_item", err)
	}

	return r.dispatchReady(ctx, payload.ProjectID, env.CorrelationID, env.EventID)
}
