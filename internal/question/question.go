// Package question implements the Question Store (C9): clarification
// questions raised against a backlog item, their OPEN/CLOSED lifecycle, and
// the submitted answers, per spec §3 and §4.8's key layout. It also carries
// the human approval gate supplement (SPEC_FULL.md §7,
// tests/test_human_approval_gate.py): ValidateAnswer rejects an answer that
// does not satisfy the question's declared expected_answer_type.
package question

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

// AnswerType is the constrained shape an answer must satisfy before the
// human approval gate accepts it.
type AnswerType string

const (
	AnswerText   AnswerType = "text"
	AnswerNumber AnswerType = "number"
	AnswerChoice AnswerType = "choice"
)

// Status is a question's OPEN/CLOSED lifecycle state.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Question is a clarification raised against a backlog item, keyed by
// (project_id, question_id).
type Question struct {
	ProjectID          string     `json:"project_id"`
	QuestionID         string     `json:"question_id"`
	BacklogItemID      string     `json:"backlog_item_id"`
	QuestionText       string     `json:"question_text"`
	ExpectedAnswerType AnswerType `json:"expected_answer_type"`
	Choices            []string   `json:"choices,omitempty"`
	Status             Status     `json:"status"`
	CorrelationID      string     `json:"correlation_id"`
	CreatedAt          time.Time  `json:"created_at"`
}

// ErrNotFound is returned by operations addressing a question or answer
// that does not exist.
var ErrNotFound = substrate.ErrNotFound

// Store persists Questions and their answers via the substrate facade.
type Store struct {
	store  substrate.Substrate
	prefix string
}

// New constructs a Store. prefix namespaces keys, e.g. "audit".
func New(store substrate.Substrate, prefix string) *Store {
	return &Store{store: store, prefix: prefix}
}

func (s *Store) questionKey(projectID, questionID string) string {
	return fmt.Sprintf("%s:question:%s:%s", s.prefix, projectID, questionID)
}

func (s *Store) indexKey(projectID string) string {
	return fmt.Sprintf("%s:question_index:%s", s.prefix, projectID)
}

func (s *Store) openKey(projectID string) string {
	return fmt.Sprintf("%s:question_open:%s", s.prefix, projectID)
}

func (s *Store) answerKey(questionID string) string {
	return fmt.Sprintf("%s:question_answer:%s", s.prefix, questionID)
}

// Create allocates a new OPEN question for backlogItemID and indexes it.
func (s *Store) Create(ctx context.Context, projectID, backlogItemID, questionText string, answerType AnswerType, choices []string, correlationID string) (Question, error) {
	q := Question{
		ProjectID:          projectID,
		QuestionID:         uuid.NewString(),
		BacklogItemID:      backlogItemID,
		QuestionText:       questionText,
		ExpectedAnswerType: answerType,
		Choices:            choices,
		Status:             StatusOpen,
		CorrelationID:      correlationID,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.put(ctx, q); err != nil {
		return Question{}, err
	}
	if err := s.store.SAdd(ctx, s.indexKey(projectID), q.QuestionID); err != nil {
		return Question{}, fmt.Errorf("question: index: %w", err)
	}
	if err := s.store.SAdd(ctx, s.openKey(projectID), q.QuestionID); err != nil {
		return Question{}, fmt.Errorf("question: index open: %w", err)
	}
	return q, nil
}

func (s *Store) put(ctx context.Context, q Question) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("question: marshal: %w", err)
	}
	if err := s.store.Set(ctx, s.questionKey(q.ProjectID, q.QuestionID), string(data)); err != nil {
		return fmt.Errorf("question: put: %w", err)
	}
	return nil
}

// Close marks questionID CLOSED and removes it from the open index. It is
// idempotent: closing an already-CLOSED question is a no-op (I5: OPEN to
// CLOSED exactly once, a second close must not re-fire any side effect).
func (s *Store) Close(ctx context.Context, projectID, questionID string) (Question, error) {
	q, err := s.GetQuestion(ctx, projectID, questionID)
	if err != nil {
		return Question{}, err
	}
	if q.Status == StatusClosed {
		return q, nil
	}
	q.Status = StatusClosed
	if err := s.put(ctx, q); err != nil {
		return Question{}, err
	}
	if err := s.store.SRem(ctx, s.openKey(projectID), questionID); err != nil {
		return Question{}, fmt.Errorf("question: unindex open: %w", err)
	}
	return q, nil
}

// SetAnswer records answer for questionID and closes the question. Callers
// must call ValidateAnswer first; SetAnswer itself does not validate.
func (s *Store) SetAnswer(ctx context.Context, projectID, questionID, answer string) (Question, error) {
	q, err := s.Close(ctx, projectID, questionID)
	if err != nil {
		return Question{}, err
	}
	if err := s.store.Set(ctx, s.answerKey(questionID), answer); err != nil {
		return Question{}, fmt.Errorf("question: set answer: %w", err)
	}
	return q, nil
}

// GetQuestion returns the question at (project_id, question_id), or ErrNotFound.
func (s *Store) GetQuestion(ctx context.Context, projectID, questionID string) (Question, error) {
	raw, ok, err := s.store.Get(ctx, s.questionKey(projectID, questionID))
	if err != nil {
		return Question{}, fmt.Errorf("question: get: %w", err)
	}
	if !ok {
		return Question{}, ErrNotFound
	}
	var q Question
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return Question{}, fmt.Errorf("question: decode: %w", err)
	}
	return q, nil
}

// GetAnswer returns the recorded answer for questionID, or ErrNotFound if
// no answer has been submitted yet.
func (s *Store) GetAnswer(ctx context.Context, questionID string) (string, error) {
	raw, ok, err := s.store.Get(ctx, s.answerKey(questionID))
	if err != nil {
		return "", fmt.Errorf("question: get answer: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	return raw, nil
}

// ListOpen returns the ids of every OPEN question for projectID, sorted.
func (s *Store) ListOpen(ctx context.Context, projectID string) ([]string, error) {
	ids, err := s.store.SMembers(ctx, s.openKey(projectID))
	if err != nil {
		return nil, fmt.Errorf("question: list open: %w", err)
	}
	return ids, nil
}

// ListAll returns the ids of every question ever created for projectID, sorted.
func (s *Store) ListAll(ctx context.Context, projectID string) ([]string, error) {
	ids, err := s.store.SMembers(ctx, s.indexKey(projectID))
	if err != nil {
		return nil, fmt.Errorf("question: list all: %w", err)
	}
	return ids, nil
}

// ValidateAnswer implements the human approval gate
// (tests/test_human_approval_gate.py): an answer must satisfy the
// question's declared expected_answer_type before the orchestrator accepts
// it as unblocking. A rejected answer is the caller's cue to re-surface
// CLARIFICATION.NEEDED rather than persist the answer.
func ValidateAnswer(q Question, answer string) error {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return fmt.Errorf("question: answer must not be empty")
	}
	switch q.ExpectedAnswerType {
	case AnswerNumber:
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return fmt.Errorf("question: answer %q is not a valid number", answer)
		}
	case AnswerChoice:
		if len(q.Choices) == 0 {
			return nil
		}
		for _, choice := range q.Choices {
			if trimmed == choice {
				return nil
			}
		}
		return fmt.Errorf("question: answer %q is not one of %v", answer, q.Choices)
	case AnswerText, "":
		// any non-empty string satisfies a free-text question.
	default:
		return fmt.Errorf("question: unknown expected_answer_type %q", q.ExpectedAnswerType)
	}
	return nil
}
