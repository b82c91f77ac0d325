package question

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

func newStore() *Store {
	return New(substrate.NewMemory(), "audit")
}

func TestCreate_IndexesAsOpenAndListed(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	q, err := s.Create(ctx, "p1", "item-1", "which region?", AnswerChoice, []string{"us", "eu"}, "corr-1")
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, q.Status)

	open, err := s.ListOpen(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{q.QuestionID}, open)

	all, err := s.ListAll(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{q.QuestionID}, all)
}

func TestClose_RemovesFromOpenIndexAndIsIdempotent(t *testing.T) {
	// I5: OPEN -> CLOSED exactly once; a second close is a no-op.
	s := newStore()
	ctx := context.Background()

	q, err := s.Create(ctx, "p1", "item-1", "how many?", AnswerNumber, nil, "corr-1")
	require.NoError(t, err)

	closed, err := s.Close(ctx, "p1", q.QuestionID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)

	open, err := s.ListOpen(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, open)

	again, err := s.Close(ctx, "p1", q.QuestionID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, again.Status)
}

func TestSetAnswer_StoresAnswerAndCloses(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	q, err := s.Create(ctx, "p1", "item-1", "which region?", AnswerChoice, []string{"us", "eu"}, "corr-1")
	require.NoError(t, err)

	_, err = s.SetAnswer(ctx, "p1", q.QuestionID, "eu")
	require.NoError(t, err)

	answer, err := s.GetAnswer(ctx, q.QuestionID)
	require.NoError(t, err)
	assert.Equal(t, "eu", answer)

	got, err := s.GetQuestion(ctx, "p1", q.QuestionID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, got.Status)
}

func TestGetAnswer_NotFoundBeforeSubmission(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	q, err := s.Create(ctx, "p1", "item-1", "how many?", AnswerNumber, nil, "corr-1")
	require.NoError(t, err)

	_, err = s.GetAnswer(ctx, q.QuestionID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetQuestion_NotFound(t *testing.T) {
	s := newStore()
	_, err := s.GetQuestion(context.Background(), "p1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateAnswer_Text(t *testing.T) {
	q := Question{ExpectedAnswerType: AnswerText}
	assert.NoError(t, ValidateAnswer(q, "anything goes"))
	assert.Error(t, ValidateAnswer(q, ""))
	assert.Error(t, ValidateAnswer(q, "   "))
}

func TestValidateAnswer_Number(t *testing.T) {
	q := Question{ExpectedAnswerType: AnswerNumber}
	assert.NoError(t, ValidateAnswer(q, "42"))
	assert.NoError(t, ValidateAnswer(q, "3.14"))
	assert.Error(t, ValidateAnswer(q, "not a number"))
}

func TestValidateAnswer_Choice(t *testing.T) {
	q := Question{ExpectedAnswerType: AnswerChoice, Choices: []string{"us", "eu"}}
	assert.NoError(t, ValidateAnswer(q, "us"))
	assert.Error(t, ValidateAnswer(q, "apac"))
}

func TestValidateAnswer_ChoiceWithoutDeclaredChoicesAcceptsAnyNonEmpty(t *testing.T) {
	q := Question{ExpectedAnswerType: AnswerChoice}
	assert.NoError(t, ValidateAnswer(q, "anything"))
}

func TestValidateAnswer_UnknownType(t *testing.T) {
	q := Question{ExpectedAnswerType: "bogus"}
	assert.Error(t, ValidateAnswer(q, "x"))
}
