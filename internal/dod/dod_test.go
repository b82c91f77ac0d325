package dod

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BourguignonSimon/eventflow/internal/backlog"
	"github.com/BourguignonSimon/eventflow/internal/statemachine"
)

func TestGenericEvaluate_DoneByDefault(t *testing.T) {
	r := NewRegistry()
	v := r.Evaluate(backlog.GenericTask, nil, map[string]any{})
	assert.Equal(t, statemachine.Done, v.Status)
}

func TestGenericEvaluate_SoftErrorBlocks(t *testing.T) {
	r := NewRegistry()
	v := r.Evaluate(backlog.GenericTask, nil, map[string]any{"error": "missing input file"})
	assert.Equal(t, statemachine.Blocked, v.Status)
	assert.Contains(t, v.ClarificationText, "missing input file")
}

func TestGenericEvaluate_FatalErrorFails(t *testing.T) {
	r := NewRegistry()
	v := r.Evaluate(backlog.GenericTask, nil, map[string]any{"error": "panic", "fatal": true})
	assert.Equal(t, statemachine.Failed, v.Status)
}

func TestAgentTaskEvaluate_StaleTemplateVersionBlocks(t *testing.T) {
	r := NewRegistry()
	workContext := map[string]any{"template_version": "v2"}
	evidence := map[string]any{"template_version": "v1"}
	v := r.Evaluate(backlog.AgentTask, workContext, evidence)
	assert.Equal(t, statemachine.Blocked, v.Status)
}

func TestAgentTaskEvaluate_MatchingTemplateVersionDone(t *testing.T) {
	r := NewRegistry()
	workContext := map[string]any{"template_version": "v2"}
	evidence := map[string]any{"template_version": "v2"}
	v := r.Evaluate(backlog.AgentTask, workContext, evidence)
	assert.Equal(t, statemachine.Done, v.Status)
}

func TestAgentTaskEvaluate_NoVersioningRequiredIsDone(t *testing.T) {
	r := NewRegistry()
	v := r.Evaluate(backlog.AgentTask, map[string]any{}, map[string]any{})
	assert.Equal(t, statemachine.Done, v.Status)
}

func TestRegistry_UnregisteredTypeFallsBackToGeneric(t *testing.T) {
	r := NewRegistry()
	v := r.Evaluate(backlog.ItemType("UNKNOWN_TYPE"), nil, map[string]any{})
	assert.Equal(t, statemachine.Done, v.Status)
}

func TestRegistry_Register_OverridesBuiltin(t *testing.T) {
	r := NewRegistry()
	r.Register(backlog.GenericTask, EvaluatorFunc(func(_ backlog.ItemType, _, _ map[string]any) Verdict {
		return Verdict{Status: statemachine.Failed}
	}))
	v := r.Evaluate(backlog.GenericTask, nil, map[string]any{})
	assert.Equal(t, statemachine.Failed, v.Status)
}
