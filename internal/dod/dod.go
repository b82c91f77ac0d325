// Package dod implements the Definition-of-Done evaluator supplement
// (SPEC_FULL.md §7, core/evaluation.py): a pluggable Evaluator invoked on
// every WORK.ITEM_COMPLETED to decide whether a backlog item is really
// DONE, or should instead be BLOCKED (optionally emitting a synthetic
// clarification) or FAILED. Evaluators are pure functions of
// (item_type, work_context, evidence).
package dod

import (
	"fmt"

	"github.com/BourguignonSimon/eventflow/internal/backlog"
	"github.com/BourguignonSimon/eventflow/internal/statemachine"
)

// Verdict is an evaluator's decision for a completed item.
type Verdict struct {
	Status statemachine.Status

	// ClarificationText is set when Status is Blocked and the evaluator
	// wants a CLARIFICATION.NEEDED raised on the caller's behalf
	// (empty string means no clarification).
	ClarificationText string
}

// Evaluator decides DONE vs BLOCKED vs FAILED for one completed item.
type Evaluator interface {
	Evaluate(itemType backlog.ItemType, workContext, evidence map[string]any) Verdict
}

// EvaluatorFunc adapts a function to an Evaluator.
type EvaluatorFunc func(itemType backlog.ItemType, workContext, evidence map[string]any) Verdict

func (f EvaluatorFunc) Evaluate(itemType backlog.ItemType, workContext, evidence map[string]any) Verdict {
	return f(itemType, workContext, evidence)
}

// Registry maps an item type to the Evaluator responsible for it. New item
// types are added by registering their own Evaluator, never by changing
// existing evaluators (SPEC_FULL.md §7 "pluggable component").
type Registry struct {
	evaluators map[backlog.ItemType]Evaluator
	fallback   Evaluator
}

// NewRegistry builds a Registry pre-populated with the built-in evaluators
// for GENERIC_TASK and AGENT_TASK.
func NewRegistry() *Registry {
	r := &Registry{
		evaluators: make(map[backlog.ItemType]Evaluator),
		fallback:   EvaluatorFunc(genericEvaluate),
	}
	r.Register(backlog.GenericTask, EvaluatorFunc(genericEvaluate))
	r.Register(backlog.AgentTask, EvaluatorFunc(agentTaskEvaluate))
	return r
}

// Register installs (or replaces) the Evaluator for itemType.
func (r *Registry) Register(itemType backlog.ItemType, e Evaluator) {
	r.evaluators[itemType] = e
}

// Evaluate dispatches to the Evaluator registered for itemType, falling
// back to the generic evaluator for an unregistered type.
func (r *Registry) Evaluate(itemType backlog.ItemType, workContext, evidence map[string]any) Verdict {
	if e, ok := r.evaluators[itemType]; ok {
		return e.Evaluate(itemType, workContext, evidence)
	}
	return r.fallback.Evaluate(itemType, workContext, evidence)
}

// genericEvaluate is the built-in evaluator for GENERIC_TASK: DONE as soon
// as the worker reports completion, unless evidence explicitly flags an
// error.
func genericEvaluate(_ backlog.ItemType, _ map[string]any, evidence map[string]any) Verdict {
	if msg, failed := evidenceError(evidence); failed {
		return Verdict{Status: statemachine.Failed, ClarificationText: ""}
	} else if msg != "" {
		return Verdict{Status: statemachine.Blocked, ClarificationText: msg}
	}
	return Verdict{Status: statemachine.Done}
}

// agentTaskEvaluate is the built-in evaluator for AGENT_TASK: in addition
// to the generic error check, it enforces the prompt/version tagging
// supplement (SPEC_FULL.md §7, tests/test_prompt_versioning.py) by
// rejecting completions whose evidence echoes a stale
// work_context["template_version"].
func agentTaskEvaluate(itemType backlog.ItemType, workContext, evidence map[string]any) Verdict {
	v := genericEvaluate(itemType, workContext, evidence)
	if v.Status != statemachine.Done {
		return v
	}

	wantVersion, wantOK := workContext["template_version"]
	if !wantOK {
		return v // versioning is optional, per the Non-goal carve-out
	}
	gotVersion, gotOK := evidence["template_version"]
	if !gotOK || fmt.Sprint(wantVersion) != fmt.Sprint(gotVersion) {
		return Verdict{
			Status:            statemachine.Blocked,
			ClarificationText: "worker completed against a stale template_version; re-dispatch required",
		}
	}
	return v
}

// evidenceError reports whether evidence carries an "error" field and, if
// so, whether it is a hard failure ("fatal": true) or a soft one that
// should instead raise a clarification.
func evidenceError(evidence map[string]any) (message string, fatal bool) {
	raw, ok := evidence["error"]
	if !ok {
		return "", false
	}
	message = fmt.Sprint(raw)
	if f, ok := evidence["fatal"].(bool); ok && f {
		return message, true
	}
	return message, false
}
