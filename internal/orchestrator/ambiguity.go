package orchestrator

import "strings"

// AmbiguityRule decides whether an intake request carries enough signal to
// generate a typed backlog item outright, or whether a clarification
// question must block it first. The spec leaves the policy abstract
// (Design Note "Ambiguity detection policy"); this repo's rule is
// deliberately trivial and meant to be replaced by a real rules module.
type AmbiguityRule interface {
	// Detect reports the fields missing from requestText (empty when none
	// are missing) and whether the request is unambiguous enough to
	// proceed straight to backlog generation.
	Detect(requestText string) (missingFields []string, unambiguous bool)
}

// RequiredFieldsRule is the built-in AmbiguityRule: a request is
// unambiguous only if it names one of a fixed set of recognized task
// keywords, the stand-in for "required-field presence against a
// per-item_type checklist".
type RequiredFieldsRule struct {
	Keywords []string
}

// NewRequiredFieldsRule returns the default RequiredFieldsRule.
func NewRequiredFieldsRule() RequiredFieldsRule {
	return RequiredFieldsRule{
		Keywords: []string{"audit", "migrate", "build", "report", "analyze", "review", "deploy"},
	}
}

func (r RequiredFieldsRule) Detect(requestText string) ([]string, bool) {
	trimmed := strings.TrimSpace(requestText)
	if trimmed == "" {
		return []string{"request_text"}, false
	}
	lower := strings.ToLower(trimmed)
	for _, kw := range r.Keywords {
		if strings.Contains(lower, kw) {
			return nil, true
		}
	}
	return []string{"task_type"}, false
}
