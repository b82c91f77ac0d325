// Package streamerr defines the failure taxonomy (spec §7) shared by every
// handler run under the stream consumer runtime, grounded on the teacher's
// internal/workflows.WorkflowError structured-error convention.
package streamerr

import "fmt"

// Category classifies why a handler invocation failed. Values are exactly
// the ones enumerated in the spec's error handling design and double as
// WORK.ITEM_FAILED.category / DLQ reason values, except that the stream
// runtime quarantines an exhausted retry with reason
// "max_attempts_exhausted".
type Category string

const (
	CategoryContract          Category = "contract"
	CategoryDecode            Category = "decode"
	CategoryDataInsufficiency Category = "data_insufficiency"
	CategoryTool              Category = "tool"
	CategoryReasoning         Category = "reasoning"
	CategoryIllegalTransition Category = "illegal_transition"
	CategoryTimeout           Category = "timeout"
	CategoryMaxAttempts       Category = "max_attempts"
)

// Retryable reports whether the runtime should reclaim-and-retry an entry
// that failed with this category, per the propagation policy table.
func (c Category) Retryable() bool {
	switch c {
	case CategoryTool, CategoryTimeout:
		return true
	default:
		return false
	}
}

// GoesToDLQ reports whether a terminal failure in this category should be
// quarantined to the DLQ (and acked) rather than simply logged and skipped.
func (c Category) GoesToDLQ() bool {
	switch c {
	case CategoryContract, CategoryDecode, CategoryMaxAttempts:
		return true
	default:
		return false
	}
}

// HandlerError is a structured error a handler returns to report a
// classified failure. The runtime inspects Category to decide between
// retry, DLQ, or log-and-skip.
type HandlerError struct {
	Operation string
	Category  Category
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Operation, e.Category, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// New constructs a classified HandlerError.
func New(operation string, category Category, err error) *HandlerError {
	return &HandlerError{Operation: operation, Category: category, Err: err}
}
