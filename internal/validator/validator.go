// Package validator implements the Validator Service (C13): a stream
// consumer whose only job is envelope+payload validation. The actual
// schema checking happens in internal/streamrun before a handler is ever
// invoked, so this package's Handler has nothing left to do but
// acknowledge — a validated entry simply passes through.
package validator

import (
	"context"

	"github.com/BourguignonSimon/eventflow/internal/envelope"
)

// Handle is the streamrun.Handler for the Validator Service. Every entry
// reaching it already passed schema validation (streamrun DLQs anything
// that doesn't), so there is no further action to take.
func Handle(_ context.Context, _ envelope.Envelope) error {
	return nil
}
