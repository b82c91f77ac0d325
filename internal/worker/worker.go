// Package worker implements the Worker Runtime (C12): it consumes
// WORK.ITEM_DISPATCHED events addressed to one agent_target and drives a
// caller-supplied Reasoner through the dispatch -> started ->
// (deliverable + completed) | clarification | failure protocol (spec §2,
// §6, §7). The Reasoner itself — the LLM provider gateway and any
// per-domain computation — is out of scope (§1); this package only
// implements the protocol around it.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BourguignonSimon/eventflow/internal/envelope"
	"github.com/BourguignonSimon/eventflow/internal/ledger"
	"github.com/BourguignonSimon/eventflow/internal/logging"
	"github.com/BourguignonSimon/eventflow/internal/metrics"
	"github.com/BourguignonSimon/eventflow/internal/streamerr"
	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

// Request is what a Reasoner is asked to do.
type Request struct {
	ProjectID     string
	BacklogItemID string
	ItemType      string
	WorkContext   map[string]any
}

// Result is what a Reasoner produces on success. Claim, when non-empty,
// is recorded to the fact ledger alongside DELIVERABLE.PUBLISHED, grounded
// on the dispatch event (SPEC_FULL.md §7 fact-ledger supplement).
type Result struct {
	Deliverable map[string]any
	Evidence    map[string]any
	Claim       string
}

// Reasoner performs the per-domain work a dispatched item requires. The
// core treats it as an opaque RPC (§1 Non-goals); time/cost/scenario
// arithmetic, LLM calls, and similar domain logic live entirely on the
// caller's side of this interface.
type Reasoner interface {
	Perform(ctx context.Context, req Request) (Result, error)
}

// ReasonerFunc adapts a function to Reasoner.
type ReasonerFunc func(ctx context.Context, req Request) (Result, error)

func (f ReasonerFunc) Perform(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// MissingFieldsError signals that work_context lacked fields the
// Reasoner needed. The runtime reports this as CLARIFICATION.NEEDED
// (data_insufficiency), not as a failure.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("worker: missing fields in work_context: %v", e.Fields)
}

// Runtime holds everything one Worker process needs to service
// WORK.ITEM_DISPATCHED events for a single agent_target. It exposes
// Handle as a streamrun.Handler.
type Runtime struct {
	store       substrate.Substrate
	stream      string
	agentTarget string
	reasoner    Reasoner
	ledger      *ledger.Store
	log         *logging.Logger
	metrics     *metrics.Metrics
}

// New constructs a Runtime bound to agentTarget. Dispatches addressed to
// any other agent_target are acked without action (streamrun routes by
// consumer group subscription, but the main stream may carry dispatches
// for other workers too).
func New(store substrate.Substrate, stream, agentTarget string, reasoner Reasoner, ledgerStore *ledger.Store, log *logging.Logger, m *metrics.Metrics) *Runtime {
	return &Runtime{
		store:       store,
		stream:      stream,
		agentTarget: agentTarget,
		reasoner:    reasoner,
		ledger:      ledgerStore,
		log:         log,
		metrics:     m,
	}
}

// Handle dispatches one decoded envelope. Event types this worker does
// not consume are acked without action.
func (r *Runtime) Handle(ctx context.Context, env envelope.Envelope) error {
	if env.EventType != "WORK.ITEM_DISPATCHED" {
		return nil
	}
	return r.handleDispatch(ctx, env)
}

func (r *Runtime) handleDispatch(ctx context.Context, env envelope.Envelope) error {
	var payload DispatchedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return streamerr.New("decode_dispatch", streamerr.CategoryContract, err)
	}

	if payload.AgentTarget != "" && payload.AgentTarget != r.agentTarget {
		// Addressed to a different worker; nothing to do here (S4-adjacent
		// wrong-target tolerance, not a failure).
		return nil
	}

	if _, err := r.publish(ctx, "WORK.ITEM_STARTED", StartedPayload{
		ProjectID:     payload.ProjectID,
		BacklogItemID: payload.BacklogItemID,
	}, env.CorrelationID, env.EventID); err != nil {
		return streamerr.New("publish_started", streamerr.CategoryTool, err)
	}

	result, err := r.reasoner.Perform(ctx, Request{
		ProjectID:     payload.ProjectID,
		BacklogItemID: payload.BacklogItemID,
		ItemType:      payload.ItemType,
		WorkContext:   payload.WorkContext,
	})
	if err != nil {
		return r.handleReasonerFailure(ctx, env, payload, err)
	}

	if result.Deliverable != nil {
		if _, err := r.publish(ctx, "DELIVERABLE.PUBLISHED", DeliverablePublishedPayload{
			ProjectID:     payload.ProjectID,
			BacklogItemID: payload.BacklogItemID,
			Deliverable:   result.Deliverable,
		}, env.CorrelationID, env.EventID); err != nil {
			return streamerr.New("publish_deliverable", streamerr.CategoryTool, err)
		}
	}

	if result.Claim != "" && r.ledger != nil {
		if err := r.ledger.Record(ctx, ledger.Fact{
			ProjectID:     payload.ProjectID,
			SourceEventID: env.EventID,
			BacklogItemID: payload.BacklogItemID,
			Claim:         result.Claim,
		}); err != nil {
			r.log.Error(ctx, "worker: ledger record failed", zap.Error(err))
		}
	}

	if _, err := r.publish(ctx, "WORK.ITEM_COMPLETED", CompletedPayload{
		ProjectID:     payload.ProjectID,
		BacklogItemID: payload.BacklogItemID,
		Evidence:      result.Evidence,
	}, env.CorrelationID, env.EventID); err != nil {
		return streamerr.New("publish_completed", streamerr.CategoryTool, err)
	}

	return nil
}

func (r *Runtime) handleReasonerFailure(ctx context.Context, env envelope.Envelope, payload DispatchedPayload, err error) error {
	var missing *MissingFieldsError
	if errors.As(err, &missing) {
		if _, perr := r.publish(ctx, "CLARIFICATION.NEEDED", ClarificationNeededPayload{
			ProjectID:     payload.ProjectID,
			BacklogItemID: payload.BacklogItemID,
			MissingFields: missing.Fields,
		}, env.CorrelationID, env.EventID); perr != nil {
			r.log.Error(ctx, "worker: publish clarification failed", zap.Error(perr))
		}
		return streamerr.New("reasoner", streamerr.CategoryDataInsufficiency, err)
	}

	var herr *streamerr.HandlerError
	if errors.As(err, &herr) {
		if !herr.Category.Retryable() {
			r.publishFailed(ctx, env, payload, herr)
		}
		return herr
	}

	// An unclassified Reasoner error is treated as a reasoning-category
	// failure: terminal, surfaced as WORK.ITEM_FAILED, never retried.
	wrapped := streamerr.New("reasoner", streamerr.CategoryReasoning, err)
	r.publishFailed(ctx, env, payload, wrapped)
	return wrapped
}

func (r *Runtime) publishFailed(ctx context.Context, env envelope.Envelope, payload DispatchedPayload, herr *streamerr.HandlerError) {
	if _, err := r.publish(ctx, "WORK.ITEM_FAILED", FailedPayload{
		ProjectID:     payload.ProjectID,
		BacklogItemID: payload.BacklogItemID,
		Reason:        herr.Error(),
		Category:      string(herr.Category),
	}, env.CorrelationID, env.EventID); err != nil {
		r.log.Error(ctx, "worker: publish failed-event failed", zap.Error(err))
	}
}

func (r *Runtime) publish(ctx context.Context, eventType string, payload any, correlationID, causationID string) (envelope.Envelope, error) {
	env, err := envelope.Build(eventType, payload, "worker:"+r.agentTarget,
		envelope.WithCorrelationID(correlationID),
		envelope.WithCausationID(causationID))
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("worker: build %s: %w", eventType, err)
	}
	fields, err := envelope.Encode(env)
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("worker: encode %s: %w", eventType, err)
	}
	if _, err := r.store.Append(ctx, r.stream, fields); err != nil {
		return envelope.Envelope{}, fmt.Errorf("worker: publish %s: %w", eventType, err)
	}
	r.log.Info(ctx, "worker: published event", zap.String("agent_target", r.agentTarget), zap.String("event_type", eventType), zap.String("event_id", env.EventID))
	return env, nil
}
