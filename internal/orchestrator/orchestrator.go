// Package orchestrator implements the Orchestrator (C11): it consumes
// intake and answer events, generates backlogs, detects ambiguity,
// applies DoD gating on completion, and dispatches READY items under
// per-item locks, per spec §4.10 and the Concurrency & Resource Model's
// ordering guarantees (I4: a dispatch lock is held across the
// READY -> IN_PROGRESS transition).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BourguignonSimon/eventflow/internal/backlog"
	"github.com/BourguignonSimon/eventflow/internal/dod"
	"github.com/BourguignonSimon/eventflow/internal/envelope"
	"github.com/BourguignonSimon/eventflow/internal/locks"
	"github.com/BourguignonSimon/eventflow/internal/logging"
	"github.com/BourguignonSimon/eventflow/internal/metrics"
	"github.com/BourguignonSimon/eventflow/internal/question"
	"github.com/BourguignonSimon/eventflow/internal/streamerr"
	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

// Runtime holds everything one Orchestrator process needs to turn intake
// and answer events into a dispatched backlog. It exposes Handle as a
// streamrun.Handler.
type Runtime struct {
	store     substrate.Substrate
	stream    string
	backlog   *backlog.Store
	questions *question.Store
	locks     *locks.Service
	dod       *dod.Registry
	ambiguity AmbiguityRule
	log       *logging.Logger
	metrics   *metrics.Metrics
	lockTTL   time.Duration
}

// New constructs a Runtime. ambiguity may be nil to use the built-in
// RequiredFieldsRule. A lockTTL <= 0 uses locks.DefaultTTL.
func New(store substrate.Substrate, stream string, backlogStore *backlog.Store, questions *question.Store, lockSvc *locks.Service, dodRegistry *dod.Registry, ambiguity AmbiguityRule, lockTTL time.Duration, log *logging.Logger, m *metrics.Metrics) *Runtime {
	if ambiguity == nil {
		ambiguity = NewRequiredFieldsRule()
	}
	return &Runtime{
		store:     store,
		stream:    stream,
		backlog:   backlogStore,
		questions: questions,
		locks:     lockSvc,
		dod:       dodRegistry,
		ambiguity: ambiguity,
		lockTTL:   lockTTL,
		log:       log,
		metrics:   m,
	}
}

// Handle dispatches one decoded envelope to the sub-handler for its
// event_type. Event types the Orchestrator does not consume are acked
// without action (the runtime routes by consumer group subscription, but
// a shared stream may carry types meant for other groups).
func (r *Runtime) Handle(ctx context.Context, env envelope.Envelope) error {
	switch env.EventType {
	case "PROJECT.INITIAL_REQUEST_RECEIVED":
		return r.handleIntake(ctx, env)
	case "USER.ANSWER_SUBMITTED":
		return r.handleAnswer(ctx, env)
	case "WORK.ITEM_COMPLETED":
		return r.handleCompletion(ctx, env)
	case "WORK.ITEM_FAILED":
		return r.handleWorkerFailure(ctx, env)
	default:
		return nil
	}
}

// publish builds and appends a new event to the main stream, preserving
// correlationID and tagging causationID as the event that produced it.
func (r *Runtime) publish(ctx context.Context, eventType string, payload any, correlationID, causationID string) (envelope.Envelope, error) {
	env, err := envelope.Build(eventType, payload, "orchestrator",
		envelope.WithCorrelationID(correlationID),
		envelope.WithCausationID(causationID))
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("orchestrator: build %s: %w", eventType, err)
	}
	fields, err := envelope.Encode(env)
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("orchestrator: encode %s: %w", eventType, err)
	}
	if _, err := r.store.Append(ctx, r.stream, fields); err != nil {
		return envelope.Envelope{}, fmt.Errorf("orchestrator: publish %s: %w", eventType, err)
	}
	r.log.Info(ctx, "orchestrator: published event", zap.String("event_type", eventType), zap.String("event_id", env.EventID))
	return env, nil
}

func illegalTransition(operation string, err error) error {
	return streamerr.New(operation, streamerr.CategoryIllegalTransition, err)
}

func reasoning(operation string, err error) error {
	return streamerr.New(operation, streamerr.CategoryReasoning, err)
}
