// Package streamrun implements the generic Stream Consumer Runtime (C7): a
// reliable processing loop shared by the orchestrator, every worker, and
// the validator service. It reads new entries and reclaims idle pending
// ones, validates the envelope and payload against the schema registry,
// deduplicates via the idempotence guard, dispatches to a Handler, and
// acks, retries, or quarantines to the DLQ depending on the failure
// taxonomy (spec §7).
package streamrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BourguignonSimon/eventflow/internal/dlq"
	"github.com/BourguignonSimon/eventflow/internal/envelope"
	"github.com/BourguignonSimon/eventflow/internal/idempotence"
	"github.com/BourguignonSimon/eventflow/internal/logging"
	"github.com/BourguignonSimon/eventflow/internal/metrics"
	"github.com/BourguignonSimon/eventflow/internal/schemaregistry"
	"github.com/BourguignonSimon/eventflow/internal/streamerr"
	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

// Handler processes one decoded, schema-valid, de-duplicated event. It
// should return a *streamerr.HandlerError to classify a failure, or a plain
// error (treated as CategoryReasoning) for anything unclassified.
type Handler func(ctx context.Context, env envelope.Envelope) error

// Config configures a Runtime. Zero values fall back to the spec's
// defaults via Config.applyDefaults.
type Config struct {
	Stream              string
	Group               string
	Consumer            string
	BlockFor            time.Duration
	IdleReclaimAfter    time.Duration
	PendingReclaimCount int
	MaxAttempts         int
	DedupeTTL           time.Duration
	ReadCount           int
}

func (c *Config) applyDefaults() {
	if c.BlockFor <= 0 {
		c.BlockFor = 5 * time.Second
	}
	if c.IdleReclaimAfter <= 0 {
		c.IdleReclaimAfter = 30 * time.Second
	}
	if c.PendingReclaimCount <= 0 {
		c.PendingReclaimCount = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.DedupeTTL <= 0 {
		c.DedupeTTL = idempotence.DefaultTTL
	}
	if c.ReadCount <= 0 {
		c.ReadCount = 10
	}
}

// Runtime is one consumer-group worker loop over a stream.
type Runtime struct {
	cfg Config

	store   substrate.Substrate
	schemas *schemaregistry.Registry
	idempo  *idempotence.Guard
	dlq     *dlq.Publisher
	log     *logging.Logger
	metrics *metrics.Metrics
	handler Handler
}

// New constructs a Runtime. schemas may be nil to skip envelope and payload
// validation; every binary in cmd/ passes the loaded registry.
func New(store substrate.Substrate, schemas *schemaregistry.Registry, idempo *idempotence.Guard, dlqPub *dlq.Publisher, log *logging.Logger, m *metrics.Metrics, cfg Config, handler Handler) *Runtime {
	cfg.applyDefaults()
	return &Runtime{
		cfg:     cfg,
		store:   store,
		schemas: schemas,
		idempo:  idempo,
		dlq:     dlqPub,
		log:     log,
		metrics: m,
		handler: handler,
	}
}

// Run drives the read-new + reclaim-pending loop until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.store.EnsureGroup(ctx, r.cfg.Stream, r.cfg.Group); err != nil {
		return fmt.Errorf("streamrun: ensure group: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.reclaimPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error(ctx, "streamrun: reclaim pending failed", zap.Error(err))
		}

		entries, err := r.store.ReadGroup(ctx, r.cfg.Stream, r.cfg.Group, r.cfg.Consumer, r.cfg.ReadCount, r.cfg.BlockFor)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			r.log.Error(ctx, "streamrun: read group failed", zap.Error(err))
			continue
		}

		for _, entry := range entries {
			r.process(ctx, entry)
		}
	}
}

// reclaimPending claims entries idle for at least IdleReclaimAfter and
// processes them as retries (B1: idle == threshold is eligible).
func (r *Runtime) reclaimPending(ctx context.Context) error {
	pending, err := r.store.Pending(ctx, r.cfg.Stream, r.cfg.Group, r.cfg.IdleReclaimAfter, r.cfg.PendingReclaimCount)
	if err != nil {
		return fmt.Errorf("pending: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}

	entries, err := r.store.Claim(ctx, r.cfg.Stream, r.cfg.Group, r.cfg.Consumer, ids)
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}

	r.metrics.ReclaimedTotal.WithLabelValues(r.cfg.Group).Add(float64(len(entries)))
	r.log.Info(ctx, "streamrun: reclaimed idle pending entries",
		zap.String("group", r.cfg.Group), zap.Int("count", len(entries)))
	for _, entry := range entries {
		r.process(ctx, entry)
	}
	return nil
}

// process validates, deduplicates, and dispatches one entry, then acks,
// retries, or quarantines it according to the failure taxonomy.
//
// Idempotence is checked with a non-consuming peek (IsMarked), and only
// marked done at a terminal outcome (handler success or DLQ) — never
// before the handler runs. A entry that fails with a retryable category
// is left unacked and unmarked, so the next reclaim re-invokes the
// handler for the same event_id; a genuinely duplicate delivery (the same
// event_id reaching the runtime a second time after its first delivery
// already reached a terminal outcome) is the only thing IsMarked catches.
func (r *Runtime) process(ctx context.Context, entry substrate.StreamEntry) {
	env, err := envelope.Decode(entry.Fields)
	if err != nil {
		r.toDLQ(ctx, entry, "", "decode", "", err)
		return
	}

	ctx = logging.WithCorrelationID(ctx, env.CorrelationID)

	if r.schemas != nil {
		if err := r.schemas.ValidateEnvelope(asAny(entry.Fields[envelope.FieldName])); err != nil {
			r.toDLQ(ctx, entry, env.EventID, "contract", schemaregistry.EnvelopeSchemaID, err)
			return
		}
		var payload any
		if perr := env.DecodePayload(&payload); perr == nil {
			if err := r.schemas.ValidatePayload(env.EventType, payload); err != nil {
				r.toDLQ(ctx, entry, env.EventID, "contract", env.EventType, err)
				return
			}
		}
	}

	marked, err := r.idempo.IsMarked(ctx, r.cfg.Group, env.EventID)
	if err != nil {
		r.log.Error(ctx, "streamrun: idempotence check failed", zap.Error(err))
		return
	}
	if marked {
		r.log.Info(ctx, "streamrun: duplicate delivery, acking without handler invocation",
			zap.String("event_id", env.EventID), zap.String("group", r.cfg.Group))
		r.ack(ctx, entry.ID)
		return
	}

	start := time.Now()
	err = r.handler(ctx, env)
	r.metrics.HandlerDuration.WithLabelValues(r.cfg.Group, env.EventType).Observe(time.Since(start).Seconds())

	if err == nil {
		r.metrics.EntriesProcessedTotal.WithLabelValues(r.cfg.Group, env.EventType).Inc()
		r.markProcessed(ctx, env.EventID)
		r.ack(ctx, entry.ID)
		return
	}

	r.handleFailure(ctx, entry, env, err)
}

func (r *Runtime) handleFailure(ctx context.Context, entry substrate.StreamEntry, env envelope.Envelope, err error) {
	var herr *streamerr.HandlerError
	category := streamerr.CategoryReasoning
	if errors.As(err, &herr) {
		category = herr.Category
	}

	if category == streamerr.CategoryDataInsufficiency {
		// Surfaced in-band as CLARIFICATION.NEEDED by the caller, not a
		// DLQ or retry case; the handler is responsible for emitting that
		// event itself. The runtime marks it done and acks.
		r.markProcessed(ctx, env.EventID)
		r.ack(ctx, entry.ID)
		return
	}

	if category == streamerr.CategoryIllegalTransition {
		r.log.Warn(ctx, "streamrun: illegal transition, skipping entry",
			zap.String("event_id", env.EventID), zap.Error(err))
		r.markProcessed(ctx, env.EventID)
		r.ack(ctx, entry.ID)
		return
	}

	if category.Retryable() {
		attempts, aerr := r.store.Incr(ctx, r.attemptsKey(entry.ID))
		if aerr != nil {
			r.log.Error(ctx, "streamrun: attempt counter failed", zap.Error(aerr))
		}
		if attempts < int64(r.cfg.MaxAttempts) {
			r.metrics.EntriesRetriedTotal.WithLabelValues(r.cfg.Group, env.EventType).Inc()
			r.log.Warn(ctx, "streamrun: handler failed, will retry via reclaim",
				zap.String("event_id", env.EventID), zap.Int64("attempt", attempts), zap.Error(err))
			return // leave unacked and unmarked; a future reclaimPending redelivers it
		}
		r.toDLQFromEnvelope(ctx, entry, env.EventID, "max_attempts_exhausted", env.EventType, err)
		return
	}

	// CategoryContract/CategoryDecode reaching here means the handler
	// itself detected a contract problem the registry didn't (e.g. a
	// cross-field invariant); CategoryReasoning and anything unclassified
	// also quarantine rather than loop forever.
	r.toDLQFromEnvelope(ctx, entry, env.EventID, string(category), env.EventType, err)
}

// markProcessed marks eventID done for this group so a later genuine
// duplicate delivery is acked without a second handler invocation.
func (r *Runtime) markProcessed(ctx context.Context, eventID string) {
	if eventID == "" {
		return
	}
	if _, err := r.idempo.MarkIfNew(ctx, r.cfg.Group, eventID, r.cfg.DedupeTTL); err != nil {
		r.log.Error(ctx, "streamrun: mark processed failed", zap.String("event_id", eventID), zap.Error(err))
	}
}

func (r *Runtime) ack(ctx context.Context, id string) {
	if err := r.store.Ack(ctx, r.cfg.Stream, r.cfg.Group, id); err != nil {
		r.log.Error(ctx, "streamrun: ack failed", zap.String("id", id), zap.Error(err))
	}
	_ = r.store.Del(ctx, r.attemptsKey(id))
}

func (r *Runtime) toDLQ(ctx context.Context, entry substrate.StreamEntry, eventID, reason, schemaID string, cause error) {
	r.metrics.EntriesRejectedTotal.WithLabelValues(r.cfg.Group, reason).Inc()
	r.toDLQFields(ctx, entry, eventID, reason, schemaID, cause)
}

func (r *Runtime) toDLQFromEnvelope(ctx context.Context, entry substrate.StreamEntry, eventID, reason, schemaID string, cause error) {
	r.toDLQFields(ctx, entry, eventID, reason, schemaID, cause)
}

func (r *Runtime) toDLQFields(ctx context.Context, entry substrate.StreamEntry, eventID, reason, schemaID string, cause error) {
	r.metrics.DLQPublishedTotal.WithLabelValues(r.cfg.Group, reason).Inc()

	opts := []dlq.Option{}
	if schemaID != "" {
		opts = append(opts, dlq.WithSchemaID(schemaID))
	}
	if _, err := r.dlq.Publish(ctx, reason, entry.Fields, opts...); err != nil {
		r.log.Error(ctx, "streamrun: dlq publish failed", zap.Error(err))
	}
	r.log.Warn(ctx, "streamrun: entry quarantined to DLQ", zap.String("reason", reason), zap.Error(cause))
	r.markProcessed(ctx, eventID)
	r.ack(ctx, entry.ID)
}

func (r *Runtime) attemptsKey(entryID string) string {
	return fmt.Sprintf("attempts:%s:%s:%s", r.cfg.Stream, r.cfg.Group, entryID)
}

// asAny decodes a raw JSON string into an any for schema validation. It
// returns nil on decode failure; ValidateEnvelope will then fail against
// the object-typed schema, which is the correct contract violation.
func asAny(raw string) any {
	var v any
	_ = json.Unmarshal([]byte(raw), &v)
	return v
}
