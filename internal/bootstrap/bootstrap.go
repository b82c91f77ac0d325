// Package bootstrap wires the ambient stack (config, logging, metrics,
// substrate, schema registry, idempotence, locks, DLQ) that every binary
// in cmd/ needs before it can build its own streamrun.Runtime. Kept
// separate from cmd/ so each main package stays a thin cobra shell.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/BourguignonSimon/eventflow/internal/config"
	"github.com/BourguignonSimon/eventflow/internal/dlq"
	"github.com/BourguignonSimon/eventflow/internal/idempotence"
	"github.com/BourguignonSimon/eventflow/internal/locks"
	"github.com/BourguignonSimon/eventflow/internal/logging"
	"github.com/BourguignonSimon/eventflow/internal/metrics"
	"github.com/BourguignonSimon/eventflow/internal/schemaregistry"
	"github.com/BourguignonSimon/eventflow/internal/streamrun"
	"github.com/BourguignonSimon/eventflow/internal/substrate"
)

// Stack holds every ambient dependency shared across the orchestrator,
// worker, and validator binaries.
type Stack struct {
	Config    *config.Config
	Log       *logging.Logger
	Metrics   *metrics.Metrics
	Store     substrate.Substrate
	Schemas   *schemaregistry.Registry
	Idempo    *idempotence.Guard
	Locks     *locks.Service
	DLQ       *dlq.Publisher
}

// New loads configuration from the environment, connects to NATS, and
// constructs every ambient service. group overrides cfg.Runtime.ConsumerGroup
// for binaries (like the worker) whose group is derived from a CLI flag
// rather than the environment.
func New(ctx context.Context, group string) (*Stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}
	if group != "" {
		cfg.Runtime.ConsumerGroup = group
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: init logger: %w", err)
	}

	store, err := substrate.NewNATS(ctx, substrate.NATSConfig{
		URL:      cfg.Substrate.URL,
		KVBucket: cfg.Substrate.KVBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect substrate: %w", err)
	}

	schemas, err := schemaregistry.New()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load schemas: %w", err)
	}

	return &Stack{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.New(),
		Store:   store,
		Schemas: schemas,
		Idempo:  idempotence.New(store, cfg.Substrate.IdempoPrefix),
		Locks:   locks.New(store, cfg.Substrate.LockPrefix),
		DLQ:     dlq.New(store, cfg.Substrate.DLQStream),
	}, nil
}

// RuntimeConfig builds a streamrun.Config for consumerName from the
// loaded configuration.
func (s *Stack) RuntimeConfig(consumerName string) streamrun.Config {
	return streamrun.Config{
		Stream:              s.Config.Substrate.Stream,
		Group:               s.Config.Runtime.ConsumerGroup,
		Consumer:            consumerName,
		BlockFor:            s.Config.Runtime.BlockDuration(),
		IdleReclaimAfter:    s.Config.Runtime.IdleReclaimDuration(),
		PendingReclaimCount: s.Config.Runtime.PendingReclaimCount,
		MaxAttempts:         s.Config.Runtime.MaxAttempts,
		DedupeTTL:           s.Config.Runtime.DedupeTTL(),
	}
}
