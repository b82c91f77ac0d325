// Command orchestrator runs the Orchestrator (C11): it consumes intake
// and answer events, generates and dispatches a project's backlog, and
// enforces the clarification loop and DoD gating.
//
// Configuration is loaded from environment variables; see internal/config
// for the full list and their defaults.
//
// Usage:
//
//	orchestrator
//	orchestrator --consumer orchestrator-2
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BourguignonSimon/eventflow/internal/backlog"
	"github.com/BourguignonSimon/eventflow/internal/bootstrap"
	"github.com/BourguignonSimon/eventflow/internal/dod"
	"github.com/BourguignonSimon/eventflow/internal/orchestrator"
	"github.com/BourguignonSimon/eventflow/internal/question"
	"github.com/BourguignonSimon/eventflow/internal/streamrun"
)

var (
	version      = "dev"
	consumerName string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "orchestrator",
	Short:   "Run the eventflow Orchestrator",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()
		return run(ctx)
	},
}

func init() {
	rootCmd.Flags().StringVar(&consumerName, "consumer", "orchestrator-1", "consumer name registered against the orchestrator consumer group")
}

func run(ctx context.Context) error {
	stack, err := bootstrap.New(ctx, "orchestrator")
	if err != nil {
		return err
	}

	backlogStore := backlog.New(stack.Store, stack.Config.Substrate.KeyPrefix)
	questionStore := question.New(stack.Store, stack.Config.Substrate.KeyPrefix)
	dodRegistry := dod.NewRegistry()

	rt := orchestrator.New(
		stack.Store,
		stack.Config.Substrate.Stream,
		backlogStore,
		questionStore,
		stack.Locks,
		dodRegistry,
		nil,
		stack.Config.Runtime.LockTTL(),
		stack.Log,
		stack.Metrics,
	)

	runner := streamrun.New(stack.Store, stack.Schemas, stack.Idempo, stack.DLQ, stack.Log, stack.Metrics, stack.RuntimeConfig(consumerName), rt.Handle)

	stack.Log.Info(ctx, "orchestrator: starting", zap.String("consumer", consumerName), zap.String("stream", stack.Config.Substrate.Stream))
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("orchestrator: run: %w", err)
	}
	return nil
}
