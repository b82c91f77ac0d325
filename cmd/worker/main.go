// Command worker runs the Worker Runtime (C12) for one agent_target: it
// consumes WORK.ITEM_DISPATCHED events addressed to that target and
// drives them through started -> (deliverable + completed) |
// clarification | failure.
//
// The per-domain computation a real deployment performs (time/cost/
// friction/scenario arithmetic, an LLM call, ...) is out of this repo's
// scope (spec §1); this binary wires a passthrough Reasoner that echoes
// work_context back, illustrating the protocol without inventing
// arithmetic the spec doesn't define.
//
// Usage:
//
//	worker --agent-target auditor
//	worker --agent-target migrator --consumer worker-2
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BourguignonSimon/eventflow/internal/bootstrap"
	"github.com/BourguignonSimon/eventflow/internal/ledger"
	"github.com/BourguignonSimon/eventflow/internal/streamrun"
	"github.com/BourguignonSimon/eventflow/internal/worker"
)

var (
	version      = "dev"
	agentTarget  string
	consumerName string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "worker",
	Short:   "Run an eventflow Worker bound to one agent_target",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		if agentTarget == "" {
			return fmt.Errorf("worker: --agent-target is required")
		}
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
	rootCmd.Flags().StringVar(&agentTarget, "agent-target", "", "agent_target this worker services (required)")
	rootCmd.Flags().StringVar(&consumerName, "consumer", "worker-1", "consumer name registered against this worker's consumer group")
}

func run(ctx context.Context) error {
	group := agentTarget + "s"
	stack, err := bootstrap.New(ctx, group)
	if err != nil {
		return err
	}

	ledgerStore := ledger.New(stack.Store, stack.Config.Substrate.KeyPrefix)
	rt := worker.New(stack.Store, stack.Config.Substrate.Stream, agentTarget, passthroughReasoner(agentTarget), ledgerStore, stack.Log, stack.Metrics)

	runner := streamrun.New(stack.Store, stack.Schemas, stack.Idempo, stack.DLQ, stack.Log, stack.Metrics, stack.RuntimeConfig(consumerName), rt.Handle)

	stack.Log.Info(ctx, "worker: starting", zap.String("agent_target", agentTarget), zap.String("group", group), zap.String("consumer", consumerName))
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("worker: run: %w", err)
	}
	return nil
}
