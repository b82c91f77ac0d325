// Command validator runs the Validator Service (C13): a stream consumer
// whose only job is envelope+payload schema validation. Entries that fail
// validation are quarantined to the DLQ by internal/streamrun before the
// handler ever runs; everything reaching the handler simply acks.
//
// Usage:
//
//	validator
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
	"github.com/BourguignonSimon/eventflow/internal/streamrun"
	"github.com/BourguignonSimon/eventflow/internal/validator"
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
	Use:     "validator",
	Short:   "Run the eventflow Validator Service",
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
	rootCmd.Flags().StringVar(&consumerName, "consumer", "validator-1", "consumer name registered against the validator consumer group")
}

func run(ctx context.Context) error {
	stack, err := bootstrap.New(ctx, "validators")
	if err != nil {
		return err
	}

	runner := streamrun.New(stack.Store, stack.Schemas, stack.Idempo, stack.DLQ, stack.Log, stack.Metrics, stack.RuntimeConfig(consumerName), validator.Handle)

	stack.Log.Info(ctx, "validator: starting", zap.String("consumer", consumerName), zap.String("stream", stack.Config.Substrate.Stream))
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("validator: run: %w", err)
	}
	return nil
}
