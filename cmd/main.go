package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pgmigrator/internal/app"
	"pgmigrator/internal/config"
	"pgmigrator/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "pgmigrator",
	Short: "Copy selected records between PostgreSQL databases in resumable batches",
	Long: `A batched, resumable record migrator between two PostgreSQL databases.
Each batch is committed in one target transaction and checkpointed per task,
so an interrupted run picks up after the last committed batch.`,
	SilenceUsage: true,
	RunE:         runMigration,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML)")
	config.RegisterFlags(rootCmd.Flags())
}

func runMigration(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	migrator, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go cancelOnSignal(ctx, sigChan, cancel, log)

	_, err = migrator.Run(ctx)

	if closeErr := migrator.Close(); closeErr != nil {
		log.Error("Error closing migrator", zap.Error(closeErr))
	}

	return err
}

// cancelOnSignal cancels the run on the first signal. Cancellation aborts
// the in-flight batch, which rolls back.
func cancelOnSignal(ctx context.Context, sigChan <-chan os.Signal, cancel context.CancelFunc, log *zap.Logger) {
	select {
	case <-sigChan:
		log.Info("Received shutdown signal, aborting the current batch...")
		cancel()
	case <-ctx.Done():
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
