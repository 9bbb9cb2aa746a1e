package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/mrsentry/internal/app"
	"github.com/corvid-labs/mrsentry/internal/config"
	"github.com/corvid-labs/mrsentry/internal/logger"
)

var reviewCmd = &cobra.Command{
	Use:   "review <id>",
	Short: "Run one review for a change request id (e.g. owner/repo#123, group/proj!42, ws/repo#7)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id := args[0]

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if err := cfg.ValidateForCLI(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		log := logger.NewLogger(cfg.Logging, nil)

		application, cleanup, err := app.NewApp(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("initialize application: %w", err)
		}
		defer cleanup()

		result, err := application.NewPipeline().Run(ctx, id)
		if err != nil {
			return fmt.Errorf("run review: %w", err)
		}

		log.Info("review finished", "id", id, "targets", result.TargetCount, "drafts", result.DraftCount, "posted", len(result.Posted))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}
