package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/mrsentry/internal/app"
	"github.com/corvid-labs/mrsentry/internal/config"
	"github.com/corvid-labs/mrsentry/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server, dispatching a review per trigger comment",
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if err := cfg.ValidateForServer(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		log := logger.NewLogger(cfg.Logging, nil)
		log.Info("starting mrsentry server")

		application, cleanup, err := app.NewApp(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("initialize application: %w", err)
		}
		defer cleanup()

		go func() {
			if err := application.Serve(ctx); err != nil {
				log.Error("server error", "error", err)
				cancel()
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			log.Info("received shutdown signal")
		case <-ctx.Done():
			log.Info("context cancelled, shutting down")
		}

		if err := application.Stop(); err != nil {
			return fmt.Errorf("stop application: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
