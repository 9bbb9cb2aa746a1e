package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/mrsentry/internal/config"
	"github.com/corvid-labs/mrsentry/internal/llmrouter"
)

var statusOutputJSON bool

type profileStatus struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Healthy  bool   `json:"healthy"`
	Error    string `json:"error,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Health-checks the configured fast/slow/embedding model profiles",
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		registry := llmrouter.NewRegistry()
		statuses := checkProfiles(ctx, registry, cfg.AI)

		if statusOutputJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(statuses)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "PROFILE\tPROVIDER\tMODEL\tHEALTHY\tERROR")
		for _, s := range statuses {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", s.Name, s.Provider, s.Model, s.Healthy, s.Error)
		}
		return w.Flush()
	},
}

// checkProfiles pings every configured profile's endpoint and reports a
// per-backend liveness result.
func checkProfiles(ctx context.Context, registry *llmrouter.Registry, cfg config.AIConfig) []profileStatus {
	var statuses []profileStatus
	named := []struct {
		name string
		cfg  llmrouter.ProfileConfig
	}{
		{"fast", cfg.Fast},
		{"slow", cfg.Slow},
		{"embedding", cfg.Embedding},
	}

	for _, n := range named {
		if n.cfg.Provider == "" {
			continue
		}
		s := profileStatus{Name: n.name, Provider: n.cfg.Provider, Model: n.cfg.Model}
		client, err := registry.GetOrCreate(n.cfg)
		if err != nil {
			s.Error = err.Error()
			statuses = append(statuses, s)
			continue
		}
		if err := client.HealthCheck(ctx); err != nil {
			s.Error = err.Error()
		} else {
			s.Healthy = true
		}
		statuses = append(statuses, s)
	}
	return statuses
}

func init() {
	statusCmd.Flags().BoolVar(&statusOutputJSON, "json", false, "Output status as JSON")
	rootCmd.AddCommand(statusCmd)
}
