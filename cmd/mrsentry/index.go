package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/mrsentry/internal/config"
	"github.com/corvid-labs/mrsentry/internal/llmrouter"
	"github.com/corvid-labs/mrsentry/internal/logger"
	"github.com/corvid-labs/mrsentry/internal/rag"
	"github.com/corvid-labs/mrsentry/internal/util"
)

var (
	indexInputPath string
	indexRepo      string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Ingest a CodeChunk JSONL stream into the vector store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if err := cfg.ValidateForCLI(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		log := logger.NewLogger(cfg.Logging, nil)

		registry := llmrouter.NewRegistry()
		embedCfg := cfg.AI.Embedding
		if embedCfg.Provider == "" {
			embedCfg = cfg.AI.Fast
		}
		embedder, err := registry.GetOrCreate(embedCfg)
		if err != nil {
			return fmt.Errorf("build embedding client: %w", err)
		}

		ragCfg := cfg.RAG
		if indexRepo != "" {
			ragCfg.Collection = util.GenerateCollectionName(indexRepo, embedCfg.Model)
			log.Info("indexing into a per-repo collection", "repo", indexRepo, "collection", ragCfg.Collection)
		}

		store, err := rag.NewStore(ragCfg)
		if err != nil {
			return fmt.Errorf("connect to vector store: %w", err)
		}
		defer store.Close()

		input := os.Stdin
		if indexInputPath != "" {
			f, err := os.Open(indexInputPath)
			if err != nil {
				return fmt.Errorf("open input file: %w", err)
			}
			defer f.Close()
			input = f
		}

		indexer := rag.NewIndexer(store, embedder, ragCfg, log)
		stats, err := indexer.IngestJSONL(ctx, input)
		if err != nil {
			return fmt.Errorf("ingest jsonl: %w", err)
		}

		log.Info("ingest complete", "indexed", stats.Indexed, "skipped", stats.Skipped)
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexInputPath, "input", "", "path to a CodeChunk JSONL file (defaults to stdin)")
	indexCmd.Flags().StringVar(&indexRepo, "repo", "", "owner/repo to index into its own collection, instead of the shared default")
	rootCmd.AddCommand(indexCmd)
}
