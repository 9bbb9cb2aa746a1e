// Package app initializes and orchestrates the main application components:
// configuration, the shared LLM client registry, the optional RAG store,
// and the review pipeline bound to one provider client.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/corvid-labs/mrsentry/internal/config"
	"github.com/corvid-labs/mrsentry/internal/jobs"
	"github.com/corvid-labs/mrsentry/internal/llmrouter"
	"github.com/corvid-labs/mrsentry/internal/provider"
	"github.com/corvid-labs/mrsentry/internal/rag"
	"github.com/corvid-labs/mrsentry/internal/review"
	"github.com/corvid-labs/mrsentry/internal/review/publish"
	"github.com/corvid-labs/mrsentry/internal/server"
)

// App holds the main application components: the model registry, optional
// RAG store, and a single provider client shared across the run. A run
// reviews one hosting account (one GitHub App installation, one GitLab
// token, one Bitbucket workspace) at a time.
type App struct {
	Cfg      *config.Config
	Registry *llmrouter.Registry
	Profiles llmrouter.Profiles
	Client   provider.Client

	ragStore  *rag.Store     // nil when Features.EnableRAG is false
	Retriever *rag.Retriever // nil when Features.EnableRAG is false

	logger     *slog.Logger
	server     *server.Server
	dispatcher jobs.Dispatcher
}

// NewApp builds every long-lived dependency from cfg: the provider client,
// the model registry, and, when enabled, the RAG store and retriever.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	logger.Info("initializing application",
		"fast_provider", cfg.AI.Fast.Provider,
		"slow_provider", cfg.AI.Slow.Provider,
		"max_workers", cfg.Server.MaxWorkers,
		"provider_kind", cfg.Provider.Kind,
	)

	client, err := newProviderClient(ctx, cfg.Provider, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build provider client: %w", err)
	}

	registry := llmrouter.NewRegistry()
	profiles, err := buildProfiles(registry, cfg.AI)
	if err != nil {
		return nil, nil, fmt.Errorf("build model profiles: %w", err)
	}

	a := &App{
		Cfg:      cfg,
		logger:   logger,
		Registry: registry,
		Profiles: profiles,
		Client:   client,
	}

	cleanup := func() {}
	if cfg.Features.EnableRAG {
		store, err := rag.NewStore(cfg.RAG)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to vector store: %w", err)
		}
		a.ragStore = store
		a.Retriever = rag.NewRetriever(store, profiles.Embedding, cfg.RAG)
		cleanup = func() { _ = store.Close() }
	}

	logger.Info("application initialized successfully")
	return a, cleanup, nil
}

// newProviderClient builds the one provider.Client the app uses for the
// life of the process, choosing the constructor by cfg.Kind. For GitHub,
// serve mode (ValidateForServer) authenticates as one App installation;
// CLI invocations fall back to a personal access token since they never
// run ValidateForServer's installation-id check.
func newProviderClient(ctx context.Context, cfg config.ProviderConfig, logger *slog.Logger) (provider.Client, error) {
	switch cfg.Kind {
	case config.ProviderGitHub:
		if cfg.GitHubAppID != 0 && cfg.GitHubInstallationID != 0 {
			key, err := os.ReadFile(cfg.GitHubPrivateKeyPath)
			if err != nil {
				return nil, fmt.Errorf("read github private key: %w", err)
			}
			return provider.NewGitHubInstallationClient(ctx, cfg.GitHubAppID, cfg.GitHubInstallationID, key, logger)
		}
		if cfg.Token != "" {
			return provider.NewGitHubPATClient(ctx, cfg.Token, logger), nil
		}
		return nil, errors.New("provider.token or provider.github_app_id/github_installation_id is required for github auth")
	case config.ProviderGitLab:
		return provider.NewGitLabClient(cfg.GitLabBaseURL, cfg.GitLabToken, logger), nil
	case config.ProviderBitbucket:
		return provider.NewBitbucketClient(cfg.BitbucketUsername, cfg.BitbucketAppPassword, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}

// buildProfiles resolves fast/slow/embedding clients through the shared
// registry. Slow and embedding are optional: a zero Provider leaves Slow
// nil (the drafter then runs Slow routing decisions on the Fast client and
// skips post-run escalation) and falls Embedding back to Fast.
func buildProfiles(registry *llmrouter.Registry, cfg config.AIConfig) (llmrouter.Profiles, error) {
	var profiles llmrouter.Profiles

	fast, err := registry.GetOrCreate(cfg.Fast)
	if err != nil {
		return profiles, fmt.Errorf("fast profile: %w", err)
	}
	profiles.Fast = fast

	if cfg.Slow.Provider != "" {
		slow, err := registry.GetOrCreate(cfg.Slow)
		if err != nil {
			return profiles, fmt.Errorf("slow profile: %w", err)
		}
		profiles.Slow = slow
	}

	if cfg.Embedding.Provider != "" {
		embedding, err := registry.GetOrCreate(cfg.Embedding)
		if err != nil {
			return profiles, fmt.Errorf("embedding profile: %w", err)
		}
		profiles.Embedding = embedding
	} else {
		profiles.Embedding = fast
	}

	return profiles, nil
}

// NewPipeline builds a review.Pipeline bound to the app's shared provider
// client, model registry, RAG retriever, and dedup/publish settings.
func (a *App) NewPipeline() *review.Pipeline {
	p := review.NewPipeline(a.Client, a.Profiles, a.Cfg.AI.Escalation, a.logger)
	p.Retriever = a.Retriever
	p.RAGConfig = a.Cfg.RAG
	p.DedupCalls = a.Cfg.Features.DedupCalls
	p.PublishOpts = publish.Options{
		DryRun:      a.Cfg.Features.DryRunPublish,
		Concurrency: a.Cfg.Features.PublishConcurrency,
	}
	return p
}

// Serve starts the webhook dispatcher and HTTP server; it blocks until the
// server stops or fails.
func (a *App) Serve(ctx context.Context) error {
	job := jobs.NewReviewJob(a.NewPipeline(), a.logger)
	a.dispatcher = jobs.NewDispatcher(job, a.Cfg.Server.MaxWorkers, a.logger)
	a.server = server.New(ctx, a.Cfg, a.dispatcher, a.logger)
	return a.server.Start()
}

// Stop gracefully shuts down the HTTP server and dispatcher, if running.
func (a *App) Stop() error {
	var shutdownErr error
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}
	return shutdownErr
}
