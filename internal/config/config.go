package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/corvid-labs/mrsentry/internal/llmrouter"
	"github.com/corvid-labs/mrsentry/internal/logger"
	"github.com/corvid-labs/mrsentry/internal/rag"
)

const (
	llmProviderGemini = "gemini"
)

// Config represents the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	AI       AIConfig       `mapstructure:"ai"`
	RAG      rag.Config     `mapstructure:"rag"`
	LSP      LSPConfig      `mapstructure:"lsp"`
	Logging  logger.Config  `mapstructure:"logging"`
	Features FeaturesConfig `mapstructure:"features"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	MaxWorkers   int    `mapstructure:"max_workers"`
	SharedSecret string `mapstructure:"shared_secret"` // static webhook token checked for GitLab and Bitbucket
	RepoPath     string `mapstructure:"repo_path"`     // not read by any package; review runs materialize files under os.TempDir()
}

// ProviderKind names the hosting provider a ProviderConfig's credentials
// apply to.
type ProviderKind string

const (
	ProviderGitLab    ProviderKind = "gitlab"
	ProviderGitHub    ProviderKind = "github"
	ProviderBitbucket ProviderKind = "bitbucket"
)

type ProviderConfig struct {
	Kind ProviderKind `mapstructure:"kind"`

	// GitHub App installation auth (serve mode, single installation).
	GitHubAppID          int64  `mapstructure:"github_app_id"`
	GitHubInstallationID int64  `mapstructure:"github_installation_id"`
	GitHubWebhookSecret  string `mapstructure:"github_webhook_secret"`
	GitHubPrivateKeyPath string `mapstructure:"github_private_key_path"`

	// GitLab personal/project access token auth.
	GitLabBaseURL string `mapstructure:"gitlab_base_url"`
	GitLabToken   string `mapstructure:"gitlab_token"`

	// Bitbucket app password auth.
	BitbucketBaseURL     string `mapstructure:"bitbucket_base_url"`
	BitbucketUsername    string `mapstructure:"bitbucket_username"`
	BitbucketAppPassword string `mapstructure:"bitbucket_app_password"`

	// Token is a generic override for CLI invocations that preload a
	// single token rather than going through webhook-based app auth.
	Token string `mapstructure:"token"`
}

// AIConfig carries the fast/slow/embedding model profiles the llmrouter
// registry builds clients from, plus the escalation policy between them.
type AIConfig struct {
	Fast      llmrouter.ProfileConfig `mapstructure:"fast"`
	Slow      llmrouter.ProfileConfig `mapstructure:"slow"`
	Embedding llmrouter.ProfileConfig `mapstructure:"embedding"`

	Escalation llmrouter.EscalationPolicy `mapstructure:"escalation"`

	MaxConcurrentReviews int `mapstructure:"max_concurrent_reviews"`
}

// Validate checks that the profiles required by the configured escalation
// policy are actually present.
func (c *AIConfig) Validate() error {
	if c.Fast.Provider == "" {
		return errors.New("ai.fast.provider is required")
	}
	if c.Fast.Model == "" {
		return errors.New("ai.fast.model is required")
	}
	if c.Escalation.Enabled && c.Slow.Provider == "" {
		return errors.New("ai.escalation is enabled but ai.slow has no provider configured")
	}
	if c.MaxConcurrentReviews < 0 {
		return errors.New("ai.max_concurrent_reviews cannot be negative")
	}
	return nil
}

// LSPConfig maps a language id (as extractor/languages.go names it) to the
// server command to spawn for it. A language with no entry skips LSP
// enrichment for that extension.
type LSPConfig struct {
	Servers map[string]LSPServerConfig `mapstructure:"servers"`
}

type LSPServerConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

type FeaturesConfig struct {
	EnableRAG          bool `mapstructure:"enable_rag"`
	EnableLSP          bool `mapstructure:"enable_lsp"`
	DryRunPublish      bool `mapstructure:"dry_run_publish"`
	DedupCalls         int  `mapstructure:"dedup_calls"`
	PublishConcurrency int  `mapstructure:"publish_concurrency"`
}

// LoadConfig loads the configuration using Viper with the hierarchy:
// Flags (handled by caller) > Env Vars > Config File > Defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Set Defaults
	setDefaults(v)

	// 2. Read Config File
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	v.AddConfigPath(".")      // optionally look for config in the working directory
	v.AddConfigPath("$HOME/.mrsentry")

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			// Config file was found but another error occurred (e.g., syntax error)
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Info("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Loaded configuration", "file", v.ConfigFileUsed())
	}

	// 3. Environment Variables (Automatic mapping)
	// Map env vars like SERVER_PORT to server.port
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Unmarshal
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.max_workers", 5)
	v.SetDefault("server.repo_path", "./data/repos")

	// Provider
	v.SetDefault("provider.kind", "gitlab")
	v.SetDefault("provider.github_private_key_path", "keys/mrsentry-app.private-key.pem")

	// AI
	v.SetDefault("ai.fast.provider", "ollama")
	v.SetDefault("ai.fast.endpoint", "http://localhost:11434")
	v.SetDefault("ai.fast.model", "qwen2.5-coder:7b")
	v.SetDefault("ai.fast.timeout", "30s")
	v.SetDefault("ai.slow.provider", "gemini")
	v.SetDefault("ai.slow.model", "gemini-1.5-pro")
	v.SetDefault("ai.slow.timeout", "90s")
	v.SetDefault("ai.embedding.provider", "ollama")
	v.SetDefault("ai.embedding.endpoint", "http://localhost:11434")
	v.SetDefault("ai.embedding.model", "nomic-embed-text")
	v.SetDefault("ai.embedding.timeout", "30s")
	v.SetDefault("ai.escalation.enabled", true)
	v.SetDefault("ai.escalation.max_escalations", 2)
	v.SetDefault("ai.escalation.min_severity", "medium")
	v.SetDefault("ai.escalation.min_confidence", 0.6)
	v.SetDefault("ai.escalation.long_prompt_tokens", 3000)
	v.SetDefault("ai.max_concurrent_reviews", 4)

	// RAG
	def := rag.DefaultConfig()
	v.SetDefault("rag.qdrant_host", def.QdrantHost)
	v.SetDefault("rag.qdrant_port", def.QdrantPort)
	v.SetDefault("rag.collection", def.Collection)
	v.SetDefault("rag.dimensionality", def.Dimensionality)
	v.SetDefault("rag.distance", string(def.Distance))
	v.SetDefault("rag.upsert_batch_size", def.UpsertBatchSize)
	v.SetDefault("rag.embed_snippet_bound", def.EmbedSnippetBound)
	v.SetDefault("rag.preview_snippet_bound", def.PreviewBound)
	v.SetDefault("rag.max_top_imports", def.MaxTopImports)
	v.SetDefault("rag.max_search_terms", def.MaxSearchTerms)
	v.SetDefault("rag.top_k", def.TopK)
	v.SetDefault("rag.min_score", def.MinScore)
	v.SetDefault("rag.primary_pool_cap", def.PrimaryPoolCap)
	v.SetDefault("rag.scroll_multiplier", def.ScrollMultiplier)
	v.SetDefault("rag.scroll_cap", def.ScrollCap)
	v.SetDefault("rag.fallback_boost", def.FallbackBoost)
	v.SetDefault("rag.take_per_target", def.TakePerTarget)
	v.SetDefault("rag.embed_timeout", def.EmbedTimeout.String())
	v.SetDefault("rag.search_timeout", def.SearchTimeout.String())

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	// Features
	v.SetDefault("features.enable_rag", true)
	v.SetDefault("features.enable_lsp", true)
	v.SetDefault("features.dry_run_publish", false)
	v.SetDefault("features.dedup_calls", 20)
	v.SetDefault("features.publish_concurrency", 4)
}

func (c *Config) ValidateForServer() error {
	switch c.Provider.Kind {
	case ProviderGitHub:
		if c.Provider.GitHubAppID == 0 {
			return errors.New("provider.github_app_id is required")
		}
		if c.Provider.GitHubWebhookSecret == "" {
			return errors.New("provider.github_webhook_secret is required")
		}
		if c.Provider.GitHubInstallationID == 0 {
			return errors.New("provider.github_installation_id is required")
		}
		if _, err := os.Stat(c.Provider.GitHubPrivateKeyPath); os.IsNotExist(err) {
			return fmt.Errorf("github private key not found at path: %s", c.Provider.GitHubPrivateKeyPath)
		}
	case ProviderGitLab:
		if c.Provider.GitLabToken == "" {
			return errors.New("provider.gitlab_token is required")
		}
	case ProviderBitbucket:
		if c.Provider.BitbucketUsername == "" || c.Provider.BitbucketAppPassword == "" {
			return errors.New("provider.bitbucket_username and provider.bitbucket_app_password are required")
		}
	default:
		return fmt.Errorf("provider.kind %q is not one of gitlab, github, bitbucket", c.Provider.Kind)
	}
	if c.Server.SharedSecret == "" {
		return errors.New("server.shared_secret is required")
	}
	return c.validateAI()
}

func (c *Config) ValidateForCLI() error {
	return c.validateAI()
}

func (c *Config) validateAI() error {
	if isGeminiProfile(c.AI.Fast) || isGeminiProfile(c.AI.Slow) || isGeminiProfile(c.AI.Embedding) {
		if c.AI.Fast.APIKey == "" && c.AI.Slow.APIKey == "" && c.AI.Embedding.APIKey == "" {
			return errors.New("a gemini profile is configured but no ai.*.api_key is set")
		}
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai config invalid: %w", err)
	}
	return nil
}

func isGeminiProfile(p llmrouter.ProfileConfig) bool {
	return p.Provider == llmProviderGemini
}
