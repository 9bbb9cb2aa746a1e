package config

import (
	"testing"

	"github.com/corvid-labs/mrsentry/internal/llmrouter"
)

func TestAIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  AIConfig
		wantErr bool
	}{
		{
			name: "valid fast-only config",
			config: AIConfig{
				Fast: llmrouter.ProfileConfig{Provider: "ollama", Model: "qwen2.5-coder:7b"},
			},
			wantErr: false,
		},
		{
			name:    "missing fast provider",
			config:  AIConfig{Fast: llmrouter.ProfileConfig{Model: "qwen2.5-coder:7b"}},
			wantErr: true,
		},
		{
			name:    "missing fast model",
			config:  AIConfig{Fast: llmrouter.ProfileConfig{Provider: "ollama"}},
			wantErr: true,
		},
		{
			name: "escalation enabled without a slow profile",
			config: AIConfig{
				Fast:       llmrouter.ProfileConfig{Provider: "ollama", Model: "qwen2.5-coder:7b"},
				Escalation: llmrouter.EscalationPolicy{Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "escalation enabled with a slow profile",
			config: AIConfig{
				Fast:       llmrouter.ProfileConfig{Provider: "ollama", Model: "qwen2.5-coder:7b"},
				Slow:       llmrouter.ProfileConfig{Provider: "gemini", Model: "gemini-1.5-pro"},
				Escalation: llmrouter.EscalationPolicy{Enabled: true},
			},
			wantErr: false,
		},
		{
			name: "negative max concurrent reviews",
			config: AIConfig{
				Fast:                 llmrouter.ProfileConfig{Provider: "ollama", Model: "qwen2.5-coder:7b"},
				MaxConcurrentReviews: -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("AIConfig.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateForCLI_RequiresGeminiKeyWhenGeminiConfigured(t *testing.T) {
	cfg := &Config{
		AI: AIConfig{
			Fast: llmrouter.ProfileConfig{Provider: "gemini", Model: "gemini-1.5-pro"},
		},
	}
	if err := cfg.ValidateForCLI(); err == nil {
		t.Error("ValidateForCLI() expected error for gemini profile without api key, got nil")
	}

	cfg.AI.Fast.APIKey = "test-key"
	if err := cfg.ValidateForCLI(); err != nil {
		t.Errorf("ValidateForCLI() unexpected error: %v", err)
	}
}

func TestConfig_ValidateForServer_RejectsUnknownProviderKind(t *testing.T) {
	cfg := &Config{
		Provider: ProviderConfig{Kind: "unknown"},
		AI:       AIConfig{Fast: llmrouter.ProfileConfig{Provider: "ollama", Model: "qwen2.5-coder:7b"}},
	}
	if err := cfg.ValidateForServer(); err == nil {
		t.Error("ValidateForServer() expected error for unknown provider kind, got nil")
	}
}

func TestConfig_ValidateForServer_GitHubRequiresInstallationID(t *testing.T) {
	cfg := &Config{
		Provider: ProviderConfig{
			Kind:                ProviderGitHub,
			GitHubAppID:         1,
			GitHubWebhookSecret: "s3cr3t",
		},
		Server: ServerConfig{SharedSecret: "shared"},
		AI:     AIConfig{Fast: llmrouter.ProfileConfig{Provider: "ollama", Model: "qwen2.5-coder:7b"}},
	}
	if err := cfg.ValidateForServer(); err == nil {
		t.Error("ValidateForServer() expected error when github_installation_id is missing, got nil")
	}
}
