package llmrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/corvid-labs/mrsentry/internal/errs"
)

// ollamaClient is a hand-rolled client against a local Ollama server's REST
// API. No Go SDK exists in the example pack for raw generate/embeddings
// calls (github.com/ollama/ollama vendors the server binary, not an API
// client), so this follows the same net/http+encoding/json idiom as
// provider/gitlab.go and provider/bitbucket.go.
type ollamaClient struct {
	baseURL string
	model   string
	hc      *http.Client
}

func newOllamaClient(cfg ProfileConfig) Client {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ollamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		hc:      &http.Client{Timeout: timeout},
	}
}

type ollamaGenerateRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	System  string `json:"system,omitempty"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type ollamaEmbeddingsRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbeddingsResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (o *ollamaClient) doJSON(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return errs.Wrap(errs.Parse, "llmrouter.ollama", "marshal request body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return errs.Wrap(errs.Transport, "llmrouter.ollama", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.hc.Do(req)
	if err != nil {
		return errs.WrapRetriable(errs.Transport, "llmrouter.ollama", fmt.Sprintf("POST %s", path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errs.HTTPError("llmrouter.ollama", resp.StatusCode, path, string(snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.Parse, "llmrouter.ollama", "decode response body", err)
	}
	return nil
}

func (o *ollamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	body := ollamaGenerateRequest{
		Model:  o.model,
		Prompt: req.UserPrompt,
		System: req.SystemPrompt,
		Stream: false,
	}
	body.Options.Temperature = req.Temperature
	body.Options.NumPredict = req.MaxTokens

	var out ollamaGenerateResponse
	if err := o.doJSON(ctx, "/api/generate", body, &out); err != nil {
		return nil, err
	}
	return &GenerateResult{
		Text:             out.Response,
		PromptTokens:     out.PromptEvalCount,
		CompletionTokens: out.EvalCount,
	}, nil
}

func (o *ollamaClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := ollamaEmbeddingsRequest{Model: o.model, Input: texts}
	var out ollamaEmbeddingsResponse
	if err := o.doJSON(ctx, "/api/embed", body, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, errs.New(errs.Parse, "llmrouter.ollama", fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(out.Embeddings)))
	}
	return out.Embeddings, nil
}

func (o *ollamaClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return errs.Wrap(errs.Transport, "llmrouter.ollama", "build health check request", err)
	}
	resp, err := o.hc.Do(req)
	if err != nil {
		return errs.WrapRetriable(errs.Transport, "llmrouter.ollama", "health check", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errs.HTTPError("llmrouter.ollama", resp.StatusCode, "/api/tags", "")
	}
	return nil
}

var _ Client = (*ollamaClient)(nil)
