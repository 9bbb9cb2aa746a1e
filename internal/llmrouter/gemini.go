package llmrouter

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/corvid-labs/mrsentry/internal/errs"
)

const geminiEmbedBatchLimit = 100

// geminiClient wraps google.golang.org/genai for both text generation and
// embeddings, grounded on the Models.EmbedContent / Models.GenerateContent
// call shapes used across the example pack's genai integrations.
type geminiClient struct {
	client *genai.Client
	model  string
}

func newGeminiClient(cfg ProfileConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errs.New(errs.Config, "llmrouter.gemini", "gemini API key is required")
	}
	if cfg.Model == "" {
		return nil, errs.New(errs.Config, "llmrouter.gemini", "gemini model is required")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, errs.Wrap(errs.Config, "llmrouter.gemini", "create genai client", err)
	}
	return &geminiClient{client: client, model: cfg.Model}, nil
}

func (g *geminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "llmrouter.gemini", "generate content", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errs.New(errs.Parse, "llmrouter.gemini", "no candidates returned")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}

	result := &GenerateResult{Text: text}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

func (g *geminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiEmbedBatchLimit {
		end := min(start+geminiEmbedBatchLimit, len(texts))
		batch, err := g.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (g *geminiClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	result, err := g.client.Models.EmbedContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "llmrouter.gemini", "embed content", err)
	}
	out := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (g *geminiClient) HealthCheck(ctx context.Context) error {
	_, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{genai.NewContentFromText("ping", genai.RoleUser)}, &genai.GenerateContentConfig{MaxOutputTokens: 1})
	if err != nil {
		return errs.Wrap(errs.Transport, "llmrouter.gemini", fmt.Sprintf("health check against %s", g.model), err)
	}
	return nil
}

var _ Client = (*geminiClient)(nil)
