// Package drafter renders the per-target review prompt, routes it through
// the fast/slow profile, and parses the model's reply into a DraftComment:
// the generation stage that sits between the Context Builder and the LLM
// Router's routing decision.
package drafter

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/corvid-labs/mrsentry/internal/errs"
	rcontext "github.com/corvid-labs/mrsentry/internal/review/context"
	"github.com/corvid-labs/mrsentry/internal/llmrouter"
	"github.com/corvid-labs/mrsentry/internal/model"
)

//go:embed prompts/draft.prompt
var promptFiles embed.FS

var draftTemplate = template.Must(template.ParseFS(promptFiles, "prompts/draft.prompt"))

const systemPrompt = "You are an experienced code reviewer leaving precise, actionable inline comments on a merge request. You never invent behavior you cannot see in the provided context."

const (
	fastMaxTokens = 768
	slowMaxTokens = 1536
	temperature   = 0.2

	// initialConfidence seeds the pre-generation RouteHint optimistically,
	// since there is no model output yet to judge confidence from; only the
	// prompt-length signal can trigger a direct-to-slow decision this early.
	initialConfidence = 1.0
)

type promptData struct {
	Path               string
	TargetKind         model.TargetKind
	TouchesDecl        bool
	Preview            string
	NumberedSnippet    string
	EnclosingSnippet   string
	EnclosingName      string
	EnclosingStart     int
	EnclosingEnd       int
	CallsTop           []string
	Writes             []string
	ControlFlow        []string
	CleanupLike        []string
	RelatedContext     string
	FullFileReadOnly   string
	CustomInstructions []string
}

// Generate routes target's prompt through fast (escalating to slow when the
// fast pass reports low confidence or the pre-generation hint already looks
// heavy) and returns the resulting draft, or nil when the model found
// nothing worth flagging. customInstructions come from the reviewed repo's
// .mrsentry.yml, if any, and are appended to the prompt verbatim.
func Generate(ctx context.Context, profiles llmrouter.Profiles, policy llmrouter.EscalationPolicy, target model.MappedTarget, pctx rcontext.PrimaryCtx, customInstructions []string, usedEscalations *int) (*model.DraftComment, error) {
	prompt, err := renderPrompt(target, pctx, customInstructions)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "review.drafter", "render prompt", err)
	}
	promptTokensApprox := len(prompt) / 4

	hint := llmrouter.RouteHint{
		TargetKind:         routerTargetKind(target.Target.Kind),
		PromptTokensApprox: promptTokensApprox,
		Severity:           routerSeverityGuess(target),
		Confidence:         initialConfidence,
		UsedEscalations:    *usedEscalations,
		RangeSpanLines:     rangeSpan(target),
	}

	decision := llmrouter.RouteFor(hint, policy)
	result, err := runOne(ctx, profiles, decision, prompt)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	if decision == llmrouter.ProfileFast {
		hint.Severity = routerSeverity(result.severity)
		if llmrouter.ShouldEscalate(hint, result.confidence, policy) && profiles.Slow != nil {
			*usedEscalations++
			escalated, err := runOne(ctx, profiles, llmrouter.ProfileSlow, prompt)
			if err != nil {
				return nil, err
			}
			if escalated != nil {
				result = escalated
			}
		}
	}

	if result.noIssue {
		return nil, nil
	}

	return &model.DraftComment{
		Target:       target.Target,
		Path:         target.Target.Path,
		BodyMarkdown: result.body,
		Severity:     result.severity,
		SnippetHash:  target.SnippetHash,
		HasPatch:     strings.Contains(result.body, "```diff"),
	}, nil
}

func runOne(ctx context.Context, profiles llmrouter.Profiles, profile llmrouter.Profile, prompt string) (*draftResult, error) {
	client := profiles.Fast
	maxTokens := fastMaxTokens
	if profile == llmrouter.ProfileSlow && profiles.Slow != nil {
		client = profiles.Slow
		maxTokens = slowMaxTokens
	}
	if client == nil {
		return nil, errs.New(errs.Config, "review.drafter", "no fast profile client configured")
	}

	resp, err := client.Generate(ctx, llmrouter.GenerateRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    maxTokens,
		Temperature:  temperature,
	})
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "review.drafter", "generate draft", err)
	}
	return parseDraftResponse(resp.Text)
}

func renderPrompt(target model.MappedTarget, pctx rcontext.PrimaryCtx, customInstructions []string) (string, error) {
	data := promptData{
		Path:               pctx.Path,
		TargetKind:         target.Target.Kind,
		TouchesDecl:        target.Evidence.TouchesDecl,
		Preview:            target.Preview,
		NumberedSnippet:    pctx.NumberedSnippet,
		RelatedContext:     pctx.RelatedContext,
		FullFileReadOnly:   pctx.FullFileReadOnly,
		CustomInstructions: customInstructions,
	}
	if cf := pctx.CodeFacts; cf != nil {
		data.EnclosingSnippet = cf.EnclosingSnippet
		data.CallsTop = cf.CallsTop
		data.Writes = cf.Writes
		data.ControlFlow = cf.ControlFlow
		data.CleanupLike = cf.CleanupLike
		if cf.Enclosing != nil {
			data.EnclosingName = cf.Enclosing.Name
			data.EnclosingStart = cf.Enclosing.StartLine
			data.EnclosingEnd = cf.Enclosing.EndLine
		}
	}

	var buf bytes.Buffer
	if err := draftTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute draft template: %w", err)
	}
	return buf.String(), nil
}

func routerTargetKind(k model.TargetKind) llmrouter.TargetKind {
	switch k {
	case model.TargetLine:
		return llmrouter.TargetLine
	case model.TargetRange:
		return llmrouter.TargetRange
	case model.TargetSymbol:
		return llmrouter.TargetSymbol
	case model.TargetFile:
		return llmrouter.TargetFile
	default:
		return llmrouter.TargetGlobal
	}
}

func routerSeverityGuess(target model.MappedTarget) llmrouter.Severity {
	if target.Evidence.TouchesDecl {
		return llmrouter.SeverityMedium
	}
	return llmrouter.SeverityLow
}

func routerSeverity(s model.Severity) llmrouter.Severity {
	switch s {
	case model.SeverityHigh:
		return llmrouter.SeverityHigh
	case model.SeverityMedium:
		return llmrouter.SeverityMedium
	default:
		return llmrouter.SeverityLow
	}
}

func rangeSpan(target model.MappedTarget) int {
	if target.Target.Kind != model.TargetRange {
		return 0
	}
	span := target.Target.EndLine - target.Target.StartLine
	if span < 0 {
		return 0
	}
	return span
}
