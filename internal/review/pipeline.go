// Package review orchestrates the full MR review pipeline: delta symbol
// index, diff-to-target mapping, context building, LLM-routed draft
// generation, dedup, and publish.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/config"
	"github.com/corvid-labs/mrsentry/internal/core"
	"github.com/corvid-labs/mrsentry/internal/diffparse"
	"github.com/corvid-labs/mrsentry/internal/errs"
	"github.com/corvid-labs/mrsentry/internal/llmrouter"
	"github.com/corvid-labs/mrsentry/internal/model"
	"github.com/corvid-labs/mrsentry/internal/provider"
	"github.com/corvid-labs/mrsentry/internal/rag"
	rcontext "github.com/corvid-labs/mrsentry/internal/review/context"
	"github.com/corvid-labs/mrsentry/internal/review/dedup"
	"github.com/corvid-labs/mrsentry/internal/review/deltaindex"
	"github.com/corvid-labs/mrsentry/internal/review/drafter"
	"github.com/corvid-labs/mrsentry/internal/review/mapper"
	"github.com/corvid-labs/mrsentry/internal/review/publish"
)

// Pipeline wires every review stage behind a single Run call.
type Pipeline struct {
	Client       provider.Client
	Profiles     llmrouter.Profiles
	Policy       llmrouter.EscalationPolicy
	Retriever    *rag.Retriever // nil disables RAG-augmented context
	RAGConfig    rag.Config
	TempRootBase string
	PublishOpts  publish.Options
	DedupCalls   int // fast-LLM tiebreak budget for one run, 0 disables it
	Logger       *slog.Logger
}

// Result summarizes one run's outcome.
type Result struct {
	TargetCount int
	DraftCount  int
	Posted      []provider.PostResult
}

// NewPipeline builds a Pipeline, panicking on a nil Client or Logger per the
// teacher's fail-fast constructor convention.
func NewPipeline(client provider.Client, profiles llmrouter.Profiles, policy llmrouter.EscalationPolicy, logger *slog.Logger) *Pipeline {
	if client == nil || logger == nil {
		panic("review.NewPipeline received a nil client or logger")
	}
	return &Pipeline{
		Client:       client,
		Profiles:     profiles,
		Policy:       policy,
		RAGConfig:    rag.DefaultConfig(),
		TempRootBase: os.TempDir(),
		PublishOpts:  publish.Options{Concurrency: 4},
		Logger:       logger,
	}
}

// Run executes the full pipeline for one change request identified by id
// (provider-specific encoding, e.g. "owner/repo#123").
func (p *Pipeline) Run(ctx context.Context, id string) (*Result, error) {
	p.Logger.Info("starting review", "id", id)

	bundle, err := p.Client.FetchAll(ctx, id)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderHTTP, "review.pipeline", "fetch change request", err)
	}

	bundle.Changes = filterReviewableChanges(bundle.Changes)
	for i := range bundle.Changes {
		parseChangeDiff(&bundle.Changes[i])
	}

	tempRoot, err := os.MkdirTemp(p.TempRootBase, "mrsentry-review-*")
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "review.pipeline", "create run temp root", err)
	}
	defer os.RemoveAll(tempRoot)

	idx, err := deltaindex.Build(ctx, p.Client, bundle.Meta.ProjectPath, bundle.Changes, bundle.Meta.DiffRefs.HeadSHA, tempRoot)
	if err != nil {
		return nil, fmt.Errorf("build delta index: %w", err)
	}

	repoCfg := p.loadRepoConfig(ctx, bundle.Meta.ProjectPath, bundle.Meta.DiffRefs.HeadSHA, idx.TempRoot)

	targets := mapper.Map(bundle.Changes, idx, readLinesUnder(idx.TempRoot))
	targets = filterExcludedTargets(targets, repoCfg)
	p.Logger.Info("mapped targets", "id", id, "count", len(targets))

	memo := rcontext.NewMemo(0)
	usedEscalations := 0
	var drafts []model.DraftComment

	for _, target := range targets {
		pctx, err := rcontext.Build(idx.TempRoot, target, idx)
		if err != nil {
			p.Logger.Error("context build failed, skipping target", "path", target.Target.Path, "error", err)
			continue
		}
		if p.Retriever != nil {
			if err := rcontext.AttachRelated(ctx, p.Retriever, idx, target, memo, p.RAGConfig.TakePerTarget, &pctx); err != nil {
				p.Logger.Warn("related context lookup failed", "path", target.Target.Path, "error", err)
			}
		}

		draft, err := drafter.Generate(ctx, p.Profiles, p.Policy, target, pctx, repoCfg.CustomInstructions, &usedEscalations)
		if err != nil {
			p.Logger.Error("draft generation failed, skipping target", "path", target.Target.Path, "error", err)
			continue
		}
		if draft != nil {
			drafts = append(drafts, *draft)
		}
	}
	p.Logger.Info("drafted comments", "id", id, "count", len(drafts))

	budget := dedup.NewBudget(p.DedupCalls)
	deduped, err := dedup.Run(ctx, drafts, p.Profiles.Fast, budget)
	if err != nil {
		return nil, fmt.Errorf("dedup drafts: %w", err)
	}

	results, err := publish.Run(ctx, p.Client, bundle.Meta, deduped, p.PublishOpts)
	if err != nil {
		return nil, fmt.Errorf("publish drafts: %w", err)
	}

	p.Logger.Info("review complete", "id", id, "targets", len(targets), "drafts", len(deduped), "posted", countPosted(results))
	return &Result{TargetCount: len(targets), DraftCount: len(deduped), Posted: results}, nil
}

// parseChangeDiff lazily parses RawUnidiff into Diff for callers that only
// receive ChangeMeta from a provider's fetch_all.
func parseChangeDiff(change *provider.ChangeMeta) {
	if change.Diff != nil || strings.TrimSpace(change.RawUnidiff) == "" {
		return
	}
	fd, err := diffparse.ParseUnifiedDiff(change.RawUnidiff)
	if err != nil {
		return // malformed hunk: treated as no added lines downstream
	}
	change.Diff = fd
}

// readLinesUnder returns a line reader scoped to a materialized HEAD root,
// for the mapper's snippet-hash window reads.
func readLinesUnder(root string) func(path string) ([]string, error) {
	return func(path string) ([]string, error) {
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
		if err != nil {
			return nil, err
		}
		return strings.Split(string(content), "\n"), nil
	}
}

// loadRepoConfig fetches .mrsentry.yml from the reviewed project at headSHA,
// if present, and parses it the same way a checked-out repo's config would
// be read from disk. A missing or unparseable file falls back to defaults
// rather than failing the run.
func (p *Pipeline) loadRepoConfig(ctx context.Context, projectPath, headSHA, tempRoot string) *core.RepoConfig {
	content, err := p.Client.FetchFileRawAtRef(ctx, projectPath, ".mrsentry.yml", headSHA)
	if err != nil || content == nil {
		return core.DefaultRepoConfig()
	}
	if err := os.WriteFile(filepath.Join(tempRoot, ".mrsentry.yml"), content, 0o644); err != nil {
		p.Logger.Warn("failed to stage .mrsentry.yml", "error", err)
		return core.DefaultRepoConfig()
	}
	repoCfg, err := config.LoadRepoConfig(tempRoot)
	if err != nil && err != config.ErrConfigNotFound {
		p.Logger.Warn("failed to parse .mrsentry.yml, using defaults", "error", err)
		return core.DefaultRepoConfig()
	}
	return repoCfg
}

// filterExcludedTargets drops targets under a configured exclude_dirs entry
// or with a configured exclude_exts extension, on top of the pipeline's
// built-in reviewable-file classification.
func filterExcludedTargets(targets []model.MappedTarget, repoCfg *core.RepoConfig) []model.MappedTarget {
	if len(repoCfg.ExcludeDirs) == 0 && len(repoCfg.ExcludeExts) == 0 {
		return targets
	}
	out := make([]model.MappedTarget, 0, len(targets))
	for _, t := range targets {
		if isExcludedPath(t.Target.Path, repoCfg) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isExcludedPath(path string, repoCfg *core.RepoConfig) bool {
	cleanPath := filepath.ToSlash(path)
	for _, dir := range repoCfg.ExcludeDirs {
		dir = strings.Trim(filepath.ToSlash(dir), "/")
		if dir == "" {
			continue
		}
		if cleanPath == dir || strings.HasPrefix(cleanPath, dir+"/") {
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(cleanPath))
	for _, excluded := range repoCfg.ExcludeExts {
		excluded = strings.ToLower(strings.TrimPrefix(excluded, "."))
		if ext == "."+excluded {
			return true
		}
	}
	return false
}

func countPosted(results []provider.PostResult) int {
	n := 0
	for _, r := range results {
		if r.Posted {
			n++
		}
	}
	return n
}
