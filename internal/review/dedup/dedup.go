// Package dedup collapses overlapping or near-identical draft comments
// before publish.
package dedup

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/llmrouter"
	"github.com/corvid-labs/mrsentry/internal/model"
)

const hammingThreshold = 5

// Run executes the full pipeline: group by path, cluster by proximity,
// partition by theme, drop near-identical SimHash matches, and collapse
// any surviving multi-draft group to one via fastClient (budget-bounded)
// or a severity/patch/length heuristic fallback.
func Run(ctx context.Context, drafts []model.DraftComment, fastClient llmrouter.Client, budget *Budget) ([]model.DraftComment, error) {
	var result []model.DraftComment

	byPath := groupByPath(drafts)
	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		for _, cluster := range clusterByProximity(byPath[path]) {
			for _, theme := range []Theme{ThemeCleanup, ThemeRebuild, ThemeRouting, ThemeOther} {
				group := partitionByTheme(cluster)[theme]
				if len(group) == 0 {
					continue
				}
				survivors := dropNearIdentical(group)
				winner, err := collapse(ctx, survivors, fastClient, budget)
				if err != nil {
					return nil, err
				}
				if winner != nil {
					result = append(result, *winner)
				}
			}
		}
	}
	return result, nil
}

// dropNearIdentical computes a SimHash per draft and drops later drafts
// within Hamming distance <=5 of one already kept.
func dropNearIdentical(drafts []model.DraftComment) []model.DraftComment {
	var kept []model.DraftComment
	var hashes []uint64
	for _, d := range drafts {
		h := SimHash64(d.BodyMarkdown)
		isDup := false
		for _, kh := range hashes {
			if Hamming(h, kh) <= hammingThreshold {
				isDup = true
				break
			}
		}
		if isDup {
			continue
		}
		kept = append(kept, d)
		hashes = append(hashes, h)
	}
	return kept
}

// collapse reduces a theme cluster to at most one draft: when more than
// one survives, ask the fast LLM to pick one (budget-bounded), falling
// back to a deterministic heuristic when no budget remains or the call
// fails.
func collapse(ctx context.Context, drafts []model.DraftComment, fastClient llmrouter.Client, budget *Budget) (*model.DraftComment, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	if len(drafts) == 1 {
		return &drafts[0], nil
	}

	if fastClient != nil && budget != nil && budget.TryConsume() {
		if idx, err := tiebreakViaLLM(ctx, fastClient, drafts); err == nil && idx >= 0 && idx < len(drafts) {
			return &drafts[idx], nil
		}
	}

	return heuristicWinner(drafts), nil
}

// tiebreakViaLLM asks fastClient to choose one index among compact draft
// excerpts.
func tiebreakViaLLM(ctx context.Context, fastClient llmrouter.Client, drafts []model.DraftComment) (int, error) {
	var b strings.Builder
	b.WriteString("Pick the single best review comment among the candidates below. Respond with only the candidate number.\n\n")
	for i, d := range drafts {
		fmt.Fprintf(&b, "[%d] severity=%s\n%s\n\n", i, d.Severity, excerptBody(d.BodyMarkdown, 400))
	}

	result, err := fastClient.Generate(ctx, llmrouter.GenerateRequest{
		SystemPrompt: "You deduplicate overlapping code review comments. Return only the winning candidate's number.",
		UserPrompt:   b.String(),
		MaxTokens:    16,
		Temperature:  0,
	})
	if err != nil {
		return -1, err
	}
	return parseCandidateIndex(result.Text, len(drafts))
}

func excerptBody(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}
	return body[:maxLen] + "…"
}

func parseCandidateIndex(text string, n int) (int, error) {
	trimmed := strings.TrimSpace(text)
	var idx int
	if _, err := fmt.Sscanf(trimmed, "%d", &idx); err != nil {
		return -1, err
	}
	if idx < 0 || idx >= n {
		return -1, fmt.Errorf("dedup: candidate index %d out of range [0,%d)", idx, n)
	}
	return idx, nil
}

// heuristicWinner ranks drafts by severity desc, presence of a diff patch
// block, body length desc, then narrower anchor span, and returns the top.
func heuristicWinner(drafts []model.DraftComment) *model.DraftComment {
	best := 0
	for i := 1; i < len(drafts); i++ {
		if rankLess(drafts[best], drafts[i]) {
			best = i
		}
	}
	return &drafts[best]
}

// rankLess reports whether b outranks a per the fallback heuristic.
func rankLess(a, b model.DraftComment) bool {
	as, bs := a.Severity.Weight(), b.Severity.Weight()
	if as != bs {
		return bs > as
	}
	if a.HasPatch != b.HasPatch {
		return b.HasPatch
	}
	if len(a.BodyMarkdown) != len(b.BodyMarkdown) {
		return len(b.BodyMarkdown) > len(a.BodyMarkdown)
	}
	aStart, aEnd := targetRange(a.Target)
	bStart, bEnd := targetRange(b.Target)
	return (bEnd - bStart) < (aEnd - aStart)
}
