package dedup

import (
	"sort"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/model"
)

const proximityLines = 10

// Theme is the coarse body-keyword bucket a draft falls into.
type Theme string

const (
	ThemeCleanup Theme = "cleanup"
	ThemeRebuild Theme = "rebuild"
	ThemeRouting Theme = "routing"
	ThemeOther   Theme = "other"
)

var themeKeywords = map[Theme][]string{
	ThemeCleanup: {"dispose", "cleanup", "leak", "unsubscribe", "cancel", "close(", "free("},
	ThemeRebuild: {"rebuild", "re-render", "setstate", "recompute", "redundant build"},
	ThemeRouting: {"route", "navigat", "redirect", "endpoint", "handler"},
}

// groupByPath buckets drafts by their target file path.
func groupByPath(drafts []model.DraftComment) map[string][]model.DraftComment {
	out := map[string][]model.DraftComment{}
	for _, d := range drafts {
		out[d.Path] = append(out[d.Path], d)
	}
	return out
}

type ranged struct {
	draft      model.DraftComment
	start, end int
}

// clusterByProximity clusters drafts within one path by anchor range
// overlap or proximity (<=10 lines).
func clusterByProximity(drafts []model.DraftComment) [][]model.DraftComment {
	items := make([]ranged, len(drafts))
	for i, d := range drafts {
		start, end := targetRange(d.Target)
		items[i] = ranged{d, start, end}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].start < items[j].start })

	var clusters [][]model.DraftComment
	var current []ranged
	for _, it := range items {
		if len(current) == 0 {
			current = append(current, it)
			continue
		}
		last := current[len(current)-1]
		if overlapsOrClose(last.start, last.end, it.start, it.end, proximityLines) {
			current = append(current, it)
			continue
		}
		clusters = append(clusters, toDrafts(current))
		current = []ranged{it}
	}
	if len(current) > 0 {
		clusters = append(clusters, toDrafts(current))
	}
	return clusters
}

func toDrafts(items []ranged) []model.DraftComment {
	out := make([]model.DraftComment, len(items))
	for i, it := range items {
		out[i] = it.draft
	}
	return out
}

func targetRange(t model.TargetRef) (int, int) {
	switch t.Kind {
	case model.TargetLine:
		return t.Line, t.Line
	case model.TargetRange:
		return t.StartLine, t.EndLine
	case model.TargetSymbol:
		return t.DeclLine, t.DeclLine
	default:
		return 0, 0
	}
}

func overlapsOrClose(aStart, aEnd, bStart, bEnd, gap int) bool {
	if aEnd >= bStart-gap && bEnd >= aStart-gap {
		return true
	}
	return false
}

// partitionByTheme buckets drafts in a cluster by their coarse keyword theme.
func partitionByTheme(drafts []model.DraftComment) map[Theme][]model.DraftComment {
	out := map[Theme][]model.DraftComment{}
	for _, d := range drafts {
		out[classifyTheme(d.BodyMarkdown)] = append(out[classifyTheme(d.BodyMarkdown)], d)
	}
	return out
}

func classifyTheme(body string) Theme {
	lower := strings.ToLower(body)
	for _, theme := range []Theme{ThemeCleanup, ThemeRebuild, ThemeRouting} {
		for _, kw := range themeKeywords[theme] {
			if strings.Contains(lower, kw) {
				return theme
			}
		}
	}
	return ThemeOther
}
