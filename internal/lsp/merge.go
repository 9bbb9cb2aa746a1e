package lsp

import (
	"sort"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/model"
)

// SymbolInfo is a flattened document symbol with byte-range and first-line
// signature, the output of ParseDocumentSymbols.
type SymbolInfo struct {
	Name       string
	StartByte  int
	EndByte    int
	Signature  string
	Deprecated bool
}

// ParseDocumentSymbols recursively flattens the DocumentSymbol tree into
// SymbolInfo values with byte ranges resolved against lineByteOffsets.
func ParseDocumentSymbols(symbols []DocumentSymbol, lines []string, lineByteOffsets []int) []SymbolInfo {
	var out []SymbolInfo
	var walk func(sym DocumentSymbol)
	walk = func(sym DocumentSymbol) {
		out = append(out, SymbolInfo{
			Name:      sym.Name,
			StartByte: positionToByte(sym.Range.Start, lines, lineByteOffsets),
			EndByte:   positionToByte(sym.Range.End, lines, lineByteOffsets),
			Signature: firstLineOf(sym.Detail, sym.Name),
		})
		for _, child := range sym.Children {
			walk(child)
		}
	}
	for _, s := range symbols {
		walk(s)
	}
	return out
}

func positionToByte(pos Position, lines []string, lineByteOffsets []int) int {
	if pos.Line < 0 || pos.Line >= len(lines) || pos.Line >= len(lineByteOffsets) {
		return 0
	}
	return lineByteOffsets[pos.Line] + utf16ColToByteOffset(lines[pos.Line], pos.Character)
}

func firstLineOf(detail, fallback string) string {
	if detail != "" {
		if idx := strings.IndexByte(detail, '\n'); idx >= 0 {
			return detail[:idx]
		}
		return detail
	}
	return fallback
}

// BestOverlap finds the SymbolInfo in symbols whose byte range
// best-overlaps [startByte, endByte), tolerating a ±1 eps for touching
// ranges, with a nearest-neighbor fallback when nothing overlaps (spec
// §4.3 step 7 "Merge").
func BestOverlap(symbols []SymbolInfo, startByte, endByte int) *SymbolInfo {
	const eps = 1
	var best *SymbolInfo
	bestOverlapLen := -1
	for i := range symbols {
		s := &symbols[i]
		overlapStart := max(s.StartByte-eps, startByte)
		overlapEnd := min(s.EndByte+eps, endByte)
		if overlapEnd <= overlapStart {
			continue
		}
		length := overlapEnd - overlapStart
		if length > bestOverlapLen {
			bestOverlapLen = length
			best = s
		}
	}
	if best != nil {
		return best
	}

	var nearest *SymbolInfo
	nearestDist := -1
	for i := range symbols {
		s := &symbols[i]
		dist := distanceToRange(startByte, s.StartByte, s.EndByte)
		if nearestDist < 0 || dist < nearestDist {
			nearestDist = dist
			nearest = s
		}
	}
	return nearest
}

func distanceToRange(point, start, end int) int {
	if point < start {
		return start - point
	}
	if point > end {
		return point - end
	}
	return 0
}

// ClassifyOrigin maps a URI scheme to OriginKind: `dart:` -> Sdk,
// `package:` -> Package, local `file://` inside the repo root -> Local,
// else Unknown.
func ClassifyOrigin(uri, repoRootURI string) model.OriginKind {
	switch {
	case strings.HasPrefix(uri, "dart:"):
		return model.OriginSdk
	case strings.HasPrefix(uri, "package:"):
		return model.OriginPackage
	case strings.HasPrefix(uri, "file://") && strings.HasPrefix(uri, repoRootURI):
		return model.OriginLocal
	default:
		return model.OriginUnknown
	}
}

// NormalizeURI rewrites a file:// URI under repoRootURI into a repo-relative
// path; SDK-like URIs outside the repo get a stable synthetic prefix (spec
// §4.3 step 9).
func NormalizeURI(uri, repoRootURI, sdkPrefix string) string {
	if strings.HasPrefix(uri, repoRootURI) {
		return strings.TrimPrefix(strings.TrimPrefix(uri, repoRootURI), "/")
	}
	if strings.HasPrefix(uri, "dart:") {
		return sdkPrefix + "/" + strings.TrimPrefix(uri, "dart:")
	}
	if strings.HasPrefix(uri, "package:") {
		return sdkPrefix + "/" + strings.TrimPrefix(uri, "package:")
	}
	return uri
}

const maxReferenceSample = 32

// BuildReferencesSample trims a full reference location list down to the
// configured sample size while reporting the true count.
func BuildReferencesSample(locations []Location, repoRootURI string) (count int, sample []model.LspReference) {
	count = len(locations)
	sort.Slice(locations, func(i, j int) bool { return locations[i].URI < locations[j].URI })
	for i, loc := range locations {
		if i >= maxReferenceSample {
			break
		}
		sample = append(sample, model.LspReference{
			URI: NormalizeURI(loc.URI, repoRootURI, "sdk"),
			Row: loc.Range.Start.Line,
			Col: loc.Range.Start.Character,
		})
	}
	return count, sample
}

// HoverOneLiner extracts the first non-empty, non-fenced line from a hover
// contents blob already reduced to plain text by the caller.
func HoverOneLiner(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "```") {
			continue
		}
		return trimmed
	}
	return ""
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// MergeEnrichment attaches the best-matching symbol, semantic histogram,
// hover, definitions, and references onto chunk's LSP field in place.
func MergeEnrichment(chunk *model.CodeChunk, best *SymbolInfo, tokens []Token, legend []string, hover string, definitions []model.LspDefinition, refsCount int, refsSample []model.LspReference) {
	enrichment := &model.LspEnrichment{}
	if best != nil {
		enrichment.Signature = best.Signature
	}
	overlapping := TokensOverlapping(tokens, chunk.Span.StartByte, chunk.Span.EndByte)
	hist := Histogram(overlapping, legend)
	enrichment.TokenHistogram = hist
	enrichment.TopTokenRatios = TopRatios(hist, 5)
	enrichment.HoverOneLiner = HoverOneLiner(hover)
	if len(definitions) > 0 {
		enrichment.Definition = &definitions[0]
		enrichment.Definitions = definitions
	}
	enrichment.ReferencesCount = refsCount
	enrichment.ReferencesSample = refsSample
	enrichment.FQN = chunk.SymbolPath
	enrichment.StableID = chunk.ID
	chunk.LSP = enrichment
}
