package rag

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/errs"
)

// rerank weights used by scoreCandidate to blend lexical signal into the
// vector similarity score.
const (
	weightTokenBase = 0.10
	weightSub       = 0.25
	weightAllSubs   = 0.35
	weightFull      = 0.40
	weightLang      = 0.10
	weightKVNear    = 0.70
	weightKVAny     = 0.30
	kvNearChars     = 120
)

var (
	quotedSubstringRe = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	queryTokenRe      = regexp.MustCompile(`[A-Za-z0-9_/:.]{3,}`)
	kvPairRe          = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*[:=]\s*"([^"]*)"`)
)

var knownLanguageTags = map[string]bool{
	"dart": true, "rust": true, "python": true, "typescript": true,
	"javascript": true, "go": true, "java": true, "kotlin": true,
	"swift": true, "csharp": true, "c": true, "cpp": true, "php": true,
	"ruby": true, "yaml": true, "json": true, "sql": true,
}

// Hit is one ranked retrieval result.
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]any
	FromFallback bool
}

// Result is a full query's outcome.
type Result struct {
	Hits                  []Hit
	HasStrongLexicalMatch bool
}

// Retriever runs the query path: embed once, primary vector search, lexical
// rerank, min_score + truncate, fallback scroll on search_terms, merge and
// boost, strong-lexical check.
type Retriever struct {
	store    *Store
	embedder Embedder
	cfg      Config
}

func NewRetriever(store *Store, embedder Embedder, cfg Config) *Retriever {
	return &Retriever{store: store, embedder: embedder, cfg: cfg}
}

// Query runs the full hybrid path for a single query string.
func (r *Retriever) Query(ctx context.Context, query string) (Result, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		return Result{}, errs.Wrap(errs.Storage, "rag.retrieval", "embed query", err)
	}

	primary, err := r.store.VectorSearch(ctx, vectors[0], r.cfg.PrimaryPoolSize())
	if err != nil {
		return Result{}, err
	}

	ranked := rerank(query, toHits(primary, false))

	if r.cfg.MinScore > 0 {
		ranked = filterMinScore(ranked, r.cfg.MinScore)
	}
	if len(ranked) > r.cfg.TopK {
		ranked = ranked[:r.cfg.TopK]
	}

	terms := tokenizeQuery(query)
	if len(terms) > 0 {
		scrollHits, err := r.store.ScrollBySearchTerms(ctx, terms, r.cfg.ScrollLimit())
		if err == nil && len(scrollHits) > 0 {
			fallback := rerank(query, toHits(scrollHits, true))
			ranked = mergeFallback(ranked, fallback, r.cfg.FallbackBoost, r.cfg.TopK)
		}
	}

	return Result{
		Hits:                  ranked,
		HasStrongLexicalMatch: hasStrongLexicalMatch(query, ranked),
	}, nil
}

func toHits(points []ScoredPoint, fromFallback bool) []Hit {
	out := make([]Hit, len(points))
	for i, p := range points {
		id, _ := p.Payload["id"].(string)
		out[i] = Hit{ID: id, Score: p.Score, Payload: p.Payload, FromFallback: fromFallback}
	}
	return out
}

// tokenizeQuery keeps alphanumeric runs of length >= 3 plus the characters
// `_/:.`, the token set the fallback scroll matches against search_terms.
func tokenizeQuery(query string) []string {
	return dedupeLower(queryTokenRe.FindAllString(query, -1))
}

func dedupeLower(tokens []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tokens {
		lt := strings.ToLower(t)
		if seen[lt] {
			continue
		}
		seen[lt] = true
		out = append(out, lt)
	}
	return out
}

// rerank scores each candidate: original vector score plus IDF-weighted
// token hits, quoted-substring bonuses, key:"value" proximity,
// raw-query-substring, and a language-hint bonus.
func rerank(query string, hits []Hit) []Hit {
	queryLower := strings.ToLower(query)
	tokens := dedupeLower(queryTokenRe.FindAllString(query, -1))
	idf := computeIDF(tokens, hits)
	quotedSubs := extractQuoted(query)
	kvPairs := kvPairRe.FindAllStringSubmatch(query, -1)
	firstToken := ""
	if len(tokens) > 0 {
		firstToken = tokens[0]
	}

	for i := range hits {
		haystack := buildHaystack(hits[i].Payload)
		haystackLower := strings.ToLower(haystack)
		score := hits[i].Score

		for _, tok := range tokens {
			if strings.Contains(haystackLower, tok) {
				score += weightTokenBase * idf[tok]
			}
		}

		allPresent := len(quotedSubs) > 0
		for _, sub := range quotedSubs {
			if strings.Contains(haystackLower, strings.ToLower(sub)) {
				score += weightSub
			} else {
				allPresent = false
			}
		}
		if allPresent {
			score += weightAllSubs
		}

		if strings.Contains(haystackLower, queryLower) {
			score += weightFull
		}

		if firstToken != "" && knownLanguageTags[firstToken] {
			score += weightLang
		}

		for _, kv := range kvPairs {
			key, val := strings.ToLower(kv[1]), strings.ToLower(kv[2])
			keyIdx := strings.Index(haystackLower, key)
			valIdx := strings.Index(haystackLower, val)
			if keyIdx < 0 || valIdx < 0 {
				continue
			}
			if dist := abs(keyIdx - valIdx); dist <= kvNearChars {
				score += weightKVNear
			} else {
				score += weightKVAny
			}
		}

		hits[i].Score = score
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}

func computeIDF(tokens []string, hits []Hit) map[string]float64 {
	idf := make(map[string]float64, len(tokens))
	n := float64(len(hits))
	if n == 0 {
		for _, t := range tokens {
			idf[t] = 1
		}
		return idf
	}
	for _, t := range tokens {
		df := 0
		for _, h := range hits {
			if strings.Contains(strings.ToLower(buildHaystack(h.Payload)), t) {
				df++
			}
		}
		idf[t] = math.Log(1+n/float64(1+df)) + 1
	}
	return idf
}

// buildHaystack builds the "symbol_path \n file \n signature? \n snippet?"
// lowercase haystack rerank matches query tokens against.
func buildHaystack(payload map[string]any) string {
	var b strings.Builder
	b.WriteString(str(payload["symbol_path"]))
	b.WriteByte('\n')
	b.WriteString(str(payload["file"]))
	if sig := str(payload["signature"]); sig != "" {
		b.WriteByte('\n')
		b.WriteString(sig)
	}
	if snip := str(payload["preview"]); snip != "" {
		b.WriteByte('\n')
		b.WriteString(snip)
	}
	return b.String()
}

func extractQuoted(query string) []string {
	var out []string
	for _, m := range quotedSubstringRe.FindAllStringSubmatch(query, -1) {
		if m[1] != "" {
			out = append(out, m[1])
		} else if m[2] != "" {
			out = append(out, m[2])
		}
	}
	return out
}

func filterMinScore(hits []Hit, minScore float64) []Hit {
	out := hits[:0]
	for _, h := range hits {
		if h.Score >= minScore {
			out = append(out, h)
		}
	}
	return out
}

// mergeFallback dedups fallback hits against ranked by id, applies the
// fallback boost to newly-added hits, re-sorts, and truncates to topK.
func mergeFallback(ranked, fallback []Hit, boost float64, topK int) []Hit {
	seen := map[string]bool{}
	for _, h := range ranked {
		seen[h.ID] = true
	}
	for _, h := range fallback {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		h.Score += boost
		ranked = append(ranked, h)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// hasStrongLexicalMatch reports true when any final hit's snippet contains
// the raw query or any quoted substring verbatim.
func hasStrongLexicalMatch(query string, hits []Hit) bool {
	queryLower := strings.ToLower(query)
	quoted := extractQuoted(query)
	for _, h := range hits {
		snippet := strings.ToLower(str(h.Payload["preview"]))
		if snippet == "" {
			continue
		}
		if strings.Contains(snippet, queryLower) {
			return true
		}
		for _, q := range quoted {
			if strings.Contains(snippet, strings.ToLower(q)) {
				return true
			}
		}
	}
	return false
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
