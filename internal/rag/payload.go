package rag

import (
	"regexp"
	"sort"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/model"
)

var (
	quotedPathRe = regexp.MustCompile(`["'](/[A-Za-z0-9_\-./:]+)["']`)
	barePathRe   = regexp.MustCompile(`(?:^|[\s(=])(/[A-Za-z][A-Za-z0-9_\-./:]*)`)
	camelBoundRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	tokenRe      = regexp.MustCompile(`[A-Za-z0-9_]+`)
)

// BuildPayload derives a VectorPayload from a chunk, clamping the preview to
// cfg.PreviewBound and bounding top_imports/search_terms. Routes and
// keywords come both from structured fields (graph.facts["routes"],
// hints.keywords) and from scanning snippet/signature/file text for quoted
// path literals, bare /path tokens, and camelCase-decomposed identifiers.
func BuildPayload(c model.CodeChunk, cfg Config) model.VectorPayload {
	routes := extractRoutes(c)
	terms := extractSearchTerms(c, cfg.MaxSearchTerms)

	docFirstLine := firstLine(c.Doc)
	preview := clamp(c.Snippet, cfg.PreviewBound)

	topImports := c.Imports
	if len(topImports) > cfg.MaxTopImports {
		topImports = topImports[:cfg.MaxTopImports]
	}

	payload := model.VectorPayload{
		ID:            c.ID,
		File:          c.File,
		Language:      string(c.Language),
		Kind:          string(c.Kind),
		Symbol:        c.Symbol,
		SymbolPath:    c.SymbolPath,
		Signature:     c.Signature,
		DocFirstLine:  docFirstLine,
		Preview:       preview,
		ContentSHA256: c.ContentSHA256,
		TopImports:    topImports,
		Tags:          c.Hints.Keywords,
		IsDefinition:  c.IsDefinition,
		Routes:        routes,
		SearchTerms:   terms,
	}
	if c.LSP != nil {
		payload.LspFQN = c.LSP.FQN
	}
	payload.SearchBlob = buildSearchBlob(c, payload)
	return payload
}

// BuildEmbeddingText composes the compact textual view embedded for dense
// search: language, kind, symbol_path, signature, first doc line, a clamped
// snippet (larger than the preview bound), top imports, routes, and
// keywords.
func BuildEmbeddingText(c model.CodeChunk, cfg Config) string {
	var b strings.Builder
	b.WriteString(string(c.Language))
	b.WriteByte(' ')
	b.WriteString(string(c.Kind))
	b.WriteByte(' ')
	b.WriteString(c.SymbolPath)
	if c.Signature != "" {
		b.WriteString("\n")
		b.WriteString(c.Signature)
	}
	if doc := firstLine(c.Doc); doc != "" {
		b.WriteString("\n")
		b.WriteString(doc)
	}
	if len(c.Imports) > 0 {
		b.WriteString("\nimports: ")
		b.WriteString(strings.Join(c.Imports, ", "))
	}
	if routes := extractRoutes(c); len(routes) > 0 {
		b.WriteString("\nroutes: ")
		b.WriteString(strings.Join(routes, ", "))
	}
	if len(c.Hints.Keywords) > 0 {
		b.WriteString("\nkeywords: ")
		b.WriteString(strings.Join(c.Hints.Keywords, ", "))
	}
	b.WriteString("\n")
	b.WriteString(clamp(c.Snippet, cfg.EmbedSnippetBound))
	return b.String()
}

func extractRoutes(c model.CodeChunk) []string {
	seen := map[string]bool{}
	var out []string
	add := func(r string) {
		if r == "" || seen[r] {
			return
		}
		seen[r] = true
		out = append(out, r)
	}
	for _, r := range c.Graph.Facts["routes"] {
		add(r)
	}
	for _, text := range []string{c.Snippet, c.Signature, c.File} {
		for _, m := range quotedPathRe.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
		for _, m := range barePathRe.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
	}
	sort.Strings(out)
	return out
}

func extractSearchTerms(c model.CodeChunk, limit int) []string {
	seen := map[string]bool{}
	var out []string
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] || len(out) >= limit {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	add(c.Symbol)
	for _, seg := range strings.Split(c.SymbolPath, "::") {
		add(seg)
	}
	for _, id := range c.Identifiers {
		add(id)
		for _, part := range decomposeCamelCase(id) {
			add(part)
		}
	}
	for _, kw := range c.Hints.Keywords {
		add(kw)
	}
	for _, tok := range tokenRe.FindAllString(c.Signature, -1) {
		add(tok)
	}
	return out
}

// decomposeCamelCase splits identTokens like "handleSubmit" or "UserID"
// into ["handle", "Submit"] / ["User", "ID"]-style pieces, feeding
// VectorPayload.SearchTerms.
func decomposeCamelCase(ident string) []string {
	spaced := camelBoundRe.ReplaceAllString(ident, "$1 $2")
	parts := strings.FieldsFunc(spaced, func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	var out []string
	for _, p := range parts {
		if len(p) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

func buildSearchBlob(c model.CodeChunk, p model.VectorPayload) string {
	var b strings.Builder
	b.WriteString(p.SymbolPath)
	b.WriteByte('\n')
	b.WriteString(p.File)
	if p.Signature != "" {
		b.WriteByte('\n')
		b.WriteString(p.Signature)
	}
	if c.Snippet != "" {
		b.WriteByte('\n')
		b.WriteString(c.Snippet)
	}
	return b.String()
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func clamp(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	return s[:maxChars] + "…"
}
