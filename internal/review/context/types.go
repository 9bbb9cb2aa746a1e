// Package context builds the per-target PrimaryCtx the LLM router and
// draft generation consume: a numbered file window, allowed anchors,
// optional full-file read-only context, code facts, and RAG-augmented
// related context.
package context

import "github.com/corvid-labs/mrsentry/internal/model"

// AnchorRange is an inclusive 1-based line range the LLM is permitted to
// anchor a patch to.
type AnchorRange struct {
	Start int
	End   int
}

// EnclosingInfo names the symbol that owns the first allowed anchor.
type EnclosingInfo struct {
	Kind      model.SymbolKind
	Name      string
	StartLine int
	EndLine   int
}

// ChunkInfo is one fixed-size slice of the enclosing scope, with the
// anchor's position within the chunk sequence recorded for the model.
type ChunkInfo struct {
	Index   int
	Total   int
	From    int
	To      int
	Snippet string
}

// CodeFacts are the light, language-agnostic signals computed over the
// enclosing scope of the first allowed anchor.
type CodeFacts struct {
	File            string
	Anchor          AnchorRange
	Enclosing       *EnclosingInfo
	EnclosingSnippet string
	Chunk           ChunkInfo
	CallsTop        []string
	Writes          []string
	ControlFlow     []string
	CleanupLike     []string
}

// PrimaryCtx is everything the Context Builder produces for one mapped
// target.
type PrimaryCtx struct {
	Path            string
	NumberedSnippet string
	AllowedAnchors  []AnchorRange
	FullFileReadOnly string // empty when not included
	CodeFacts       *CodeFacts
	RelatedContext  string // RAG-augmented, read-only
}
