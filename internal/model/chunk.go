package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Features captures cheap, precomputed facts about a chunk's snippet so
// downstream consumers (payload building, hints) don't have to re-scan it.
type Features struct {
	ByteLen        int  `json:"byte_len"`
	LineCount      int  `json:"line_count"`
	HasDoc         bool `json:"has_doc"`
	HasAnnotations bool `json:"has_annotations"`
}

// Annotation is a parsed decorator/metadata/attribute attached to a symbol,
// e.g. `@override` or `#[derive(Debug)]`.
type Annotation struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Anchor is a byte range inside a chunk tagged by syntactic role.
type AnchorKind string

const (
	AnchorIdentifier AnchorKind = "identifier"
	AnchorString     AnchorKind = "string"
	AnchorCall       AnchorKind = "call"
)

type Anchor struct {
	Span Span       `json:"span"`
	Kind AnchorKind `json:"kind"`
	Text string     `json:"text,omitempty"`
}

// Graph carries the normalized edges the extractor derives for a chunk.
type Graph struct {
	CallsOut   []string            `json:"calls_out,omitempty"`
	UsesTypes  []string            `json:"uses_types,omitempty"`
	ImportsOut []string            `json:"imports_out,omitempty"`
	Facts      map[string][]string `json:"facts,omitempty"` // e.g. "routes" -> ["/games"]
}

// Hints carries lightweight retrieval-facing signals derived at extraction
// time.
type Hints struct {
	Keywords []string `json:"keywords,omitempty"`
	Category string   `json:"category,omitempty"`
	Title    string   `json:"title,omitempty"`
}

// Neighbors is the navigation graph among chunks of the same file,
// populated after chunks are sorted by span.start_byte.
type Neighbors struct {
	ParentID    string   `json:"parent_id,omitempty"`
	PrevID      string   `json:"prev_id,omitempty"`
	NextID      string   `json:"next_id,omitempty"`
	ChildrenIDs []string `json:"children_ids,omitempty"`
}

// LspDefinition is one candidate definition location for a symbol.
type LspDefinition struct {
	URI    string     `json:"uri"`
	Span   Span       `json:"span"`
	Origin OriginKind `json:"origin"`
}

// LspReference is a sampled usage location.
type LspReference struct {
	URI string `json:"uri"`
	Row int    `json:"row"`
	Col int    `json:"col"`
}

// LspEnrichment holds everything the LSP Enricher attaches to a chunk. It is
// optional: chunks produced by ingest-without-LSP carry a zero value.
type LspEnrichment struct {
	HoverOneLiner    string              `json:"hover_one_liner,omitempty"`
	Signature        string              `json:"lsp_signature,omitempty"`
	Definition       *LspDefinition      `json:"definition,omitempty"`
	Definitions      []LspDefinition     `json:"definitions,omitempty"`
	ReferencesCount  int                 `json:"references_count,omitempty"`
	ReferencesSample []LspReference      `json:"references_sample,omitempty"`
	TokenHistogram   map[string]int      `json:"token_histogram,omitempty"`
	TopTokenRatios   map[string]float64  `json:"top_token_ratios,omitempty"`
	FQN              string              `json:"fqn,omitempty"`
	StableID         string              `json:"stable_id,omitempty"`
	ImportsUsed      []string            `json:"imports_used,omitempty"`
	Metrics          map[string]float64  `json:"metrics,omitempty"`
	Tags             []string            `json:"tags,omitempty"`
}

// CodeChunk is the primary indexed entity: one addressable code entity with
// span, owner chain, and enrichment.
type CodeChunk struct {
	ID             string       `json:"id"`
	ContentSHA256  string       `json:"content_sha256"`
	File           string       `json:"file"`
	Language       LanguageKind `json:"language"`
	Span           Span         `json:"span"`
	OwnerPath      []string     `json:"owner_path"`
	Symbol         string       `json:"symbol"`
	SymbolPath     string       `json:"symbol_path"`
	Kind           SymbolKind   `json:"kind"`
	Signature      string       `json:"signature,omitempty"`
	Doc            string       `json:"doc,omitempty"`
	Annotations    []Annotation `json:"annotations,omitempty"`
	IsDefinition   bool         `json:"is_definition"`
	IsGenerated    bool         `json:"is_generated"`
	Imports        []string     `json:"imports,omitempty"`
	Snippet        string       `json:"snippet"`
	Features       Features     `json:"features"`
	Identifiers    []string     `json:"identifiers,omitempty"`
	Anchors        []Anchor     `json:"anchors,omitempty"`
	Graph          Graph        `json:"graph"`
	Hints          Hints        `json:"hints"`
	Neighbors      Neighbors    `json:"neighbors"`
	LSP            *LspEnrichment `json:"lsp,omitempty"`
	Extras         map[string]any `json:"extras,omitempty"`
}

// ComputeContentSHA256 hashes the chunk's own bytes (the snippet as
// extracted from source). It depends only on the chunk bytes, not on
// file/symbol_path/span, so the hash survives a symbol moving or being
// renamed.
func ComputeContentSHA256(chunkBytes []byte) string {
	sum := sha256.Sum256(chunkBytes)
	return hex.EncodeToString(sum[:])
}

// ComputeChunkID derives the stable chunk id from (file, symbol_path, span
// start/end bytes). Changing any one of the four changes the id.
func ComputeChunkID(file, symbolPath string, startByte, endByte int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d\x00%d", file, symbolPath, startByte, endByte)))
	return hex.EncodeToString(sum[:16])
}

// BuildSymbolPath joins the file and owner chain into the canonical
// "file::owner::...::symbol" form. file must be the first segment.
func BuildSymbolPath(file string, ownerPath []string, symbol string) string {
	segs := make([]string, 0, len(ownerPath)+2)
	segs = append(segs, file)
	segs = append(segs, ownerPath...)
	segs = append(segs, symbol)
	out := segs[0]
	for _, s := range segs[1:] {
		out += "::" + s
	}
	return out
}
