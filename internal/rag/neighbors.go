package rag

import "github.com/corvid-labs/mrsentry/internal/model"

// NeighborEntry is a compact, explainability-facing reference to a nearby
// chunk, attached alongside a retrieval hit.
type NeighborEntry struct {
	ID         string `json:"id"`
	Relation   string `json:"relation"` // "parent" | "prev" | "next" | "child"
	SymbolPath string `json:"symbol_path"`
	Preview    string `json:"preview"`
}

// AttachNeighbors resolves a chunk's model.Neighbors into at most topK
// NeighborEntry values, looking each one up in byID (typically built once
// from the same JSONL the stitcher streams). Parent and prev/next take
// priority over children when topK forces a cut, since they're usually more
// informative for a single-symbol explanation.
func AttachNeighbors(chunk model.CodeChunk, byID map[string]model.CodeChunk, topK int) []NeighborEntry {
	var out []NeighborEntry
	add := func(id, relation string) {
		if len(out) >= topK || id == "" {
			return
		}
		n, ok := byID[id]
		if !ok {
			return
		}
		out = append(out, NeighborEntry{ID: id, Relation: relation, SymbolPath: n.SymbolPath, Preview: firstLine(n.Snippet)})
	}

	add(chunk.Neighbors.ParentID, "parent")
	add(chunk.Neighbors.PrevID, "prev")
	add(chunk.Neighbors.NextID, "next")
	for _, childID := range chunk.Neighbors.ChildrenIDs {
		add(childID, "child")
	}
	return out
}
