package extractor

import (
	"sort"

	"github.com/corvid-labs/mrsentry/internal/model"
)

// LinkNeighbors assigns Neighbors.{ParentID,ChildrenIDs,PrevID,NextID} across
// every chunk belonging to one file, in two passes: first sort by
// span.start_byte, then derive containment (parent/children) from byte-range
// nesting and sibling order from adjacency in that sort. Adapted from the
// two-pass graph-neighbor enrichment in codegraph-prep's neighbors.rs,
// simplified from full graph-edge ranking to span containment since a single
// file's chunks form a strict nesting tree.
func LinkNeighbors(chunks []*model.CodeChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Span.StartByte < chunks[j].Span.StartByte
	})

	for i, c := range chunks {
		if parent := findEnclosingParent(chunks, i); parent != nil {
			c.Neighbors.ParentID = parent.ID
			parent.Neighbors.ChildrenIDs = append(parent.Neighbors.ChildrenIDs, c.ID)
		}
		if i > 0 {
			c.Neighbors.PrevID = chunks[i-1].ID
		}
		if i < len(chunks)-1 {
			c.Neighbors.NextID = chunks[i+1].ID
		}
	}
}

// findEnclosingParent scans backward from i for the smallest span among
// chunks[:i] that strictly contains chunks[i]'s span. Byte-sorted start
// positions mean any enclosing ancestor must precede i in the slice.
func findEnclosingParent(chunks []*model.CodeChunk, i int) *model.CodeChunk {
	target := chunks[i].Span
	var best *model.CodeChunk
	for j := i - 1; j >= 0; j-- {
		cand := chunks[j].Span
		contains := cand.StartByte <= target.StartByte && cand.EndByte >= target.EndByte
		strictlyLarger := cand.EndByte-cand.StartByte > target.EndByte-target.StartByte
		if !contains || !strictlyLarger {
			continue
		}
		if best == nil || (cand.EndByte-cand.StartByte) < (best.Span.EndByte-best.Span.StartByte) {
			best = chunks[j]
		}
	}
	return best
}
