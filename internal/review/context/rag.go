package context

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/corvid-labs/mrsentry/internal/model"
	"github.com/corvid-labs/mrsentry/internal/rag"
	"github.com/corvid-labs/mrsentry/internal/review/deltaindex"
)

const (
	relatedMemoCap       = 64
	astFactsMaxEntries   = 12
	minQueryLen          = 32
)

// Memo is a small FIFO-bounded cache keyed by "path#anchorLine", mirroring
// the original's in-process related-context memo.
type Memo struct {
	mu    sync.Mutex
	cap   int
	order []string
	vals  map[string]string
}

func NewMemo(cap int) *Memo {
	if cap <= 0 {
		cap = relatedMemoCap
	}
	return &Memo{cap: cap, vals: map[string]string{}}
}

func (m *Memo) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	return v, ok
}

func (m *Memo) Put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.vals[key]; exists {
		m.vals[key] = value
		return
	}
	if len(m.order) >= m.cap {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.vals, oldest)
	}
	m.order = append(m.order, key)
	m.vals[key] = value
}

// AttachRelated fills PrimaryCtx.RelatedContext with a RAG query over the
// target's preview text, memoized per (path, anchor line), followed by
// compact AST facts from the delta index.
func AttachRelated(ctx context.Context, retriever *rag.Retriever, idx *deltaindex.Index, target model.MappedTarget, memo *Memo, takePerTarget int, pctx *PrimaryCtx) error {
	path := target.Target.Path
	if path == "" || retriever == nil {
		return nil
	}

	anchorLine := target.Target.AnchorLine()
	memoKey := fmt.Sprintf("%s#%d", path, anchorLine)
	if hit, ok := memo.Get(memoKey); ok {
		pctx.RelatedContext = hit
		return nil
	}

	query := target.Preview
	if len(query) < minQueryLen {
		query += " code review context"
	}

	result, err := retriever.Query(ctx, query)
	if err != nil {
		return err
	}

	hits := result.Hits
	if len(hits) > takePerTarget {
		hits = hits[:takePerTarget]
	}
	var snippets []string
	for _, h := range hits {
		if snippet, _ := h.Payload["preview"].(string); snippet != "" {
			snippets = append(snippets, snippet)
		}
	}
	related := strings.Join(snippets, "\n---\n")

	if facts := astFactsFor(idx, path, anchorLine); facts != "" {
		if related != "" {
			related += "\n---\n"
		}
		related += facts
	}

	memo.Put(memoKey, related)
	pctx.RelatedContext = related
	return nil
}

// astFactsFor renders the enclosing symbol plus sibling members for
// (path, anchorLine), or a bounded list of top-level file symbols when no
// enclosing symbol is found.
func astFactsFor(idx *deltaindex.Index, path string, anchorLine int) string {
	if idx == nil {
		return ""
	}
	enclosing := idx.FindEnclosingByLine(path, anchorLine)
	if enclosing == nil {
		indices := idx.ByPath[path]
		if len(indices) == 0 {
			return ""
		}
		var b strings.Builder
		b.WriteString("AST FACTS (read-only; from delta index)\n")
		fmt.Fprintf(&b, "file: %s\n", path)
		b.WriteString("file_symbols:\n")
		for n, i := range indices {
			if n >= astFactsMaxEntries {
				break
			}
			c := idx.Chunks[i]
			fmt.Fprintf(&b, "  - %s %s [%d..%d]\n", c.Kind, c.Symbol, c.Span.StartRow+1, c.Span.EndRow+1)
		}
		return b.String()
	}

	encStart, encEnd := enclosing.Span.StartRow+1, enclosing.Span.EndRow+1

	var siblings []string
	for _, i := range idx.ByPath[path] {
		c := idx.Chunks[i]
		if c.ID == enclosing.ID {
			continue
		}
		cStart, cEnd := c.Span.StartRow+1, c.Span.EndRow+1
		if cStart >= encStart && cEnd <= encEnd {
			siblings = append(siblings, fmt.Sprintf("%s %s [%d..%d]", c.Kind, c.Symbol, cStart, cEnd))
			if len(siblings) >= astFactsMaxEntries {
				break
			}
		}
	}

	var b strings.Builder
	b.WriteString("AST FACTS (read-only; from delta index)\n")
	fmt.Fprintf(&b, "file: %s\n", path)
	fmt.Fprintf(&b, "anchor_line: %d\n", anchorLine)
	fmt.Fprintf(&b, "enclosing: %s %s [%d..%d]\n", enclosing.Kind, enclosing.Symbol, encStart, encEnd)
	if len(siblings) > 0 {
		b.WriteString("enclosing_members:\n")
		for _, s := range siblings {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	return b.String()
}
