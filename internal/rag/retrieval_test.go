package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRerankFavorsQuotedSubstringMatch(t *testing.T) {
	hits := []Hit{
		{ID: "a", Score: 0.5, Payload: map[string]any{"symbol_path": "app::Router", "file": "router.go", "preview": "router for /games and /users"}},
		{ID: "b", Score: 0.5, Payload: map[string]any{"symbol_path": "app::Other", "file": "other.go", "preview": "unrelated helper"}},
	}
	ranked := rerank(`"/games"`, hits)
	assert.Equal(t, "a", ranked[0].ID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestHasStrongLexicalMatch(t *testing.T) {
	hits := []Hit{{Payload: map[string]any{"preview": "context.go('/games')"}}}
	assert.True(t, hasStrongLexicalMatch(`"/games"`, hits))
	assert.False(t, hasStrongLexicalMatch(`"/missing"`, hits))
}

func TestMergeFallbackDedupsAndBoosts(t *testing.T) {
	ranked := []Hit{{ID: "a", Score: 1.0}}
	fallback := []Hit{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.2}}
	merged := mergeFallback(ranked, fallback, 0.15, 10)

	assert.Len(t, merged, 2)
	var bScore float64
	for _, h := range merged {
		if h.ID == "b" {
			bScore = h.Score
		}
	}
	assert.InDelta(t, 0.35, bScore, 1e-9)
}

func TestTokenizeQueryKeepsPathPunctuation(t *testing.T) {
	tokens := tokenizeQuery("find /api/v2:users.json quickly")
	assert.Contains(t, tokens, "/api/v2:users.json")
	assert.Contains(t, tokens, "quickly")
}
