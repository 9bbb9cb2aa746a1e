package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corvid-labs/mrsentry/internal/model"
)

func TestBuildPayloadExtractsRoutesAndTerms(t *testing.T) {
	chunk := model.CodeChunk{
		ID:         "chunk-1",
		File:       "lib/app.dart",
		Language:   model.LangDart,
		Kind:       model.KindMethod,
		Symbol:     "handleSubmit",
		SymbolPath: "lib/app.dart::AppState::handleSubmit",
		Snippet:    `context.go("/games/start")`,
		Doc:        "Handles the submit button.\nMore detail.",
		Identifiers: []string{"handleSubmit", "context"},
	}

	payload := BuildPayload(chunk, DefaultConfig())

	assert.Contains(t, payload.Routes, "/games/start")
	assert.Contains(t, payload.SearchTerms, "handle")
	assert.Contains(t, payload.SearchTerms, "submit")
	assert.Equal(t, "Handles the submit button.", payload.DocFirstLine)
	assert.NotEmpty(t, payload.SearchBlob)
}

func TestDecomposeCamelCase(t *testing.T) {
	assert.Equal(t, []string{"handle", "Submit"}, decomposeCamelCase("handleSubmit"))
	assert.Equal(t, []string{"User", "ID"}, decomposeCamelCase("UserID"))
}

func TestBuildEmbeddingTextIncludesRoutesAndKeywords(t *testing.T) {
	chunk := model.CodeChunk{
		Language:   model.LangDart,
		Kind:       model.KindClass,
		SymbolPath: "lib/app.dart::HomePage",
		Snippet:    "class HomePage extends StatelessWidget {}",
		Hints:      model.Hints{Keywords: []string{"widget"}},
	}
	text := BuildEmbeddingText(chunk, DefaultConfig())
	assert.Contains(t, text, "HomePage")
	assert.Contains(t, text, "keywords: widget")
}

func TestConfigPoolSizing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopK = 10
	assert.Equal(t, 80, cfg.PrimaryPoolSize())
	assert.Equal(t, 800, cfg.ScrollLimit())

	cfg.TopK = 100
	assert.Equal(t, 400, cfg.PrimaryPoolSize())
	assert.Equal(t, 4000, cfg.ScrollLimit())
}
