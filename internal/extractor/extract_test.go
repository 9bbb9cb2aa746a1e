package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/mrsentry/internal/model"
)

const samplePython = `import os


class Greeter:
    def hello(self, name):
        return "hi " + name


def standalone():
    return 1
`

func TestExtractFilePython(t *testing.T) {
	chunks, err := ExtractFile("greet.py", []byte(samplePython))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var sawClass, sawMethod, sawFunc, sawModule bool
	for _, c := range chunks {
		switch {
		case c.Kind == model.KindClass && c.Symbol == "Greeter":
			sawClass = true
		case c.Kind == model.KindMethod && c.Symbol == "hello":
			sawMethod = true
			assert.Equal(t, []string{"Greeter"}, c.OwnerPath)
		case c.Kind == model.KindFunction && c.Symbol == "standalone":
			sawFunc = true
		case c.Kind == model.KindModule:
			sawModule = true
		}
	}
	assert.True(t, sawClass, "expected a class chunk")
	assert.True(t, sawMethod, "expected a method chunk")
	assert.True(t, sawFunc, "expected a function chunk")
	assert.True(t, sawModule, "expected a module chunk")
}

func TestExtractFileUnsupportedLanguageFallsBack(t *testing.T) {
	chunks, err := ExtractFile("config.yaml", []byte("key: value\n"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, model.LangYAML, chunks[0].Language)
	assert.Equal(t, model.KindModule, chunks[0].Kind)
}

func TestLinkNeighborsParentChild(t *testing.T) {
	parent := &model.CodeChunk{ID: "p", Span: model.Span{StartByte: 0, EndByte: 100}}
	child := &model.CodeChunk{ID: "c", Span: model.Span{StartByte: 10, EndByte: 50}}
	chunks := []*model.CodeChunk{child, parent}

	LinkNeighbors(chunks)

	assert.Equal(t, "p", child.Neighbors.ParentID)
	assert.Contains(t, parent.Neighbors.ChildrenIDs, "c")
}
