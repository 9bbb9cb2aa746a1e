package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSemanticTokensAppliesDeltas(t *testing.T) {
	// Two tokens: first at (line 0, char 4, len 3, type 1), second with
	// deltaLine=0 so char is relative: (line 0, char 4+6=10, len 2, type 0).
	data := []uint32{0, 4, 3, 1, 0, 0, 6, 2, 0, 0}
	tokens := DecodeSemanticTokens(data)

	assert.Len(t, tokens, 2)
	assert.Equal(t, Token{Line: 0, StartCharUTF16: 4, LengthUTF16: 3, TypeIndex: 1}, tokens[0])
	assert.Equal(t, Token{Line: 0, StartCharUTF16: 10, LengthUTF16: 2, TypeIndex: 0}, tokens[1])
}

func TestDecodeSemanticTokensNewLineResetsChar(t *testing.T) {
	data := []uint32{0, 4, 3, 1, 0, 2, 5, 2, 0, 0}
	tokens := DecodeSemanticTokens(data)
	assert.Equal(t, 2, tokens[1].Line)
	assert.Equal(t, 5, tokens[1].StartCharUTF16)
}

func TestResolveByteOffsetsAndHistogram(t *testing.T) {
	source := []byte("abc\nfunc main() {}\n")
	lines := []string{"abc", "func main() {}", ""}
	offsets := LineByteOffsets(source)

	tokens := []Token{{Line: 1, StartCharUTF16: 0, LengthUTF16: 4, TypeIndex: 0}}
	ResolveByteOffsets(tokens, lines, offsets)
	assert.Equal(t, 4, tokens[0].StartByte)
	assert.Equal(t, 8, tokens[0].EndByte)

	hist := Histogram(tokens, []string{"keyword"})
	assert.Equal(t, 1, hist["keyword"])

	ratios := TopRatios(hist, 5)
	assert.InDelta(t, 1.0, ratios["keyword"], 1e-9)
}

func TestBestOverlapPrefersLargestOverlapThenNearest(t *testing.T) {
	symbols := []SymbolInfo{
		{Name: "a", StartByte: 0, EndByte: 10},
		{Name: "b", StartByte: 8, EndByte: 30},
	}
	best := BestOverlap(symbols, 5, 12)
	assert.Equal(t, "a", best.Name)

	farSymbols := []SymbolInfo{{Name: "c", StartByte: 100, EndByte: 110}}
	nearest := BestOverlap(farSymbols, 0, 5)
	assert.Equal(t, "c", nearest.Name)
}

func TestClassifyOriginAndNormalizeURI(t *testing.T) {
	root := "file:///repo"
	assert.Equal(t, "sdk", string(classifyOriginHelper("dart:core", root)))
	assert.Equal(t, "package", string(classifyOriginHelper("package:flutter/material.dart", root)))
	assert.Equal(t, "local", string(classifyOriginHelper("file:///repo/lib/main.dart", root)))
	assert.Equal(t, "unknown", string(classifyOriginHelper("http://example.com", root)))

	assert.Equal(t, "lib/main.dart", NormalizeURI("file:///repo/lib/main.dart", root, "sdk"))
	assert.Equal(t, "sdk/core", NormalizeURI("dart:core", root, "sdk"))
}

func classifyOriginHelper(uri, root string) string {
	return string(ClassifyOrigin(uri, root))
}

func TestHoverOneLinerSkipsFencesAndBlankLines(t *testing.T) {
	text := "```dart\n\nvoid main()\nmore detail\n```"
	assert.Equal(t, "void main()", HoverOneLiner(text))
}
