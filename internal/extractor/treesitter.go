// Package extractor parses source files into model.CodeChunk slices using
// tree-sitter grammars, one chunk per class/function/method-shaped node, with
// a single-chunk fallback for languages without a registered grammar.
package extractor

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/corvid-labs/mrsentry/internal/model"
)

// walkTree recursively visits node and its descendants; visitor returns
// false to skip recursing into a node's children.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visitor(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		walkTree(node.Child(i), visitor)
	}
}

func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

func nodeSpan(node *sitter.Node) model.Span {
	start := node.StartPosition()
	end := node.EndPosition()
	return model.Span{
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
		StartRow:  int(start.Row),
		StartCol:  int(start.Column),
		EndRow:    int(end.Row),
		EndCol:    int(end.Column),
	}
}

func extractLines(lines []string, startLine, endLine int) string {
	if startLine < 1 || startLine > len(lines) {
		return ""
	}
	end := endLine
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[startLine-1:end], "\n")
}

func findChildByType(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == kind {
			return child
		}
	}
	return nil
}

func isConstantName(name string) bool {
	if name == "" {
		return false
	}
	hasLetter := false
	for _, ch := range name {
		if ch >= 'a' && ch <= 'z' {
			return false
		}
		if ch >= 'A' && ch <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}
