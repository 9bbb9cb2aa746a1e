package extractor

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/corvid-labs/mrsentry/internal/errs"
	"github.com/corvid-labs/mrsentry/internal/model"
)

// MaxSnippetBytes bounds the snippet stored per chunk; extraction clamps
// larger bodies (e.g. a sprawling generated class) to the opening lines
// plus a truncation marker, the way the payload builder clamps previews.
const MaxSnippetBytes = 8000

// ExtractFile parses source and returns one CodeChunk per class/function/
// method-shaped node it finds, plus a module-level chunk for the whole file.
// Files in a language with no registered grammar get a single whole-file
// chunk.
func ExtractFile(path string, source []byte) ([]model.CodeChunk, error) {
	spec := specForPath(path)
	if spec == nil {
		return []model.CodeChunk{wholeFileChunk(path, source, LanguageKindForPath(path))}, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(spec.language)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, errs.New(errs.Parse, "extractor", "failed to parse "+path)
	}
	defer tree.Close()

	root := tree.RootNode()
	lines := strings.Split(string(source), "\n")

	ex := &fileExtractor{
		path:   path,
		spec:   spec,
		source: source,
		lines:  lines,
	}
	ex.walk(root, nil)

	chunks := ex.chunks
	chunks = append(chunks, moduleChunk(path, source, spec.kind, ex.importsOut()))

	refs := make([]*model.CodeChunk, len(chunks))
	for i := range chunks {
		refs[i] = &chunks[i]
	}
	LinkNeighbors(refs)

	return chunks, nil
}

type fileExtractor struct {
	path    string
	spec    *langSpec
	source  []byte
	lines   []string
	chunks  []model.CodeChunk
	imports []string
}

func (e *fileExtractor) importsOut() []string {
	return e.imports
}

// walk descends the tree tracking ownerPath (the chain of enclosing
// class/struct/trait names), emitting a chunk for every node kind listed in
// the language's class/func/method tables.
func (e *fileExtractor) walk(node *sitter.Node, ownerPath []string) {
	if node == nil {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		kind := child.Kind()

		if e.spec.importKinds[kind] {
			e.imports = append(e.imports, nodeText(child, e.source))
			continue
		}

		if symKind, ok := e.spec.classKinds[kind]; ok {
			name := e.fieldName(child)
			if name == "" {
				e.walk(child, ownerPath)
				continue
			}
			e.emit(child, symKind, name, ownerPath, true)
			body := findFieldOrNamed(child, e.spec.bodyField)
			e.walk(body, append(append([]string{}, ownerPath...), name))
			continue
		}

		if symKind, ok := e.methodOrFuncKind(child, kind, len(ownerPath) > 0); ok {
			name := e.fieldName(child)
			if name != "" {
				e.emit(child, symKind, name, ownerPath, true)
			}
			continue // don't recurse into function bodies for nested defs beyond one level
		}

		if kind == "assignment" || kind == "variable_declaration" || kind == "const_item" || kind == "let_declaration" {
			e.maybeEmitData(child, ownerPath)
		}

		e.walk(child, ownerPath)
	}
}

// methodOrFuncKind decides whether child is a function-shaped node, and
// whether it should be tagged method (inside a class) or function
// (top-level).
func (e *fileExtractor) methodOrFuncKind(node *sitter.Node, kind string, insideOwner bool) (model.SymbolKind, bool) {
	if insideOwner {
		if k, ok := e.spec.methodKinds[kind]; ok {
			return k, true
		}
	}
	if k, ok := e.spec.funcKinds[kind]; ok {
		return k, true
	}
	if k, ok := e.spec.methodKinds[kind]; ok {
		return k, true
	}
	return "", false
}

func (e *fileExtractor) fieldName(node *sitter.Node) string {
	nameNode := node.ChildByFieldName(e.spec.nameField)
	if nameNode == nil {
		return ""
	}
	return strings.TrimSpace(nodeText(nameNode, e.source))
}

func findFieldOrNamed(node *sitter.Node, field string) *sitter.Node {
	if node == nil {
		return nil
	}
	if b := node.ChildByFieldName(field); b != nil {
		return b
	}
	return findChildByType(node, "block")
}

func (e *fileExtractor) emit(node *sitter.Node, kind model.SymbolKind, name string, ownerPath []string, isDefinition bool) {
	span := nodeSpan(node)
	snippet := clampSnippet(nodeText(node, e.source))
	symbolPath := model.BuildSymbolPath(e.path, ownerPath, name)

	signature := ""
	if sig := e.buildSignature(node, name); sig != "" {
		signature = sig
	}

	chunk := model.CodeChunk{
		ID:            model.ComputeChunkID(e.path, symbolPath, span.StartByte, span.EndByte),
		ContentSHA256: model.ComputeContentSHA256([]byte(snippet)),
		File:          e.path,
		Language:      e.spec.kind,
		Span:          span,
		OwnerPath:     append([]string{}, ownerPath...),
		Symbol:        name,
		SymbolPath:    symbolPath,
		Kind:          kind,
		Signature:     signature,
		IsDefinition:  isDefinition,
		Snippet:       snippet,
		Features: model.Features{
			ByteLen:   len(snippet),
			LineCount: strings.Count(snippet, "\n") + 1,
			HasDoc:    hasLeadingComment(e.lines, span.StartRow),
		},
	}
	e.chunks = append(e.chunks, chunk)
}

func (e *fileExtractor) buildSignature(node *sitter.Node, name string) string {
	if e.spec.paramsField == "" {
		return ""
	}
	params := node.ChildByFieldName(e.spec.paramsField)
	if params == nil {
		return ""
	}
	sig := name + nodeText(params, e.source)
	if e.spec.returnField != "" {
		if ret := node.ChildByFieldName(e.spec.returnField); ret != nil {
			sig += " " + nodeText(ret, e.source)
		}
	}
	return strings.TrimSpace(sig)
}

func (e *fileExtractor) maybeEmitData(node *sitter.Node, ownerPath []string) {
	leftNode := node.ChildByFieldName("left")
	if leftNode == nil {
		leftNode = node.ChildByFieldName("name")
	}
	if leftNode == nil {
		return
	}
	name := nodeText(leftNode, e.source)
	kind := model.KindVariable
	if isConstantName(name) {
		kind = model.KindField
	}
	e.emit(node, kind, name, ownerPath, true)
}

// hasLeadingComment reports whether the line directly above startRow looks
// like a doc comment opener, a cheap heuristic used only to set
// Features.HasDoc.
func hasLeadingComment(lines []string, startRow int) bool {
	idx := startRow - 1
	if idx < 0 || idx >= len(lines) {
		return false
	}
	trimmed := strings.TrimSpace(lines[idx])
	for _, marker := range []string{"//", "#", "/*", "*", "\"\"\"", "'''"} {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	return false
}

func clampSnippet(text string) string {
	if len(text) <= MaxSnippetBytes {
		return text
	}
	return text[:MaxSnippetBytes] + "\n... (truncated)"
}

func wholeFileChunk(path string, source []byte, lang model.LanguageKind) model.CodeChunk {
	snippet := clampSnippet(string(source))
	symbolPath := model.BuildSymbolPath(path, nil, path)
	span := model.Span{StartByte: 0, EndByte: len(source), EndRow: strings.Count(string(source), "\n")}
	return model.CodeChunk{
		ID:            model.ComputeChunkID(path, symbolPath, span.StartByte, span.EndByte),
		ContentSHA256: model.ComputeContentSHA256(source),
		File:          path,
		Language:      lang,
		Span:          span,
		Symbol:        path,
		SymbolPath:    symbolPath,
		Kind:          model.KindModule,
		IsDefinition:  true,
		Snippet:       snippet,
		Features: model.Features{
			ByteLen:   len(snippet),
			LineCount: strings.Count(snippet, "\n") + 1,
		},
	}
}

func moduleChunk(path string, source []byte, lang model.LanguageKind, imports []string) model.CodeChunk {
	symbolPath := model.BuildSymbolPath(path, nil, path)
	span := model.Span{StartByte: 0, EndByte: len(source), EndRow: strings.Count(string(source), "\n")}
	preview := clampSnippet(string(source))
	return model.CodeChunk{
		ID:            model.ComputeChunkID(path, symbolPath, span.StartByte, span.EndByte),
		ContentSHA256: model.ComputeContentSHA256(source),
		File:          path,
		Language:      lang,
		Span:          span,
		Symbol:        path,
		SymbolPath:    symbolPath,
		Kind:          model.KindModule,
		IsDefinition:  true,
		Imports:       imports,
		Snippet:       preview,
		Features: model.Features{
			ByteLen:   len(preview),
			LineCount: strings.Count(preview, "\n") + 1,
		},
	}
}
