package lsp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/corvid-labs/mrsentry/internal/errs"
	"github.com/corvid-labs/mrsentry/internal/model"
)

// FileInput is one file's path, source bytes, and language id (LSP
// languageId string, e.g. "dart") to enrich.
type FileInput struct {
	Path       string
	Source     []byte
	LanguageID string
}

// Enricher runs the LSP enrichment step over a batch of chunks: open each
// file, request semantic tokens and symbol info, merge the results back
// onto the chunk. One Client serves the whole run.
type Enricher struct {
	client      *Client
	repoRootURI string
	logger      *zap.Logger
}

func NewEnricher(client *Client, repoRootURI string, logger *zap.Logger) *Enricher {
	return &Enricher{client: client, repoRootURI: repoRootURI, logger: logger}
}

// EnrichFile opens file, requests documentSymbol and semanticTokens/full,
// and merges the results onto every chunk in chunks whose File matches
// file.Path, in place.
func (e *Enricher) EnrichFile(ctx context.Context, file FileInput, chunks []*model.CodeChunk) error {
	uri := toFileURI(file.Path)
	if err := e.client.DidOpen(uri, file.LanguageID, string(file.Source)); err != nil {
		return errs.Wrap(errs.LSP, "lsp.enrich", "didOpen", err)
	}

	docSymbols, symErr := e.client.DocumentSymbols(ctx, uri)
	tokenData, tokErr := e.client.SemanticTokens(ctx, uri)
	if symErr != nil {
		e.logger.Warn("documentSymbol failed", zap.String("file", file.Path), zap.Error(symErr))
	}
	if tokErr != nil {
		e.logger.Warn("semanticTokens failed", zap.String("file", file.Path), zap.Error(tokErr))
	}

	lines := strings.Split(string(file.Source), "\n")
	offsets := LineByteOffsets(file.Source)
	symbols := ParseDocumentSymbols(docSymbols, lines, offsets)
	tokens := DecodeSemanticTokens(tokenData)
	ResolveByteOffsets(tokens, lines, offsets)
	legend := e.client.Legend()

	for _, chunk := range chunks {
		if chunk.File != file.Path {
			continue
		}
		best := BestOverlap(symbols, chunk.Span.StartByte, chunk.Span.EndByte)

		startPos := byteToPosition(chunk.Span.StartByte, lines, offsets)
		var hoverText string
		if hover, err := e.client.Hover(ctx, uri, startPos); err == nil && hover != nil {
			hoverText = extractHoverText(hover.Contents)
		}

		var definitions []model.LspDefinition
		if locs, err := e.client.Definition(ctx, uri, startPos); err == nil {
			for _, loc := range locs {
				definitions = append(definitions, model.LspDefinition{
					URI:    NormalizeURI(loc.URI, e.repoRootURI, "sdk"),
					Span:   rangeToSpan(loc.Range, lines, offsets),
					Origin: ClassifyOrigin(loc.URI, e.repoRootURI),
				})
			}
		}

		var refsCount int
		var refsSample []model.LspReference
		if locs, err := e.client.References(ctx, uri, startPos); err == nil {
			refsCount, refsSample = BuildReferencesSample(locs, e.repoRootURI)
		}

		MergeEnrichment(chunk, best, tokens, legend, hoverText, definitions, refsCount, refsSample)
	}
	return nil
}

func byteToPosition(byteOffset int, lines []string, offsets []int) Position {
	row := 0
	for i := len(offsets) - 1; i >= 0; i-- {
		if offsets[i] <= byteOffset {
			row = i
			break
		}
	}
	if row >= len(lines) {
		return Position{Line: row, Character: 0}
	}
	col := byteOffset - offsets[row]
	return Position{Line: row, Character: byteColToUTF16Col(lines[row], col)}
}

func byteColToUTF16Col(line string, byteCol int) int {
	if byteCol > len(line) {
		byteCol = len(line)
	}
	return len([]rune(line[:byteCol])) // approximation: rune count tracks UTF-16 width except astral pairs
}

func rangeToSpan(r Range, lines []string, offsets []int) model.Span {
	start := positionToByte(r.Start, lines, offsets)
	end := positionToByte(r.End, lines, offsets)
	return model.Span{StartByte: start, EndByte: end, StartRow: r.Start.Line, StartCol: r.Start.Character, EndRow: r.End.Line, EndCol: r.End.Character}
}

// extractHoverText flattens the LSP Hover.contents union (string |
// MarkupContent | MarkedString[]) into plain text good enough for
// HoverOneLiner to scan.
func extractHoverText(raw json.RawMessage) string {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asMarkup struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &asMarkup); err == nil && asMarkup.Value != "" {
		return asMarkup.Value
	}
	var asList []json.RawMessage
	if err := json.Unmarshal(raw, &asList); err == nil {
		var b strings.Builder
		for _, item := range asList {
			b.WriteString(extractHoverText(item))
			b.WriteByte('\n')
		}
		return b.String()
	}
	return ""
}

// LanguageIDFor maps a file path's extension to the LSP languageId string
// the server expects in didOpen.
func LanguageIDFor(path string) string {
	switch filepath.Ext(path) {
	case ".dart":
		return "dart"
	case ".py":
		return "python"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".rb":
		return "ruby"
	case ".php":
		return "php"
	default:
		return "plaintext"
	}
}
