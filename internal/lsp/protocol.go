// Package lsp drives a single language-server-protocol subprocess over
// stdio to enrich extracted chunks with symbol metadata: document symbols,
// semantic tokens, hover, definition, and references.
package lsp

import "encoding/json"

// rpcMessage is the wire envelope for both requests/responses and
// notifications, framed with Content-Length headers.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return e.Message }

// Position is an LSP (line, UTF-16 character) pair.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a start/end Position pair.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type textDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type didOpenParams struct {
	TextDocument textDocumentItem `json:"textDocument"`
}

type documentSymbolParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type semanticTokensParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type textDocumentPositionParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type referenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

type referenceParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
	Context      referenceContext       `json:"context"`
}

// DocumentSymbol mirrors the LSP DocumentSymbol shape closely enough to
// walk recursively into nested Children.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           int              `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

type semanticTokensResult struct {
	Data []uint32 `json:"data"`
}

// Hover is the subset of the LSP Hover response used for hover_one_liner.
type Hover struct {
	Contents json.RawMessage `json:"contents"`
}

// Location is a URI + range, used for definitions and references.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

type initializeParams struct {
	RootURI          string             `json:"rootUri"`
	WorkspaceFolders []workspaceFolder  `json:"workspaceFolders"`
	Capabilities     map[string]any     `json:"capabilities"`
}

type workspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type initializeResult struct {
	Capabilities struct {
		SemanticTokensProvider struct {
			Legend struct {
				TokenTypes []string `json:"tokenTypes"`
			} `json:"legend"`
		} `json:"semanticTokensProvider"`
	} `json:"capabilities"`
}
