package model

// VectorPayload is the compact representation persisted alongside each
// vector in the RAG store. It is derived from a CodeChunk at ingest time;
// Preview holds a clamped snippet, while SearchBlob includes the full snippet.
type VectorPayload struct {
	ID              string   `json:"id"`
	File            string   `json:"file"`
	Language        string   `json:"language"`
	Kind            string   `json:"kind"`
	Symbol          string   `json:"symbol"`
	SymbolPath      string   `json:"symbol_path"`
	Signature       string   `json:"signature,omitempty"`
	DocFirstLine    string   `json:"doc_first_line,omitempty"`
	Preview         string   `json:"preview"`
	ContentSHA256   string   `json:"content_sha256"`
	TopImports      []string `json:"top_imports,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	LspFQN          string   `json:"lsp_fqn,omitempty"`
	IsDefinition    bool     `json:"is_definition"`
	Routes          []string `json:"routes,omitempty"`
	SearchTerms     []string `json:"search_terms,omitempty"`
	SearchBlob      string   `json:"search_blob"`
}

// ToKV flattens the payload into the key/value map shape the vector store
// protocol (§6) expects for upsert.
func (p VectorPayload) ToKV() map[string]any {
	kv := map[string]any{
		"id":              p.ID,
		"file":            p.File,
		"language":        p.Language,
		"kind":            p.Kind,
		"symbol":          p.Symbol,
		"symbol_path":     p.SymbolPath,
		"content_sha256":  p.ContentSHA256,
		"is_definition":   p.IsDefinition,
		"search_blob":     p.SearchBlob,
	}
	if p.Signature != "" {
		kv["signature"] = p.Signature
	}
	if p.DocFirstLine != "" {
		kv["doc_first_line"] = p.DocFirstLine
	}
	if p.Preview != "" {
		kv["preview"] = p.Preview
	}
	if len(p.TopImports) > 0 {
		kv["top_imports"] = p.TopImports
	}
	if len(p.Tags) > 0 {
		kv["tags"] = p.Tags
	}
	if p.LspFQN != "" {
		kv["lsp_fqn"] = p.LspFQN
	}
	if len(p.Routes) > 0 {
		kv["routes"] = p.Routes
	}
	if len(p.SearchTerms) > 0 {
		kv["search_terms"] = p.SearchTerms
	}
	return kv
}
