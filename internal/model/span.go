// Package model defines the canonical data types shared by the indexer, the
// RAG store, and the MR review pipeline: spans, chunks, payloads, and
// review targets. Types here are immutable once constructed; downstream
// packages hold read-only references.
package model

// Span locates a byte range inside a source file. Byte offsets are
// canonical; rows/cols are display hints recomputed from them when needed.
// Rows/cols are 0-based internally; user-facing renderers add 1.
type Span struct {
	StartByte int `json:"start_byte"`
	EndByte   int `json:"end_byte"`
	StartRow  int `json:"start_row"`
	StartCol  int `json:"start_col"`
	EndRow    int `json:"end_row"`
	EndCol    int `json:"end_col"`
}

// Valid reports whether the span respects start<=end<=fileSize.
func (s Span) Valid(fileSize int) bool {
	return s.StartByte >= 0 && s.StartByte <= s.EndByte && s.EndByte <= fileSize
}

// Len returns the number of bytes the span covers.
func (s Span) Len() int { return s.EndByte - s.StartByte }

// LanguageKind is the closed set of languages the extractor and LSP
// enricher recognize.
type LanguageKind string

const (
	LangDart       LanguageKind = "dart"
	LangRust       LanguageKind = "rust"
	LangPython     LanguageKind = "python"
	LangTypeScript LanguageKind = "typescript"
	LangJavaScript LanguageKind = "javascript"
	LangGo         LanguageKind = "go"
	LangJava       LanguageKind = "java"
	LangKotlin     LanguageKind = "kotlin"
	LangSwift      LanguageKind = "swift"
	LangCSharp     LanguageKind = "csharp"
	LangC          LanguageKind = "c"
	LangCPP        LanguageKind = "cpp"
	LangPHP        LanguageKind = "php"
	LangRuby       LanguageKind = "ruby"
	LangYAML       LanguageKind = "yaml"
	LangJSON       LanguageKind = "json"
	LangSQL        LanguageKind = "sql"
	LangMarkdown   LanguageKind = "markdown"
	LangShell      LanguageKind = "shell"
	LangCMake      LanguageKind = "cmake"
	LangOther      LanguageKind = "other"
)

// SymbolKind is the closed set of addressable entity kinds a chunk can
// represent.
type SymbolKind string

const (
	KindModule         SymbolKind = "module"
	KindImport         SymbolKind = "import"
	KindClass          SymbolKind = "class"
	KindInterface      SymbolKind = "interface"
	KindEnum           SymbolKind = "enum"
	KindMixin          SymbolKind = "mixin"
	KindExtension      SymbolKind = "extension"
	KindExtensionType  SymbolKind = "extension_type"
	KindFunction       SymbolKind = "function"
	KindMethod         SymbolKind = "method"
	KindConstructor    SymbolKind = "constructor"
	KindField          SymbolKind = "field"
	KindVariable       SymbolKind = "variable"
	KindTypedef        SymbolKind = "typedef"
	KindTrait          SymbolKind = "trait"
	KindImpl           SymbolKind = "impl"
	KindTypeAlias      SymbolKind = "type_alias"
	KindUnknown        SymbolKind = "unknown"
)

// IsSymbolic reports whether kind is one of the symbolic kinds the Delta
// Symbol Index keeps.
func (k SymbolKind) IsSymbolic() bool {
	switch k {
	case KindClass, KindFunction, KindMethod, KindEnum, KindInterface,
		KindTrait, KindImpl, KindField, KindVariable, KindMixin,
		KindExtension, KindTypeAlias:
		return true
	}
	return false
}

// OriginKind classifies where an LSP definition target lives.
type OriginKind string

const (
	OriginSdk     OriginKind = "sdk"
	OriginPackage OriginKind = "package"
	OriginLocal   OriginKind = "local"
	OriginUnknown OriginKind = "unknown"
)
