package extractor

import (
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/corvid-labs/mrsentry/internal/model"
)

// langSpec describes, for one language, which tree-sitter node kinds mark
// class-shaped, function-shaped, and method-shaped definitions, and the
// field names used to pull out the name and body of each. A language with
// no entry here falls back to a single whole-file chunk.
type langSpec struct {
	language    *sitter.Language
	kind        model.LanguageKind
	classKinds  map[string]model.SymbolKind
	funcKinds   map[string]model.SymbolKind
	methodKinds map[string]model.SymbolKind
	nameField   string
	bodyField   string
	paramsField string
	returnField string
	importKinds map[string]bool
}

var registry = map[string]*langSpec{}

func init() {
	registry["python"] = &langSpec{
		language:    sitter.NewLanguage(python.Language()),
		kind:        model.LangPython,
		classKinds:  map[string]model.SymbolKind{"class_definition": model.KindClass},
		funcKinds:   map[string]model.SymbolKind{"function_definition": model.KindFunction},
		methodKinds: map[string]model.SymbolKind{"function_definition": model.KindMethod},
		nameField:   "name",
		bodyField:   "body",
		paramsField: "parameters",
		returnField: "return_type",
		importKinds: map[string]bool{"import_statement": true, "import_from_statement": true},
	}

	tsLang := sitter.NewLanguage(typescript.LanguageTypescript())
	registry["typescript"] = &langSpec{
		language: tsLang,
		kind:     model.LangTypeScript,
		classKinds: map[string]model.SymbolKind{
			"class_declaration":     model.KindClass,
			"interface_declaration": model.KindInterface,
		},
		funcKinds: map[string]model.SymbolKind{
			"function_declaration": model.KindFunction,
		},
		methodKinds: map[string]model.SymbolKind{
			"method_definition": model.KindMethod,
		},
		nameField:   "name",
		bodyField:   "body",
		paramsField: "parameters",
		returnField: "return_type",
		importKinds: map[string]bool{"import_statement": true},
	}
	registry["javascript"] = registry["typescript"]

	registry["rust"] = &langSpec{
		language: sitter.NewLanguage(rust.Language()),
		kind:     model.LangRust,
		classKinds: map[string]model.SymbolKind{
			"struct_item": model.KindClass,
			"enum_item":   model.KindEnum,
			"trait_item":  model.KindTrait,
			"impl_item":   model.KindImpl,
		},
		funcKinds: map[string]model.SymbolKind{
			"function_item": model.KindFunction,
		},
		methodKinds: map[string]model.SymbolKind{
			"function_item": model.KindMethod,
		},
		nameField:   "name",
		bodyField:   "body",
		paramsField: "parameters",
		returnField: "return_type",
		importKinds: map[string]bool{"use_declaration": true},
	}

	registry["java"] = &langSpec{
		language: sitter.NewLanguage(java.Language()),
		kind:     model.LangJava,
		classKinds: map[string]model.SymbolKind{
			"class_declaration":     model.KindClass,
			"interface_declaration": model.KindInterface,
			"enum_declaration":      model.KindEnum,
		},
		funcKinds: map[string]model.SymbolKind{},
		methodKinds: map[string]model.SymbolKind{
			"method_declaration":      model.KindMethod,
			"constructor_declaration": model.KindMethod,
		},
		nameField:   "name",
		bodyField:   "body",
		paramsField: "parameters",
		returnField: "type",
		importKinds: map[string]bool{"import_declaration": true},
	}

	registry["c"] = &langSpec{
		language:    sitter.NewLanguage(c.Language()),
		kind:        model.LangC,
		classKinds:  map[string]model.SymbolKind{"struct_specifier": model.KindClass},
		funcKinds:   map[string]model.SymbolKind{"function_definition": model.KindFunction},
		methodKinds: map[string]model.SymbolKind{},
		nameField:   "declarator",
		bodyField:   "body",
		importKinds: map[string]bool{"preproc_include": true},
	}

	registry["ruby"] = &langSpec{
		language: sitter.NewLanguage(ruby.Language()),
		kind:     model.LangRuby,
		classKinds: map[string]model.SymbolKind{
			"class":  model.KindClass,
			"module": model.KindMixin,
		},
		funcKinds: map[string]model.SymbolKind{
			"method": model.KindFunction,
		},
		methodKinds: map[string]model.SymbolKind{
			"method": model.KindMethod,
		},
		nameField:   "name",
		bodyField:   "body",
		importKinds: map[string]bool{"call": false}, // ruby 'require' is a call node; call nodes are not import kinds, so Ruby imports are not collected
	}

	registry["php"] = &langSpec{
		language: sitter.NewLanguage(php.LanguagePHP()),
		kind:     model.LangPHP,
		classKinds: map[string]model.SymbolKind{
			"class_declaration":     model.KindClass,
			"interface_declaration": model.KindInterface,
			"trait_declaration":     model.KindTrait,
		},
		funcKinds: map[string]model.SymbolKind{
			"function_definition": model.KindFunction,
		},
		methodKinds: map[string]model.SymbolKind{
			"method_declaration": model.KindMethod,
		},
		nameField:   "name",
		bodyField:   "body",
		paramsField: "parameters",
		importKinds: map[string]bool{"namespace_use_declaration": true},
	}
}

var extToLangName = map[string]string{
	".py":   "python",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".rb":   "ruby",
	".php":  "php",
}

// specForPath returns the langSpec registered for path's extension, or nil
// if no grammar is registered (caller falls back to a whole-file chunk).
func specForPath(path string) *langSpec {
	ext := strings.ToLower(filepath.Ext(path))
	name, ok := extToLangName[ext]
	if !ok {
		return nil
	}
	return registry[name]
}

// LanguageKindForPath classifies path by extension even when no grammar is
// registered for it, so unsupported languages still get a correctly tagged
// whole-file chunk.
func LanguageKindForPath(path string) model.LanguageKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".py":
		return model.LangPython
	case ".ts", ".tsx":
		return model.LangTypeScript
	case ".js", ".jsx", ".mjs":
		return model.LangJavaScript
	case ".rs":
		return model.LangRust
	case ".java":
		return model.LangJava
	case ".kt", ".kts":
		return model.LangKotlin
	case ".swift":
		return model.LangSwift
	case ".cs":
		return model.LangCSharp
	case ".c", ".h":
		return model.LangC
	case ".cc", ".cpp", ".cxx", ".hpp":
		return model.LangCPP
	case ".php":
		return model.LangPHP
	case ".rb":
		return model.LangRuby
	case ".yaml", ".yml":
		return model.LangYAML
	case ".json":
		return model.LangJSON
	case ".sql":
		return model.LangSQL
	case ".md", ".markdown":
		return model.LangMarkdown
	case ".sh", ".bash":
		return model.LangShell
	case "":
		if strings.EqualFold(filepath.Base(path), "CMakeLists.txt") {
			return model.LangCMake
		}
		return model.LangOther
	default:
		return model.LangOther
	}
}
