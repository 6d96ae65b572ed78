package chunk

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
)

// Language identifies a supported source language.
type Language int

const (
	LangUnknown Language = iota
	LangTypeScript
	LangTypeScriptTsx
	LangJavaScript
	LangJavaScriptJsx
	LangPython
	LangRust
	LangGo
	LangJava
	LangCSharp
	LangRuby
	LangC
	LangCpp
	LangJson
	LangToml
	LangYaml
	LangBash
	LangMarkdown
)

// LanguageFromExtension maps a file extension (without the dot) to a Language.
func LanguageFromExtension(ext string) Language {
	switch strings.ToLower(ext) {
	case "ts", "mts", "cts":
		return LangTypeScript
	case "tsx":
		return LangTypeScriptTsx
	case "js", "mjs", "cjs":
		return LangJavaScript
	case "jsx":
		return LangJavaScriptJsx
	case "py", "pyi":
		return LangPython
	case "rs":
		return LangRust
	case "go":
		return LangGo
	case "java":
		return LangJava
	case "cs":
		return LangCSharp
	case "rb":
		return LangRuby
	case "c", "h":
		return LangC
	case "cpp", "cc", "cxx", "hpp", "hxx":
		return LangCpp
	case "json":
		return LangJson
	case "toml":
		return LangToml
	case "yaml", "yml":
		return LangYaml
	case "sh", "bash", "zsh":
		return LangBash
	case "md", "mdx":
		return LangMarkdown
	default:
		return LangUnknown
	}
}

// LanguageFromPath maps a file path to a Language via its extension.
func LanguageFromPath(path string) Language {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return LanguageFromExtension(ext)
}

// LanguageFromName maps a language name (as produced by String) back to a Language.
func LanguageFromName(name string) Language {
	switch strings.ToLower(name) {
	case "typescript":
		return LangTypeScript
	case "tsx":
		return LangTypeScriptTsx
	case "javascript":
		return LangJavaScript
	case "jsx":
		return LangJavaScriptJsx
	case "python":
		return LangPython
	case "rust":
		return LangRust
	case "go":
		return LangGo
	case "java":
		return LangJava
	case "csharp":
		return LangCSharp
	case "ruby":
		return LangRuby
	case "c":
		return LangC
	case "cpp":
		return LangCpp
	case "json":
		return LangJson
	case "toml":
		return LangToml
	case "yaml":
		return LangYaml
	case "bash":
		return LangBash
	case "markdown":
		return LangMarkdown
	default:
		return LangUnknown
	}
}

// String returns the canonical lowercase name stored on chunks and rows.
func (l Language) String() string {
	switch l {
	case LangTypeScript:
		return "typescript"
	case LangTypeScriptTsx:
		return "tsx"
	case LangJavaScript:
		return "javascript"
	case LangJavaScriptJsx:
		return "jsx"
	case LangPython:
		return "python"
	case LangRust:
		return "rust"
	case LangGo:
		return "go"
	case LangJava:
		return "java"
	case LangCSharp:
		return "csharp"
	case LangRuby:
		return "ruby"
	case LangC:
		return "c"
	case LangCpp:
		return "cpp"
	case LangJson:
		return "json"
	case LangToml:
		return "toml"
	case LangYaml:
		return "yaml"
	case LangBash:
		return "bash"
	case LangMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

var (
	grammarMu sync.RWMutex
	grammars  = map[Language]*sitter.Language{
		LangTypeScript:    tsx.GetLanguage(), // TSX grammar parses plain TS too
		LangTypeScriptTsx: tsx.GetLanguage(),
		LangJavaScript:    javascript.GetLanguage(),
		LangJavaScriptJsx: javascript.GetLanguage(),
		LangPython:        python.GetLanguage(),
		LangRust:          rust.GetLanguage(),
		LangGo:            golang.GetLanguage(),
		LangJava:          java.GetLanguage(),
		LangCSharp:        csharp.GetLanguage(),
		LangRuby:          ruby.GetLanguage(),
		LangC:             c.GetLanguage(),
		LangCpp:           cpp.GetLanguage(),
		LangBash:          bash.GetLanguage(),
	}
)

// Grammar returns the tree-sitter grammar for a language.
// Languages without a grammar (json, toml, yaml, markdown, unknown) fall
// back to line-window chunking.
func Grammar(l Language) (*sitter.Language, bool) {
	grammarMu.RLock()
	defer grammarMu.RUnlock()

	g, ok := grammars[l]
	return g, ok
}

// semanticKinds lists the node kinds that qualify as chunk candidates,
// per language. Semantic nodes are emitted whole; nested semantic
// constructs stay inside the outer chunk.
var semanticKinds = map[Language]map[string]bool{
	LangTypeScript: tsJSKinds, LangTypeScriptTsx: tsJSKinds,
	LangJavaScript: tsJSKinds, LangJavaScriptJsx: tsJSKinds,
	LangPython: {
		"function_definition": true,
		"class_definition":    true,
		"decorated_definition": true,
	},
	LangRust: {
		"function_item":    true,
		"impl_item":        true,
		"struct_item":      true,
		"enum_item":        true,
		"trait_item":       true,
		"mod_item":         true,
		"macro_definition": true,
	},
	LangGo: {
		"function_declaration": true,
		"method_declaration":   true,
		"type_declaration":     true,
		"type_spec":            true,
	},
	LangJava: {
		"class_declaration":           true,
		"method_declaration":          true,
		"constructor_declaration":     true,
		"interface_declaration":       true,
		"enum_declaration":            true,
		"annotation_type_declaration": true,
	},
	LangCSharp: {
		"class_declaration":       true,
		"method_declaration":      true,
		"constructor_declaration": true,
		"interface_declaration":   true,
		"enum_declaration":        true,
		"struct_declaration":      true,
		"record_declaration":      true,
		"property_declaration":    true,
	},
	LangRuby: {
		"method":           true,
		"singleton_method": true,
		"class":            true,
		"module":           true,
	},
	LangBash: {
		"function_definition": true,
	},
	LangC: {
		"function_definition": true,
		"struct_specifier":    true,
		"enum_specifier":      true,
		"type_definition":     true,
	},
	LangCpp: {
		"function_definition":  true,
		"class_specifier":      true,
		"struct_specifier":     true,
		"enum_specifier":       true,
		"namespace_definition": true,
		"template_declaration": true,
	},
}

var tsJSKinds = map[string]bool{
	"function_declaration":   true,
	"function":               true,
	"arrow_function":         true,
	"method_definition":      true,
	"class_declaration":      true,
	"interface_declaration":  true,
	"type_alias_declaration": true,
	"enum_declaration":       true,
	"export_statement":       true,
	"lexical_declaration":    true,
}

// commentKinds lists the node kinds treated as leading comments per language.
var commentKinds = map[Language]map[string]bool{
	LangTypeScript: {"comment": true}, LangTypeScriptTsx: {"comment": true},
	LangJavaScript: {"comment": true}, LangJavaScriptJsx: {"comment": true},
	LangPython: {"comment": true},
	LangRust:   {"line_comment": true, "block_comment": true},
	LangGo:     {"comment": true},
	LangJava:   {"line_comment": true, "block_comment": true},
	LangCSharp: {"comment": true},
	LangRuby:   {"comment": true},
	LangBash:   {"comment": true},
	LangC:      {"comment": true},
	LangCpp:    {"comment": true},
}

func isSemanticKind(kind string, l Language) bool {
	return semanticKinds[l][kind]
}

func isCommentKind(kind string, l Language) bool {
	return commentKinds[l][kind]
}
