package splitter

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// extensionLanguages maps file extensions to language identifiers.
var extensionLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyi":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "tsx",
	".java":  "java",
	".rs":    "rust",
	".rb":    "ruby",
	".kt":    "kotlin",
	".kts":   "kotlin",
	".cs":    "csharp",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cxx":   "cpp",
	".c":     "c",
	".h":     "cpp",
	".hpp":   "cpp",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
	".sql":   "sql",
	".sh":    "shell",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".md":    "markdown",
	".html":  "html",
	".css":   "css",
}

// DetectLanguage returns the language identifier for a path, or "text" when
// the extension is unknown.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	return "text"
}

// astLanguage returns the tree-sitter grammar for a language identifier, or
// nil when the language has no AST support and must use the fallback
// splitter.
func astLanguage(lang string) *sitter.Language {
	switch lang {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	case "tsx":
		return tsx.GetLanguage()
	case "java":
		return java.GetLanguage()
	case "rust":
		return rust.GetLanguage()
	case "ruby":
		return ruby.GetLanguage()
	}
	return nil
}

// SupportsAST reports whether the language has a packaged grammar and query.
func SupportsAST(lang string) bool {
	return astLanguage(lang) != nil
}

// classNodeTypes lists the AST node types that establish a parent context
// (breadcrumb) for nested definitions, per language.
var classNodeTypes = map[string]map[string]bool{
	"go":         {"type_declaration": true},
	"python":     {"class_definition": true},
	"javascript": {"class_declaration": true},
	"typescript": {"class_declaration": true, "interface_declaration": true},
	"tsx":        {"class_declaration": true, "interface_declaration": true},
	"java":       {"class_declaration": true, "interface_declaration": true, "enum_declaration": true},
	"rust":       {"impl_item": true, "trait_item": true},
	"ruby":       {"class": true, "module": true},
}

// commentPrefix returns the single-line comment marker used for simplified
// skeleton placeholders.
func commentPrefix(lang string) string {
	switch lang {
	case "python", "ruby", "shell", "yaml":
		return "#"
	case "sql":
		return "--"
	default:
		return "//"
	}
}

// separatorsFor returns language-aware separators for the recursive
// character splitter, most structural first.
func separatorsFor(lang string) []string {
	switch lang {
	case "go", "java", "javascript", "typescript", "tsx", "rust", "csharp", "cpp", "c", "kotlin", "swift", "scala", "php":
		return []string{"\n\n", "\n}", "\n", " ", ""}
	case "python", "ruby":
		return []string{"\nclass ", "\ndef ", "\n\n", "\n", " ", ""}
	case "markdown":
		return []string{"\n## ", "\n### ", "\n\n", "\n", " ", ""}
	default:
		return []string{"\n\n", "\n", " ", ""}
	}
}
