package splitter

import (
	"embed"
)

//go:embed queries/*.scm
var queryFiles embed.FS

// builtinQueries are minimal fallback queries used when a packaged .scm file
// is missing for a supported language. They capture plain function and class
// constructs only.
var builtinQueries = map[string]string{
	"go":         "(function_declaration name: (identifier) @name) @definition.function",
	"python":     "(function_definition name: (identifier) @name) @definition.function",
	"javascript": "(function_declaration name: (identifier) @name) @definition.function",
	"typescript": "(function_declaration name: (identifier) @name) @definition.function",
	"tsx":        "(function_declaration name: (identifier) @name) @definition.function",
	"java":       "(method_declaration name: (identifier) @name) @definition.method",
	"rust":       "(function_item name: (identifier) @name) @definition.function",
	"ruby":       "(method name: (identifier) @name) @definition.method",
}

// queryFileNames maps language identifiers to their packaged query file.
// tsx shares the typescript query; the grammars use the same node names.
var queryFileNames = map[string]string{
	"go":         "queries/go.scm",
	"python":     "queries/python.scm",
	"javascript": "queries/javascript.scm",
	"typescript": "queries/typescript.scm",
	"tsx":        "queries/typescript.scm",
	"java":       "queries/java.scm",
	"rust":       "queries/rust.scm",
	"ruby":       "queries/ruby.scm",
}

// queryFor returns the capture query for a language: the packaged .scm file
// when present, the built-in query otherwise.
func queryFor(lang string) string {
	if name, ok := queryFileNames[lang]; ok {
		if data, err := queryFiles.ReadFile(name); err == nil && len(data) > 0 {
			return string(data)
		}
	}
	return builtinQueries[lang]
}
