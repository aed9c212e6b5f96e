package splitter

import (
	"regexp"
	"strings"
)

const maxImportsPerFile = 30

var (
	pyDocstringPattern = regexp.MustCompile(`(?s)(?:"""(.*?)""")|(?:'''(.*?)''')`)

	extendsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`class\s+\w+\s*\(([^)]+)\)`),           // python
		regexp.MustCompile(`class\s+\w+\s+extends\s+([\w.,\s<>]+?)\s*(?:\bimplements\b|[{\n])`), // java/js/ts
		regexp.MustCompile(`class\s+\w+\s*<\s*([\w:]+)`),          // ruby
	}
	implementsPattern = regexp.MustCompile(`implements\s+([\w.,\s<>]+?)[{\n]`)

	importLinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*import\s+(.+)$`),
		regexp.MustCompile(`(?m)^\s*from\s+(\S+)\s+import\b`),
		regexp.MustCompile(`(?m)^\s*use\s+([\w:]+)`),
		regexp.MustCompile(`(?m)^\s*#include\s+[<"]([^>"]+)[>"]`),
		regexp.MustCompile(`(?m)^\s*require(?:_relative)?\s+['"]([^'"]+)['"]`),
	}

	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*(?:func|def|function)\s+(?:\([^)]*\)\s*)?(\w+)`),
		regexp.MustCompile(`(?m)^\s*(?:class|interface|struct|trait|enum|module)\s+(\w+)`),
		regexp.MustCompile(`(?m)^\s*type\s+(\w+)\s+(?:struct|interface)`),
	}

	namespacePattern = regexp.MustCompile(`(?m)^\s*(?:package|namespace|module)\s+([\w./]+)`)

	quotedImportPattern = regexp.MustCompile(`"([^"\n]+)"`)
)

// quotedImportTargets extracts quoted paths from an import node, the shape
// Go grouped imports take.
func quotedImportTargets(node string) []string {
	var out []string
	for _, m := range quotedImportPattern.FindAllStringSubmatch(node, -1) {
		out = append(out, m[1])
	}
	return out
}

// extractDocstring finds a documentation comment inside or above a chunk:
// triple-quoted strings, /** */ blocks, or /// line runs.
func extractDocstring(content string) string {
	if m := pyDocstringPattern.FindStringSubmatch(content); m != nil {
		for _, g := range m[1:] {
			if s := strings.TrimSpace(g); s != "" {
				return s
			}
		}
	}
	if start := strings.Index(content, "/**"); start != -1 {
		if end := strings.Index(content[start:], "*/"); end != -1 {
			return strings.TrimSpace(content[start : start+end+2])
		}
	}
	var triple []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "///") {
			triple = append(triple, strings.TrimSpace(strings.TrimPrefix(trimmed, "///")))
		} else if len(triple) > 0 {
			break
		}
	}
	return strings.Join(triple, "\n")
}

// extractSignature returns the first definition line of a chunk up to the
// opening brace or colon.
func extractSignature(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
			continue
		}
		if i := strings.IndexAny(trimmed, "{"); i != -1 {
			return strings.TrimSpace(trimmed[:i])
		}
		if strings.HasSuffix(trimmed, ":") {
			return strings.TrimSuffix(trimmed, ":")
		}
		return trimmed
	}
	return ""
}

// extractInheritance returns (extends, implements) lists parsed from the
// definition header.
func extractInheritance(content string) ([]string, []string) {
	var extends, implements []string
	for _, p := range extendsPatterns {
		if m := p.FindStringSubmatch(content); m != nil {
			extends = append(extends, splitNameList(m[1])...)
			break
		}
	}
	if m := implementsPattern.FindStringSubmatch(content); m != nil {
		implements = splitNameList(m[1])
	}
	return extends, implements
}

// extractImports finds import targets by regex, best-effort, capped at 30
// per file.
func extractImports(content string) []string {
	var imports []string
	seen := make(map[string]bool)
	for _, p := range importLinePatterns {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			target := strings.TrimSpace(strings.Trim(m[1], `"';`))
			if target == "" || seen[target] || !strings.ContainsAny(target, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ") {
				continue
			}
			seen[target] = true
			imports = append(imports, target)
			if len(imports) >= maxImportsPerFile {
				return imports
			}
		}
	}
	return imports
}

// extractNames finds definition names by regex for files without AST
// support. When AST and regex disagree, AST wins; this only runs on the
// fallback path.
func extractNames(content string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, p := range namePatterns {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	return names
}

// extractNamespace finds a package/namespace/module declaration.
func extractNamespace(content string) string {
	if m := namespacePattern.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

func splitNameList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		// Drop generics and metaclass kwargs.
		if i := strings.IndexAny(name, "<=("); i != -1 {
			name = strings.TrimSpace(name[:i])
		}
		if name != "" && name != "object" {
			out = append(out, name)
		}
	}
	return out
}
