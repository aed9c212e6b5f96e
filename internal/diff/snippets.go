package diff

import "strings"

const (
	snippetGroupSize   = 3
	maxSnippetsPerFile = 10
)

// Snippets extracts embedding queries from a file diff: every three
// consecutive non-trivial added lines become one snippet, capped at ten per
// file. Snippets carry no file path; they are queries, not citations.
func Snippets(fileDiff string) []string {
	var snippets []string
	var group []string

	flush := func() {
		if len(group) == snippetGroupSize {
			snippets = append(snippets, strings.Join(group, "\n"))
		}
		group = group[:0]
	}

	for _, line := range strings.Split(fileDiff, "\n") {
		if len(snippets) >= maxSnippetsPerFile {
			break
		}
		if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
			flush()
			continue
		}
		content := strings.TrimSpace(line[1:])
		if isTrivialLine(content) {
			flush()
			continue
		}
		group = append(group, content)
		if len(group) == snippetGroupSize {
			flush()
		}
	}

	return snippets
}

// isTrivialLine filters comments and braces-only lines that carry no
// semantic signal for embedding.
func isTrivialLine(content string) bool {
	if content == "" {
		return true
	}
	for _, prefix := range []string{"//", "#", "/*", "*", "*/", "--"} {
		if strings.HasPrefix(content, prefix) {
			return true
		}
	}
	trimmed := strings.Trim(content, "{}()[];, \t")
	return trimmed == ""
}

// BatchSnippets collects snippets across several file diffs, keeping at most
// limit in total.
func BatchSnippets(fileDiffs []string, limit int) []string {
	var all []string
	for _, fd := range fileDiffs {
		all = append(all, Snippets(fd)...)
		if limit > 0 && len(all) >= limit {
			return all[:limit]
		}
	}
	return all
}
