// Package diff parses unified diffs into per-file records and derives the
// retrieval snippets and line indexes the review pipeline consumes.
package diff

import (
	"regexp"
	"strings"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/domain"
)

var (
	diffHeaderPattern = regexp.MustCompile(`(?m)^diff --git\s+(\S+)\s+(\S+)`)
	plusHeaderPattern = regexp.MustCompile(`(?m)^\+\+\+\s+(?:b/)?(\S+)`)
	renameFromPattern = regexp.MustCompile(`(?m)^rename from (.+)$`)
	renameToPattern   = regexp.MustCompile(`(?m)^rename to (.+)$`)
)

// Process parses a unified diff into per-file records, each tagged with its
// change type and keeping the hunks verbatim.
func Process(diffText string) *domain.ProcessedDiff {
	processed := &domain.ProcessedDiff{}
	if strings.TrimSpace(diffText) == "" {
		return processed
	}

	for _, fileDiff := range splitByFile(diffText) {
		file := parseFile(fileDiff)
		if file.Path == "" {
			continue
		}
		processed.Files = append(processed.Files, file)
		processed.TotalAdded += file.Added
		processed.TotalDeleted += file.Deleted
	}
	return processed
}

// splitByFile splits a unified diff into per-file sections on diff --git
// headers, falling back to +++ headers for simpler formats.
func splitByFile(diffText string) []string {
	indices := diffHeaderPattern.FindAllStringIndex(diffText, -1)
	if len(indices) == 0 {
		indices = plusHeaderPattern.FindAllStringIndex(diffText, -1)
		if len(indices) == 0 {
			return []string{diffText}
		}
	}

	var files []string
	for i, idx := range indices {
		start := idx[0]
		end := len(diffText)
		if i+1 < len(indices) {
			end = indices[i+1][0]
		}
		files = append(files, diffText[start:end])
	}
	return files
}

func parseFile(fileDiff string) domain.DiffFile {
	file := domain.DiffFile{
		Path:       ExtractFilePath(fileDiff),
		ChangeType: detectChangeType(fileDiff),
		Diff:       fileDiff,
	}

	if file.ChangeType == domain.ChangeRenamed {
		if m := renameFromPattern.FindStringSubmatch(fileDiff); len(m) > 1 {
			file.OldPath = strings.TrimSpace(m[1])
		}
		if m := renameToPattern.FindStringSubmatch(fileDiff); len(m) > 1 {
			file.Path = strings.TrimSpace(m[1])
		}
	}

	for _, line := range strings.Split(fileDiff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			file.Added++
		case strings.HasPrefix(line, "-"):
			file.Deleted++
		}
	}
	return file
}

func detectChangeType(fileDiff string) domain.ChangeType {
	switch {
	case strings.Contains(fileDiff, "\nnew file mode"):
		return domain.ChangeAdded
	case strings.Contains(fileDiff, "\ndeleted file mode"):
		return domain.ChangeDeleted
	case strings.Contains(fileDiff, "\nrename from "):
		return domain.ChangeRenamed
	case strings.Contains(fileDiff, "--- /dev/null"):
		return domain.ChangeAdded
	case strings.Contains(fileDiff, "+++ /dev/null"):
		return domain.ChangeDeleted
	}
	return domain.ChangeModified
}

// ExtractFilePath extracts the post-change file path from a diff header.
func ExtractFilePath(fileDiff string) string {
	if m := diffHeaderPattern.FindStringSubmatch(fileDiff); len(m) > 2 {
		path := m[2]
		path = strings.TrimPrefix(path, config.PathPrefixGitDestination)
		if path != "/dev/null" {
			return path
		}
		// Deleted file: fall back to the source path.
		return strings.TrimPrefix(m[1], config.PathPrefixGitSource)
	}

	if m := plusHeaderPattern.FindStringSubmatch(fileDiff); len(m) > 1 {
		path := strings.TrimSpace(m[1])
		if path != "/dev/null" {
			return path
		}
	}
	return ""
}
