package diff

import (
	"regexp"
	"strings"
)

// LineRange represents a range of lines in the new version of a file.
type LineRange struct {
	Start int
	End   int
}

// LineIndex maps files to the line ranges their diff touches. Reconciliation
// uses it to note prior issues whose file the diff did not touch.
type LineIndex struct {
	addedRanges map[string][]LineRange // file -> ranges of + lines (new version)
	allFiles    map[string]bool
}

var hunkHeaderPattern = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// NewLineIndex builds a LineIndex from a unified diff.
func NewLineIndex(diffText string) *LineIndex {
	idx := &LineIndex{
		addedRanges: make(map[string][]LineRange),
		allFiles:    make(map[string]bool),
	}
	idx.parse(diffText)
	return idx
}

func (idx *LineIndex) parse(diffText string) {
	var currentFile string
	var lineNum int
	var rangeStart int
	inRange := false

	closeRange := func() {
		if inRange && currentFile != "" {
			idx.addedRanges[currentFile] = append(idx.addedRanges[currentFile],
				LineRange{Start: rangeStart, End: lineNum - 1})
		}
		inRange = false
	}

	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git"), strings.HasPrefix(line, "+++"):
			closeRange()
			if path := ExtractFilePath(line + "\n"); path != "" {
				currentFile = path
				idx.allFiles[path] = true
			}
		case strings.HasPrefix(line, "@@"):
			closeRange()
			if m := hunkHeaderPattern.FindStringSubmatch(line); len(m) > 1 {
				lineNum = atoiSafe(m[1])
			}
		case strings.HasPrefix(line, "+"):
			if !inRange {
				rangeStart = lineNum
				inRange = true
			}
			lineNum++
		case strings.HasPrefix(line, "-"):
			closeRange()
			// deleted lines do not advance the new-file line counter
		default:
			closeRange()
			lineNum++
		}
	}
	closeRange()
}

// Touches reports whether the diff changes the given file, matching exactly,
// by suffix, or by basename.
func (idx *LineIndex) Touches(path string) bool {
	if idx.allFiles[path] {
		return true
	}
	base := basename(path)
	for f := range idx.allFiles {
		if strings.HasSuffix(f, "/"+path) || strings.HasSuffix(path, "/"+f) || basename(f) == base {
			return true
		}
	}
	return false
}

// LineAdded reports whether the given new-version line of path was added by
// the diff.
func (idx *LineIndex) LineAdded(path string, line int) bool {
	for _, r := range idx.addedRanges[path] {
		if line >= r.Start && line <= r.End {
			return true
		}
	}
	return false
}

// Files returns all files the diff touches.
func (idx *LineIndex) Files() []string {
	files := make([]string, 0, len(idx.allFiles))
	for f := range idx.allFiles {
		files = append(files, f)
	}
	return files
}

func basename(path string) string {
	if i := strings.LastIndex(path, "/"); i != -1 {
		return path[i+1:]
	}
	return path
}

func atoiSafe(s string) int {
	n := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
