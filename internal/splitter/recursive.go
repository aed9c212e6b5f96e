package splitter

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// recursiveSplit splits text with a language-aware recursive character
// splitter. Used for whole files without AST support and for oversized
// semantic chunks.
func recursiveSplit(lang, text string, chunkSize, overlap int) ([]string, error) {
	sp := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(separatorsFor(lang)),
	)
	parts, err := sp.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("recursive split: %w", err)
	}
	return parts, nil
}

// locateLines returns the 1-based start and end line of part inside full,
// best-effort: when the part cannot be located (overlap rewriting), the
// previous position is advanced by the part's line count.
func locateLines(full, part string, searchFrom int) (start, end, nextFrom int) {
	idx := strings.Index(full[searchFrom:], part)
	if idx == -1 {
		start = strings.Count(full[:searchFrom], "\n") + 1
	} else {
		start = strings.Count(full[:searchFrom+idx], "\n") + 1
		nextFrom = searchFrom + idx + len(part)
	}
	end = start + strings.Count(part, "\n")
	if nextFrom == 0 {
		nextFrom = searchFrom
	}
	return start, end, nextFrom
}
