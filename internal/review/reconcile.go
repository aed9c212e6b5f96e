package review

import (
	"log/slog"
	"strconv"
	"strings"

	"code-review-orchestrator/internal/diff"
	"code-review-orchestrator/internal/domain"
)

// reconcile merges prior issues with the fresh Stage 1 findings.
//
// A prior issue matched by id or by (file, line) is considered already
// reported: the fresh finding stands, keeping the prior id and the original
// suggested fix so callers can track it across reviews. An unmatched prior
// issue is carried forward unchanged with isResolved=false — resolution is
// only ever set by the model explicitly reporting the prior id resolved.
func reconcile(prior, current []domain.Issue, lineIdx *diff.LineIndex) []domain.Issue {
	byID := make(map[string]int)
	byLocation := make(map[string]int)
	for i, issue := range current {
		if issue.ID != "" {
			byID[issue.ID] = i
		}
		byLocation[locationKey(issue.File, int(issue.Line))] = i
	}

	out := make([]domain.Issue, len(current))
	copy(out, current)

	for _, p := range prior {
		if idx, ok := byID[p.ID]; ok && p.ID != "" {
			out[idx] = mergePrior(out[idx], p)
			continue
		}
		if idx, ok := matchByFileLine(current, byLocation, p); ok {
			out[idx] = mergePrior(out[idx], p)
			continue
		}

		// Not re-reported: carry forward as persisting, untouched. Issues in
		// files the diff never touched are always carried.
		carried := p
		carried.IsResolved = false
		if lineIdx != nil && !lineIdx.Touches(p.File) {
			slog.Debug("prior issue file unchanged, carrying forward", "id", p.ID, "file", p.File)
		}
		out = append(out, carried)
	}
	return out
}

// mergePrior keeps the fresh assessment but preserves the prior identity
// and fix metadata.
func mergePrior(fresh, prior domain.Issue) domain.Issue {
	fresh.ID = prior.ID
	if prior.SuggestedFixDiff != "" {
		fresh.SuggestedFixDiff = prior.SuggestedFixDiff
	}
	if fresh.SuggestedFixDescription == "" {
		fresh.SuggestedFixDescription = prior.SuggestedFixDescription
	}
	return fresh
}

// matchByFileLine finds a fresh issue at the prior issue's location. Files
// match exactly, by suffix, or by basename; lines match exactly.
func matchByFileLine(current []domain.Issue, byLocation map[string]int, p domain.Issue) (int, bool) {
	if idx, ok := byLocation[locationKey(p.File, int(p.Line))]; ok {
		return idx, true
	}
	for i, c := range current {
		if int(c.Line) != int(p.Line) {
			continue
		}
		if filesMatch(c.File, p.File) {
			return i, true
		}
	}
	return 0, false
}

func filesMatch(a, b string) bool {
	if a == b {
		return true
	}
	if strings.HasSuffix(a, "/"+b) || strings.HasSuffix(b, "/"+a) {
		return true
	}
	return baseName(a) == baseName(b)
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i != -1 {
		return path[i+1:]
	}
	return path
}

func locationKey(file string, line int) string {
	return file + ":" + strconv.Itoa(line)
}
