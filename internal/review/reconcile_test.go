package review

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"code-review-orchestrator/internal/diff"
	"code-review-orchestrator/internal/domain"
)

func TestReconcileCarriesUnmatchedPriorForward(t *testing.T) {
	prior := []domain.Issue{{
		ID:                      "ABC",
		Severity:                domain.SeverityHigh,
		Category:                domain.CategoryBugRisk,
		File:                    "auth.go",
		Line:                    42,
		Reason:                  "missing null check",
		SuggestedFixDescription: "add a nil guard",
		SuggestedFixDiff:        "+ if u == nil { return err }",
		IsResolved:              true, // must be reset: only the model resolves
	}}

	out := reconcile(prior, nil, diff.NewLineIndex(""))
	require.Len(t, out, 1)
	require.Equal(t, "ABC", out[0].ID)
	require.False(t, out[0].IsResolved)
	require.Equal(t, "+ if u == nil { return err }", out[0].SuggestedFixDiff)
	require.Equal(t, domain.SeverityHigh, out[0].Severity)
}

func TestReconcileMatchesByID(t *testing.T) {
	prior := []domain.Issue{{
		ID: "ABC", File: "auth.go", Line: 42, Reason: "missing null check",
		Severity: domain.SeverityHigh, Category: domain.CategoryBugRisk,
		SuggestedFixDiff: "original fix diff",
	}}
	current := []domain.Issue{{
		ID: "ABC", File: "auth.go", Line: 42, Reason: "null check added",
		Severity: domain.SeverityHigh, Category: domain.CategoryBugRisk,
		IsResolved: true,
	}}

	out := reconcile(prior, current, nil)
	require.Len(t, out, 1, "matched prior issue must not duplicate")
	require.Equal(t, "ABC", out[0].ID)
	require.True(t, out[0].IsResolved, "explicit model resolution stands")
	require.Equal(t, "original fix diff", out[0].SuggestedFixDiff, "original fix diff preserved")
}

func TestReconcileMatchesByFileLine(t *testing.T) {
	prior := []domain.Issue{{
		ID: "OLD-1", File: "pkg/auth/auth.go", Line: 10, Reason: "old wording",
		Severity: domain.SeverityMedium, Category: domain.CategoryCodeQuality,
		SuggestedFixDiff: "old diff",
	}}
	current := []domain.Issue{{
		ID: "fresh-id", File: "auth.go", Line: 10, Reason: "new wording",
		Severity: domain.SeverityMedium, Category: domain.CategoryCodeQuality,
	}}

	out := reconcile(prior, current, nil)
	require.Len(t, out, 1)
	require.Equal(t, "OLD-1", out[0].ID, "prior id wins on a location match")
	require.Equal(t, "old diff", out[0].SuggestedFixDiff)
	require.Equal(t, "new wording", out[0].Reason, "fresh assessment kept")
}

func TestReconcileMixed(t *testing.T) {
	prior := []domain.Issue{
		{ID: "A", File: "a.go", Line: 1, Reason: "first", Severity: domain.SeverityLow, Category: domain.CategoryStyle},
		{ID: "B", File: "b.go", Line: 2, Reason: "second", Severity: domain.SeverityHigh, Category: domain.CategorySecurity},
	}
	current := []domain.Issue{
		{ID: "A", File: "a.go", Line: 1, Reason: "first again", Severity: domain.SeverityLow, Category: domain.CategoryStyle, IsResolved: true},
		{ID: "new", File: "c.go", Line: 9, Reason: "brand new", Severity: domain.SeverityMedium, Category: domain.CategoryBugRisk},
	}

	out := reconcile(prior, current, nil)
	require.Len(t, out, 3)

	byID := map[string]domain.Issue{}
	for _, issue := range out {
		byID[issue.ID] = issue
	}
	require.True(t, byID["A"].IsResolved)
	require.False(t, byID["B"].IsResolved, "unmatched prior persists unresolved")
	require.Equal(t, "brand new", byID["new"].Reason)
}

func TestLineNumberUnmarshalTolerance(t *testing.T) {
	// Prior issues with unparsable line numbers are forwarded with line 1.
	var issue domain.Issue
	raw := `{"id":"X","severity":"LOW","category":"STYLE","file":"a.go","line":"not-a-number","reason":"r"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &issue))
	require.EqualValues(t, 1, issue.Line)
	require.Equal(t, "X", issue.ID)

	raw = `{"id":"Y","severity":"LOW","category":"STYLE","file":"a.go","line":"17","reason":"r"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &issue))
	require.EqualValues(t, 17, issue.Line, "numeric strings parse")
}
