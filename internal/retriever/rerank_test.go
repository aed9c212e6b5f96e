package retriever

import (
	"testing"

	"code-review-orchestrator/internal/domain"
)

func TestPathCoefficient(t *testing.T) {
	cases := map[string]float64{
		"src/services/user_service.py": highPriorityBoost,
		"internal/auth/login.go":       highPriorityBoost,
		"db/migrations/0001_init.sql":  highPriorityBoost,
		"pkg/models/user.go":           mediumPriorityBoost,
		"lib/helpers/str.rb":           mediumPriorityBoost,
		"pkg/foo/bar_test.go":          lowPriorityPenalty,
		"fixtures/data.json":           lowPriorityPenalty,
		"docs/overview.md":             1.0,
	}
	for path, want := range cases {
		if got := pathCoefficient(path); got != want {
			t.Errorf("pathCoefficient(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestRerankCapsAtOne(t *testing.T) {
	chunk := domain.ScoredChunk{
		Score: 0.95,
		Payload: domain.ChunkPayload{
			Path:          "src/services/payment_service.go",
			ContentType:   domain.ContentFunctionsClasses,
			SemanticNames: []string{"Charge"},
			Docstring:     "Charge processes a payment.",
		},
	}
	// 0.95 * 1.3 * 1.2 * 1.1 * 1.05 would exceed 1.0; must be capped.
	if got := rerank(chunk); got != 1.0 {
		t.Errorf("rerank = %v, want capped 1.0", got)
	}
}

func TestRerankDemotesSimplifiedTestChunks(t *testing.T) {
	chunk := domain.ScoredChunk{
		Score: 0.5,
		Payload: domain.ChunkPayload{
			Path:        "pkg/widgets/widget_test.go",
			ContentType: domain.ContentSimplifiedCode,
		},
	}
	want := 0.5 * lowPriorityPenalty * 0.7
	got := rerank(chunk)
	if got < want-1e-9 || got > want+1e-9 {
		t.Errorf("rerank = %v, want %v", got, want)
	}
	if got < 0 || got > 1 {
		t.Errorf("rerank out of [0,1]: %v", got)
	}
}

func TestTopDirectories(t *testing.T) {
	files := []string{
		"src/a/one.go", "src/a/two.go", "src/a/three.go",
		"src/b/one.go", "src/b/two.go",
		"src/c/solo.go",
		"src/d/solo.go", "src/e/solo.go", "src/f/solo.go", "src/g/solo.go",
	}
	clusters := topDirectories(files, 5)
	if len(clusters) != 5 {
		t.Fatalf("expected 5 clusters, got %d", len(clusters))
	}
	if clusters[0].dir != "src/a" || clusters[0].count != 3 {
		t.Errorf("busiest cluster should be src/a, got %+v", clusters[0])
	}
	if clusters[1].dir != "src/b" {
		t.Errorf("second cluster should be src/b, got %+v", clusters[1])
	}
}
