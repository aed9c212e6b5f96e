package batch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"code-review-orchestrator/internal/domain"
)

func filesFor(paths ...string) []domain.ReviewFile {
	out := make([]domain.ReviewFile, len(paths))
	for i, p := range paths {
		out[i] = domain.ReviewFile{Path: p}
	}
	return out
}

func TestBuildDirectoryFallback(t *testing.T) {
	plan := &domain.ReviewPlan{
		FileGroups: []domain.FileGroup{
			{GroupID: "g1", Priority: domain.PriorityHigh, Files: filesFor(
				"src/services/user/create.go",
				"src/services/user/update.go",
				"src/services/order/create.go",
				"src/services/order/cancel.go",
				"src/services/user/delete.go",
			)},
		},
	}

	batches := Build(plan, nil, nil, 7)
	require.Len(t, batches, 2, "two directories, two batches")

	for _, b := range batches {
		require.LessOrEqual(t, len(b.Files), MaxFilesPerBatch)
		dirs := map[string]bool{}
		for _, f := range b.Files {
			dir := f.Path[:len(f.Path)-len("/xxxxxx.go")]
			dirs[dir] = true
		}
		require.Len(t, dirs, 1, "directory grouping must hold: %v", b.Paths())
	}
}

func TestBuildRespectsCap(t *testing.T) {
	paths := make([]string, 10)
	for i := range paths {
		paths[i] = "pkg/big/file" + string(rune('a'+i)) + ".go"
	}
	plan := &domain.ReviewPlan{
		FileGroups: []domain.FileGroup{
			{GroupID: "g1", Priority: domain.PriorityMedium, Files: filesFor(paths...)},
		},
	}

	batches := Build(plan, nil, nil, 7)
	require.Len(t, batches, 2)
	require.Len(t, batches[0].Files, 7)
	require.Len(t, batches[1].Files, 3)
}

func TestBuildEnrichmentWins(t *testing.T) {
	plan := &domain.ReviewPlan{
		FileGroups: []domain.FileGroup{
			{GroupID: "g1", Priority: domain.PriorityHigh, Files: filesFor(
				"a/x.go", "b/y.go", "c/z.go",
			)},
		},
	}
	enrichment := &domain.EnrichmentData{
		Relationships: map[string][]string{"a/x.go": {"b/y.go"}},
	}

	batches := Build(plan, enrichment, nil, 7)
	require.Len(t, batches, 2)

	var together []string
	for _, b := range batches {
		if len(b.Files) == 2 {
			together = b.Paths()
		}
	}
	require.ElementsMatch(t, []string{"a/x.go", "b/y.go"}, together,
		"enrichment-related files must share a batch despite different directories")
}

func TestBuildImporterPairsStayTogetherOnSplit(t *testing.T) {
	// One related chain of 9 files: importer i imports i+1.
	paths := make([]string, 9)
	for i := range paths {
		paths[i] = "pkg/chain/f" + string(rune('0'+i)) + ".go"
	}
	rel := map[string][]string{}
	for i := 0; i < len(paths)-1; i++ {
		rel[paths[i]] = []string{paths[i+1]}
	}
	plan := &domain.ReviewPlan{
		FileGroups: []domain.FileGroup{
			{GroupID: "g1", Priority: domain.PriorityHigh, Files: filesFor(paths...)},
		},
	}

	batches := Build(plan, nil, rel, 7)
	require.Len(t, batches, 2)
	// DFS order over the chain keeps consecutive importer/importee pairs
	// adjacent; the split puts f0..f6 together and f7,f8 together.
	require.Equal(t, 7, len(batches[0].Files))
	require.Equal(t, 2, len(batches[1].Files))
	first := batches[0].Paths()
	for i := 0; i < len(first)-1; i++ {
		require.Contains(t, rel[first[i]], first[i+1], "chain order must be preserved")
	}
}

func TestBuildPriorityOrder(t *testing.T) {
	plan := &domain.ReviewPlan{
		FileGroups: []domain.FileGroup{
			{GroupID: "low", Priority: domain.PriorityLow, Files: filesFor("docs/readme.md")},
			{GroupID: "crit", Priority: domain.PriorityCritical, Files: filesFor("auth/login.go")},
			{GroupID: "med", Priority: domain.PriorityMedium, Files: filesFor("pkg/util.go")},
		},
	}

	batches := Build(plan, nil, nil, 7)
	require.Len(t, batches, 3)
	require.Equal(t, "crit", batches[0].GroupID)
	require.Equal(t, "med", batches[1].GroupID)
	require.Equal(t, "low", batches[2].GroupID)
}
