// Package batch groups planned files into review batches that respect
// cross-file relationships and the per-batch file cap.
package batch

import (
	"path"
	"sort"

	"code-review-orchestrator/internal/domain"
)

// MaxFilesPerBatch is the hard cap on batch width.
const MaxFilesPerBatch = 7

// Batch is one unit of Stage-1 work.
type Batch struct {
	GroupID  string
	Priority domain.Priority
	Files    []domain.ReviewFile
}

// Paths returns the file paths in the batch.
func (b Batch) Paths() []string {
	out := make([]string, len(b.Files))
	for i, f := range b.Files {
		out[i] = f.Path
	}
	return out
}

var priorityRank = map[domain.Priority]int{
	domain.PriorityCritical: 0,
	domain.PriorityHigh:     1,
	domain.PriorityMedium:   2,
	domain.PriorityLow:      3,
}

// Build flattens the plan's file groups into batches. Related files share a
// batch; relationship sources are tried in order: enrichment data when
// non-empty, then retriever metadata, then same-directory fallback. Batches
// come out in priority order.
func Build(plan *domain.ReviewPlan, enrichment *domain.EnrichmentData, retrieverRelated map[string][]string, maxFiles int) []Batch {
	if maxFiles <= 0 || maxFiles > MaxFilesPerBatch {
		maxFiles = MaxFilesPerBatch
	}

	groups := make([]domain.FileGroup, len(plan.FileGroups))
	copy(groups, plan.FileGroups)
	sort.SliceStable(groups, func(i, j int) bool {
		return priorityRank[groups[i].Priority] < priorityRank[groups[j].Priority]
	})

	relation := relationLookup(enrichment, retrieverRelated)

	var batches []Batch
	for _, group := range groups {
		if len(group.Files) == 0 {
			continue
		}
		for _, component := range relatedComponents(group.Files, relation) {
			for start := 0; start < len(component); start += maxFiles {
				end := min(start+maxFiles, len(component))

				batches = append(batches, Batch{
					GroupID:  group.GroupID,
					Priority: group.Priority,
					Files:    component[start:end],
				})
			}
		}
	}
	return batches
}

// relationLookup returns a function answering "are these two files related".
func relationLookup(enrichment *domain.EnrichmentData, retrieverRelated map[string][]string) func(a, b string) bool {
	if !enrichment.Empty() {
		return func(a, b string) bool {
			return listsContain(enrichment.Relationships[a], b) ||
				listsContain(enrichment.Relationships[b], a) ||
				listsContain(enrichment.Imports[a], b) ||
				listsContain(enrichment.Imports[b], a)
		}
	}
	if len(retrieverRelated) > 0 {
		return func(a, b string) bool {
			return listsContain(retrieverRelated[a], b) || listsContain(retrieverRelated[b], a)
		}
	}
	return func(a, b string) bool {
		return path.Dir(a) == path.Dir(b)
	}
}

func listsContain(list []string, target string) bool {
	base := path.Base(target)
	stem := base[:len(base)-len(path.Ext(base))]
	for _, item := range list {
		if item == target || item == base || item == stem {
			return true
		}
		if path.Base(item) == base {
			return true
		}
	}
	return false
}

// relatedComponents partitions a group's files into connected components.
// Within a component, files are ordered so directly related pairs sit next
// to each other: splitting an oversized component then keeps importer and
// importee in the same slice wherever possible.
func relatedComponents(files []domain.ReviewFile, related func(a, b string) bool) [][]domain.ReviewFile {
	n := len(files)
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if related(files[i].Path, files[j].Path) {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}

	visited := make([]bool, n)
	var components [][]domain.ReviewFile
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		// Depth-first order keeps related neighbours adjacent.
		var component []domain.ReviewFile
		stack := []int{i}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[cur] {
				continue
			}
			visited[cur] = true
			component = append(component, files[cur])
			for k := len(adj[cur]) - 1; k >= 0; k-- {
				if !visited[adj[cur][k]] {
					stack = append(stack, adj[cur][k])
				}
			}
		}
		components = append(components, component)
	}
	return components
}
