package retriever

import (
	"context"
	"path"
	"strings"

	"code-review-orchestrator/internal/domain"
	"code-review-orchestrator/internal/index"
	"code-review-orchestrator/internal/vectorstore"
)

// deterministicScore is assigned to lookup hits merged into semantic
// context; they were not ranked by the vector search.
const deterministicScore = 0.85

// LookupReferences returns chunks whose semantic names or imports reference
// the given file paths or their basenames. Results carry a synthetic score
// and at most limitPerFile chunks per requested file.
func (r *Retriever) LookupReferences(ctx context.Context, workspace, project string, branches, files []string, limitPerFile int) ([]domain.ScoredChunk, error) {
	if len(files) == 0 || limitPerFile <= 0 {
		return nil, nil
	}
	alias := index.AliasName(r.prefix, workspace, project)
	if exists, err := r.store.CollectionExists(ctx, alias); err != nil || !exists {
		return nil, err
	}

	// Bare names to match against imports and semantic names.
	type target struct {
		file string
		stem string
	}
	targets := make([]target, 0, len(files))
	for _, f := range files {
		base := path.Base(f)
		stem := strings.TrimSuffix(base, path.Ext(base))
		targets = append(targets, target{file: f, stem: stem})
	}

	filter := vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchAny("branch", branches...)},
	}

	perFile := make(map[string]int)
	var out []domain.ScoredChunk
	offset := ""
	for {
		page, next, err := r.store.Scroll(ctx, alias, filter, 256, false, offset)
		if err != nil {
			return out, err
		}
		for _, p := range page {
			for _, t := range targets {
				if perFile[t.file] >= limitPerFile {
					continue
				}
				if !referencesTarget(p.Payload, t.file, t.stem) {
					continue
				}
				perFile[t.file]++
				out = append(out, domain.ScoredChunk{
					PointID: p.ID,
					Score:   deterministicScore,
					Payload: p.Payload,
				})
				break
			}
		}
		if next == "" {
			break
		}
		offset = next
	}
	return out, nil
}

// referencesTarget reports whether a chunk mentions a file through its
// imports or semantic names.
func referencesTarget(payload domain.ChunkPayload, file, stem string) bool {
	if payload.Path == file {
		return false // the file itself is not a reference
	}
	for _, imp := range payload.Imports {
		if imp == file || strings.HasSuffix(imp, "/"+stem) || imp == stem ||
			strings.HasSuffix(imp, "."+stem) || strings.HasSuffix(imp, "/"+path.Base(file)) {
			return true
		}
	}
	for _, name := range payload.SemanticNames {
		if name == stem {
			return true
		}
	}
	return false
}
