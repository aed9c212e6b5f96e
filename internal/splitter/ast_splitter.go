// Package splitter produces semantic chunks from source files using
// tree-sitter queries, with a recursive character splitter as fallback for
// unsupported languages, unparsable files, and oversized constructs.
package splitter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"code-review-orchestrator/internal/domain"
)

// minASTLines is the minimum file length worth AST parsing; shorter files
// go straight to the fallback splitter.
const minASTLines = 10

// Splitter converts source files into chunks ready for embedding.
type Splitter struct {
	maxChunkSize int
	minChunkSize int
	chunkOverlap int
}

// New creates a Splitter. Zero values fall back to sensible defaults.
func New(maxChunkSize, minChunkSize, chunkOverlap int) *Splitter {
	if maxChunkSize <= 0 {
		maxChunkSize = 4000
	}
	if minChunkSize <= 0 {
		minChunkSize = 100
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Splitter{maxChunkSize: maxChunkSize, minChunkSize: minChunkSize, chunkOverlap: chunkOverlap}
}

// Split chunks one file. The returned chunks carry content metadata only;
// the indexer fills in workspace, project, branch and commit before upsert.
// Splitting the same content twice yields the same chunk ids.
func (s *Splitter) Split(ctx context.Context, path, content string) []domain.Chunk {
	lang := DetectLanguage(path)
	lineCount := strings.Count(content, "\n") + 1

	if SupportsAST(lang) && lineCount >= minASTLines {
		chunks, err := s.splitAST(ctx, lang, path, content)
		if err == nil {
			return s.finalize(path, chunks)
		}
		slog.Debug("ast split failed, using fallback", "path", path, "language", lang, "error", err)
	}

	return s.finalize(path, s.splitFallback(lang, path, content))
}

// splitAST runs the language query and emits one chunk per captured
// construct plus a simplified skeleton chunk for the whole file.
func (s *Splitter) splitAST(ctx context.Context, lang, path, content string) ([]domain.Chunk, error) {
	source := []byte(content)
	constructs, importNodes, err := runQuery(ctx, lang, source)
	if err != nil {
		return nil, err
	}
	if len(constructs) == 0 {
		return nil, fmt.Errorf("no constructs captured in %s", path)
	}

	imports := collectImports(importNodes, content)
	namespace := extractNamespace(content)

	var chunks []domain.Chunk
	for _, c := range constructs {
		payload := domain.ChunkPayload{
			Path:        path,
			Language:    lang,
			Content:     c.Content,
			ContentType: domain.ContentFunctionsClasses,
			PrimaryName: c.Name,
			StartLine:   c.StartLine,
			EndLine:     c.EndLine,
			Signature:   extractSignature(c.Content),
			Imports:     imports,
			Namespace:   namespace,
		}
		if c.Name != "" {
			payload.SemanticNames = []string{c.Name}
		}
		if len(c.Parents) > 0 {
			payload.ParentContext = c.Parents
			payload.ParentClass = c.Parents[len(c.Parents)-1]
		}
		if c.Docstring != "" {
			payload.Docstring = c.Docstring
		} else {
			payload.Docstring = extractDocstring(c.Content)
		}
		if isClassKind(c.Kind) {
			payload.Extends, payload.Implements = extractInheritance(c.Content)
		}

		if len(c.Content) > s.maxChunkSize {
			chunks = append(chunks, s.splitOversized(lang, path, payload)...)
			continue
		}
		chunks = append(chunks, domain.Chunk{Payload: payload})
	}

	// Minimum chunk size: drop undersized chunks unless nothing else remains.
	kept := chunks[:0]
	for _, c := range chunks {
		if len(c.Payload.Content) >= s.minChunkSize {
			kept = append(kept, c)
		}
	}
	if len(kept) > 0 {
		chunks = kept
	} else {
		chunks = chunks[:1]
	}

	chunks = append(chunks, s.simplifiedChunk(lang, path, content, constructs, imports, namespace))
	return chunks, nil
}

// splitOversized splits one construct that exceeds maxChunkSize. Sub-chunks
// inherit the parent's metadata and reference its chunk id.
func (s *Splitter) splitOversized(lang, path string, parent domain.ChunkPayload) []domain.Chunk {
	parentID := chunkID(path, parent.StartLine, parent.Content)
	parts, err := recursiveSplit(lang, parent.Content, s.maxChunkSize, s.chunkOverlap)
	if err != nil || len(parts) == 0 {
		slog.Warn("oversized split failed, keeping whole construct", "path", path, "error", err)
		return []domain.Chunk{{Payload: parent}}
	}

	chunks := make([]domain.Chunk, 0, len(parts))
	searchFrom := 0
	for _, part := range parts {
		payload := parent
		payload.Content = part
		payload.ContentType = domain.ContentOversizedSplit
		payload.ParentChunkID = parentID
		var start, end int
		start, end, searchFrom = locateLines(parent.Content, part, searchFrom)
		payload.StartLine = parent.StartLine + start - 1
		payload.EndLine = parent.StartLine + end - 1
		chunks = append(chunks, domain.Chunk{Payload: payload})
	}
	return chunks
}

// simplifiedChunk synthesises the file skeleton: every outermost semantic
// construct is replaced by a single placeholder comment line.
func (s *Splitter) simplifiedChunk(lang, path, content string, constructs []construct, imports []string, namespace string) domain.Chunk {
	type span struct{ start, end int }
	var spans []span
	var names []string
	lastEnd := 0
	for _, c := range constructs {
		if c.StartLine <= lastEnd {
			continue // nested inside a previous construct
		}
		spans = append(spans, span{c.StartLine, c.EndLine})
		lastEnd = c.EndLine
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}

	prefix := commentPrefix(lang)
	lines := strings.Split(content, "\n")
	var out []string
	spanIdx := 0
	for i := 1; i <= len(lines); i++ {
		if spanIdx < len(spans) && i == spans[spanIdx].start {
			c := constructs[0]
			for _, cand := range constructs {
				if cand.StartLine == i {
					c = cand
					break
				}
			}
			label := c.Name
			if label == "" {
				label = c.Kind
			}
			out = append(out, fmt.Sprintf("%s [%s %s]", prefix, c.Kind, label))
			i = spans[spanIdx].end
			spanIdx++
			continue
		}
		out = append(out, lines[i-1])
	}

	return domain.Chunk{Payload: domain.ChunkPayload{
		Path:          path,
		Language:      lang,
		Content:       strings.Join(out, "\n"),
		ContentType:   domain.ContentSimplifiedCode,
		SemanticNames: names,
		StartLine:     1,
		EndLine:       len(lines),
		Imports:       imports,
		Namespace:     namespace,
	}}
}

// splitFallback splits a whole file with the recursive character splitter
// and extracts names and imports by regex best-effort.
func (s *Splitter) splitFallback(lang, path, content string) []domain.Chunk {
	imports := extractImports(content)
	namespace := extractNamespace(content)

	parts, err := recursiveSplit(lang, content, s.maxChunkSize, s.chunkOverlap)
	if err != nil || len(parts) == 0 {
		parts = []string{content}
	}

	chunks := make([]domain.Chunk, 0, len(parts))
	searchFrom := 0
	for _, part := range parts {
		names := extractNames(part)
		payload := domain.ChunkPayload{
			Path:          path,
			Language:      lang,
			Content:       part,
			ContentType:   domain.ContentFallback,
			SemanticNames: names,
			Imports:       imports,
			Namespace:     namespace,
		}
		if len(names) > 0 {
			payload.PrimaryName = names[0]
		}
		var start, end int
		start, end, searchFrom = locateLines(content, part, searchFrom)
		payload.StartLine = start
		payload.EndLine = end
		chunks = append(chunks, domain.Chunk{Payload: payload})
	}

	// Minimum chunk size applies here too; a lone undersized chunk survives.
	if len(chunks) > 1 {
		kept := chunks[:0]
		for _, c := range chunks {
			if len(c.Payload.Content) >= s.minChunkSize {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			chunks = kept
		}
	}
	return chunks
}

// finalize assigns sequential indexes and deterministic chunk ids.
func (s *Splitter) finalize(path string, chunks []domain.Chunk) []domain.Chunk {
	for i := range chunks {
		chunks[i].Index = i
		chunks[i].ID = chunkID(path, i, chunks[i].Payload.Content)
	}
	return chunks
}

// chunkID derives the deterministic chunk id: the first 32 hex chars of
// sha256(path : index : content[:500]).
func chunkID(path string, index int, content string) string {
	prefix := content
	if len(prefix) > 500 {
		prefix = prefix[:500]
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", path, index, prefix)))
	return hex.EncodeToString(sum[:])[:32]
}

func isClassKind(kind string) bool {
	switch kind {
	case "class", "interface", "struct", "trait", "enum", "impl", "module":
		return true
	}
	return false
}

func collectImports(importNodes []string, content string) []string {
	if len(importNodes) == 0 {
		return extractImports(content)
	}
	var imports []string
	seen := make(map[string]bool)
	add := func(targets []string) {
		for _, t := range targets {
			if !seen[t] && len(imports) < maxImportsPerFile {
				seen[t] = true
				imports = append(imports, t)
			}
		}
	}
	for _, node := range importNodes {
		add(extractImports(node))
		add(quotedImportTargets(node))
	}
	if len(imports) == 0 {
		return extractImports(content)
	}
	return imports
}
