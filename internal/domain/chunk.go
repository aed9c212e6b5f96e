package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ContentType classifies how a chunk was produced.
type ContentType string

const (
	ContentFunctionsClasses ContentType = "functions_classes"
	ContentSimplifiedCode   ContentType = "simplified_code"
	ContentFallback         ContentType = "fallback"
	ContentOversizedSplit   ContentType = "oversized_split"
)

// ChunkPayload is the typed payload stored with every vector point.
// Optional fields are zero-valued when absent.
type ChunkPayload struct {
	Path          string      `json:"path"`
	Language      string      `json:"language"`
	Workspace     string      `json:"workspace"`
	Project       string      `json:"project"`
	Branch        string      `json:"branch"`
	Commit        string      `json:"commit,omitempty"`
	IndexedAt     string      `json:"indexed_at,omitempty"`
	Content       string      `json:"content"`
	ContentType   ContentType `json:"content_type"`
	SemanticNames []string    `json:"semantic_names,omitempty"`
	PrimaryName   string      `json:"primary_name,omitempty"`
	ParentContext []string    `json:"parent_context,omitempty"`
	ParentClass   string      `json:"parent_class,omitempty"`
	ParentChunkID string      `json:"parent_chunk_id,omitempty"`
	StartLine     int         `json:"start_line"`
	EndLine       int         `json:"end_line"`
	Docstring     string      `json:"docstring,omitempty"`
	Signature     string      `json:"signature,omitempty"`
	Extends       []string    `json:"extends,omitempty"`
	Implements    []string    `json:"implements,omitempty"`
	Imports       []string    `json:"imports,omitempty"`
	Namespace     string      `json:"namespace,omitempty"`
	PRNumber      int         `json:"pr_number,omitempty"`
}

// Chunk is one unit of indexed text.
type Chunk struct {
	ID      string // content-derived id from the splitter
	Index   int    // position within the file's chunk list
	PointID string // stable store point id, see PointID
	Payload ChunkPayload
}

// PointID derives the stable vector-store point id for a chunk position.
// It is a pure function of its inputs: reindexing the same file on the same
// branch replaces points instead of duplicating them.
func PointID(workspace, project, branch, path string, chunkIndex int) string {
	name := fmt.Sprintf("%s:%s:%s:%s:%d", workspace, project, branch, path, chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name)).String()
}

// ScoredChunk is a retrieval hit: a chunk payload plus its adjusted score.
type ScoredChunk struct {
	PointID string
	Score   float64
	Payload ChunkPayload
}
