// Package retrieval is the optional context-augmentation collaborator: it
// indexes material chunks and returns ranked passages for a query.
package retrieval

import (
	"context"

	"github.com/dgallion1/quizgest/internal/doctree"
)

// Scope keys understood by every Retriever.
const (
	ScopeMaterial = "material_id"
	ScopeCourse   = "course_id"
)

// Passage is one ranked search hit.
type Passage struct {
	Content    string  `json:"content"`
	MaterialID string  `json:"material_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
}

// Retriever returns up to topK passages for query, restricted to the scope
// filters (all must match).
type Retriever interface {
	Retrieve(ctx context.Context, query string, scope map[string]string, topK int) ([]Passage, error)
}

// Indexer makes a material's chunks searchable.
type Indexer interface {
	Index(ctx context.Context, courseID, materialID string, chunks []doctree.Chunk) error
}
