package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gorm.io/gorm"
)

// Collection is a logical partition of the vector corpus. The set is closed:
// project RFQ chunks, historical winning bids, and documents staged for
// conflict detection.
type Collection string

const (
	CollectionRFQ      Collection = "rfq_documents"
	CollectionBids     Collection = "historical_bids"
	CollectionConflict Collection = "conflict_documents"
)

// Collections lists every known collection.
func Collections() []Collection {
	return []Collection{CollectionRFQ, CollectionBids, CollectionConflict}
}

func (c Collection) valid() bool {
	switch c {
	case CollectionRFQ, CollectionBids, CollectionConflict:
		return true
	}
	return false
}

// Scope restricts a similarity query to chunks whose owning document belongs
// to the given project. The zero Scope matches the whole collection.
type Scope struct {
	ProjectID uint64
}

// Point is one chunk record handed to the vector store.
type Point struct {
	ID         string
	ProjectID  uint64
	DocumentID uint64
	Seq        int
	Text       string
	Vector     []float32
}

// Match is one similarity-search hit. Score is cosine similarity
// (1 - cosine distance).
type Match struct {
	DocumentID uint64
	Seq        int
	Text       string
	Score      float64
}

// VectorStore persists chunk vectors and answers scoped nearest-neighbour
// queries. Filtering happens inside the store so queries scale with the
// scope, not the global corpus. Searches over an empty scope return an
// empty slice, not an error.
type VectorStore interface {
	EnsureCollection(ctx context.Context, collection Collection, dim int) error
	Insert(ctx context.Context, collection Collection, points []Point) error
	Search(ctx context.Context, collection Collection, query []float32, scope Scope, topK int) ([]Match, error)
	DeleteByDocument(ctx context.Context, collection Collection, documentID uint64) error
	DeleteByProject(ctx context.Context, collection Collection, projectID uint64) error
}

// NewVectorStoreFromEnv selects the backend named by VECTOR_BACKEND
// ("qdrant", the default, or "pgvector"). The pgvector backend reuses the
// relational connection opened by OpenDatabase.
func NewVectorStoreFromEnv(deps VectorStoreDeps) (VectorStore, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VECTOR_BACKEND")))
	switch backend {
	case "", "qdrant":
		cfg := QdrantConfigFromEnv()
		cfg.Dimension = deps.Dimension
		return NewQdrantStore(cfg)
	case "pgvector":
		if deps.DB == nil {
			return nil, errors.New("rag: pgvector backend requires a database connection")
		}
		return NewPgvectorStore(deps.DB, deps.Dimension)
	default:
		return nil, fmt.Errorf("rag: unknown vector backend %q", backend)
	}
}

// VectorStoreDeps carries the collaborators a backend may need.
type VectorStoreDeps struct {
	DB        *gorm.DB
	Dimension int
}

// CosineSimilarity computes the cosine of the angle between two equal-length
// vectors. Both operands must share the collection dimension.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
