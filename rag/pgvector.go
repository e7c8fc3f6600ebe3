package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// PgvectorStore implements VectorStore on a Postgres database with the
// pgvector extension. Each collection gets its own table because the vector
// column length is fixed at table creation.
type PgvectorStore struct {
	db   *gorm.DB
	dims map[Collection]int
}

// NewPgvectorStore wraps an open gorm Postgres connection. dim may be 0 and
// supplied later through EnsureCollection.
func NewPgvectorStore(db *gorm.DB, dim int) (*PgvectorStore, error) {
	if db == nil {
		return nil, errors.New("rag: database connection is required")
	}
	store := &PgvectorStore{db: db, dims: make(map[Collection]int)}
	if dim > 0 {
		for _, c := range Collections() {
			store.dims[c] = dim
		}
	}
	return store, nil
}

func (s *PgvectorStore) tableName(collection Collection) string {
	return "rag_vectors_" + strings.ReplaceAll(string(collection), "-", "_")
}

// EnsureCollection installs the extension and creates the per-collection
// table and index when missing.
func (s *PgvectorStore) EnsureCollection(ctx context.Context, collection Collection, dim int) error {
	if !collection.valid() {
		return fmt.Errorf("rag: unknown collection %q", collection)
	}
	if dim <= 0 {
		return errors.New("rag: vector dimension must be positive")
	}

	tx := s.db.WithContext(ctx)
	if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("rag: enable pgvector extension: %w", err)
	}
	table := s.tableName(collection)
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		project_id BIGINT NOT NULL,
		document_id BIGINT NOT NULL,
		seq INT NOT NULL,
		chunk_text TEXT NOT NULL,
		embedding vector(%d) NOT NULL
	)`, table, dim)
	if err := tx.Exec(createTable).Error; err != nil {
		return fmt.Errorf("rag: create table %s: %w", table, err)
	}
	createIndex := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_project ON %s (project_id)", table, table)
	if err := tx.Exec(createIndex).Error; err != nil {
		return fmt.Errorf("rag: create index on %s: %w", table, err)
	}
	s.dims[collection] = dim
	return nil
}

// Insert appends the points inside one transaction.
func (s *PgvectorStore) Insert(ctx context.Context, collection Collection, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	dim := s.dims[collection]
	table := s.tableName(collection)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range points {
			if dim > 0 && len(p.Vector) != dim {
				return fmt.Errorf("%w: point %s has %d, collection %s expects %d", ErrDimensionMismatch, p.ID, len(p.Vector), collection, dim)
			}
			insert := fmt.Sprintf("INSERT INTO %s (id, project_id, document_id, seq, chunk_text, embedding) VALUES (?, ?, ?, ?, ?, ?)", table)
			if err := tx.Exec(insert, p.ID, p.ProjectID, p.DocumentID, p.Seq, p.Text, pgvector.NewVector(p.Vector)).Error; err != nil {
				return fmt.Errorf("rag: insert chunk vector: %w", err)
			}
		}
		return nil
	})
}

// Search runs the cosine-distance query with the scope filter in the WHERE
// clause. Ties on score resolve by document then seq, i.e. insertion order.
func (s *PgvectorStore) Search(ctx context.Context, collection Collection, query []float32, scope Scope, topK int) ([]Match, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if dim := s.dims[collection]; dim > 0 && len(query) != dim {
		return nil, fmt.Errorf("%w: query has %d, collection %s expects %d", ErrDimensionMismatch, len(query), collection, dim)
	}
	if topK <= 0 {
		topK = 5
	}

	table := s.tableName(collection)
	sql := fmt.Sprintf(`SELECT document_id, seq, chunk_text, 1 - (embedding <=> ?) AS score
		FROM %s
		WHERE (? = 0 OR project_id = ?)
		ORDER BY embedding <=> ?, document_id, seq
		LIMIT ?`, table)

	vec := pgvector.NewVector(query)
	var rows []struct {
		DocumentID uint64
		Seq        int
		ChunkText  string
		Score      float64
	}
	if err := s.db.WithContext(ctx).Raw(sql, vec, scope.ProjectID, scope.ProjectID, vec, topK).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("rag: pgvector search: %w", err)
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, Match{
			DocumentID: row.DocumentID,
			Seq:        row.Seq,
			Text:       row.ChunkText,
			Score:      row.Score,
		})
	}
	return matches, nil
}

// DeleteByDocument removes the document's vectors from the collection table.
func (s *PgvectorStore) DeleteByDocument(ctx context.Context, collection Collection, documentID uint64) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE document_id = ?", s.tableName(collection))
	if err := s.db.WithContext(ctx).Exec(sql, documentID).Error; err != nil {
		return fmt.Errorf("rag: delete vectors for document %d: %w", documentID, err)
	}
	return nil
}

// DeleteByProject removes the project's vectors from the collection table.
func (s *PgvectorStore) DeleteByProject(ctx context.Context, collection Collection, projectID uint64) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE project_id = ?", s.tableName(collection))
	if err := s.db.WithContext(ctx).Exec(sql, projectID).Error; err != nil {
		return fmt.Errorf("rag: delete vectors for project %d: %w", projectID, err)
	}
	return nil
}
