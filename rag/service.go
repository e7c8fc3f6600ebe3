package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"bidforge_back/logging"
)

// SourceArchiver stores the raw extracted text of an uploaded document
// outside the relational store. Archival is best-effort; the pipeline never
// fails because of it.
type SourceArchiver interface {
	ArchiveText(ctx context.Context, projectID, documentID uint64, fileName, content string) (string, error)
}

// ServiceConfig tunes the ingest pipeline.
type ServiceConfig struct {
	// Dimension is the embedding length L shared by every vector in a
	// collection.
	Dimension int
	// EmbedWorkers bounds concurrent embedding calls during document
	// processing. 1 reproduces strictly sequential per-chunk embedding.
	EmbedWorkers int
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.EmbedWorkers <= 0 {
		c.EmbedWorkers = 1
	}
	return c
}

// Service owns the chunk/embed/store write path and the document records.
type Service struct {
	db       *gorm.DB
	embedder Embedder
	store    VectorStore
	chunker  *Chunker
	archive  SourceArchiver
	log      *logging.Logger
	cfg      ServiceConfig

	background sync.WaitGroup
}

// NewService wires the pipeline. archive may be nil.
func NewService(db *gorm.DB, embedder Embedder, store VectorStore, chunker *Chunker, archive SourceArchiver, log *logging.Logger, cfg ServiceConfig) (*Service, error) {
	if db == nil {
		return nil, errors.New("rag: database connection is required")
	}
	if embedder == nil {
		return nil, ErrEmbedderUnavailable
	}
	if store == nil {
		return nil, errors.New("rag: vector store is required")
	}
	if chunker == nil {
		chunker = DefaultChunker()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Service{
		db:       db,
		embedder: embedder,
		store:    store,
		chunker:  chunker,
		archive:  archive,
		log:      log.With("component", "ingest"),
		cfg:      cfg.withDefaults(),
	}, nil
}

// AutoMigrate creates the document and chunk tables.
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&Document{}, &Chunk{})
}

// DocumentInput is a document ready for ingestion: text extraction already
// happened upstream.
type DocumentInput struct {
	ProjectID  uint64
	FileName   string
	FileType   string
	Collection Collection
	Content    string
}

// IngestDocument persists the document record and returns immediately; the
// chunk/embed/store work continues as a detached background task. Until
// that task finishes the document stays processed=false and is invisible to
// similarity search.
func (s *Service) IngestDocument(ctx context.Context, in DocumentInput) (*Document, error) {
	doc, err := s.createDocument(ctx, in)
	if err != nil {
		return nil, err
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		// Detached from the request context on purpose: the upload call has
		// already returned.
		if err := s.ProcessDocument(context.Background(), doc.ID); err != nil {
			s.log.Error("document processing failed", "document_id", doc.ID, "error", err)
		}
	}()

	return doc, nil
}

// IngestDocumentSync runs the full pipeline before returning. Used by the
// seeding entrypoint and anywhere fire-and-forget semantics are unwanted.
func (s *Service) IngestDocumentSync(ctx context.Context, in DocumentInput) (*Document, error) {
	doc, err := s.createDocument(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.ProcessDocument(ctx, doc.ID); err != nil {
		return doc, err
	}
	doc.Processed = true
	return doc, nil
}

// Wait blocks until every detached processing task has finished.
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) createDocument(ctx context.Context, in DocumentInput) (*Document, error) {
	if in.ProjectID == 0 {
		return nil, errors.New("rag: project id is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, errors.New("rag: document content is required")
	}
	collection := in.Collection
	if collection == "" {
		collection = CollectionRFQ
	}
	if !collection.valid() {
		return nil, fmt.Errorf("rag: unknown collection %q", collection)
	}

	doc := Document{
		ProjectID:  in.ProjectID,
		FileName:   strings.TrimSpace(in.FileName),
		FileType:   strings.TrimSpace(in.FileType),
		Collection: string(collection),
		Content:    in.Content,
		Processed:  false,
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, fmt.Errorf("rag: create document: %w", err)
	}

	if s.archive != nil {
		url, err := s.archive.ArchiveText(ctx, doc.ProjectID, doc.ID, doc.FileName, doc.Content)
		if err != nil {
			s.log.Warn("source archive failed", "document_id", doc.ID, "error", err)
		} else if url != "" {
			if err := s.db.WithContext(ctx).Model(&Document{}).Where("id = ?", doc.ID).Update("archive_url", url).Error; err == nil {
				doc.ArchiveURL = url
			}
		}
	}

	return &doc, nil
}

// ProcessDocument chunks, embeds and indexes the stored document, then
// marks it processed. Re-running it for unchanged content produces the same
// chunk count and texts; prior chunks and vectors are replaced, never
// duplicated. On any provider failure the document stays processed=false.
func (s *Service) ProcessDocument(ctx context.Context, documentID uint64) error {
	var doc Document
	if err := s.db.WithContext(ctx).Take(&doc, documentID).Error; err != nil {
		return fmt.Errorf("rag: load document %d: %w", documentID, err)
	}
	collection := Collection(doc.Collection)

	texts := s.chunker.Chunk(doc.Content)
	if len(texts) == 0 {
		// Nothing to index; an empty document is processed trivially.
		return s.db.WithContext(ctx).Model(&Document{}).Where("id = ?", doc.ID).Update("processed", true).Error
	}

	vectors, err := s.embedChunks(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("rag: embedding count mismatch (expected %d, got %d)", len(texts), len(vectors))
	}

	dim := s.dimension(vectors)
	if err := s.store.EnsureCollection(ctx, collection, dim); err != nil {
		return err
	}

	chunks := make([]Chunk, len(texts))
	points := make([]Point, len(texts))
	vectorIDs := make([]string, len(texts))
	for i, text := range texts {
		vectorIDs[i] = uuid.NewString()
		chunks[i] = Chunk{
			DocumentID: doc.ID,
			ProjectID:  doc.ProjectID,
			Seq:        i,
			Text:       text,
			VectorID:   vectorIDs[i],
		}
		points[i] = Point{
			ID:         vectorIDs[i],
			ProjectID:  doc.ProjectID,
			DocumentID: doc.ID,
			Seq:        i,
			Text:       text,
			Vector:     vectors[i],
		}
	}

	// Replace any previous index of this document before writing the new one.
	if err := s.store.DeleteByDocument(ctx, collection, doc.ID); err != nil {
		return fmt.Errorf("rag: clear previous vectors for document %d: %w", doc.ID, err)
	}
	if err := s.store.Insert(ctx, collection, points); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", doc.ID).Delete(&Chunk{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&chunks).Error; err != nil {
			return err
		}
		return tx.Model(&Document{}).Where("id = ?", doc.ID).Update("processed", true).Error
	})
	if err != nil {
		if cleanupErr := s.store.DeleteByDocument(ctx, collection, doc.ID); cleanupErr != nil {
			s.log.Error("cleanup of vector points failed", "document_id", doc.ID, "error", cleanupErr)
		}
		return fmt.Errorf("rag: persist chunks for document %d: %w", doc.ID, err)
	}

	s.log.Info("document indexed", "document_id", doc.ID, "chunks", len(chunks), "collection", collection)
	return nil
}

// embedChunks runs embedding through a bounded worker pool. Ordinal slots
// are assigned before dispatch, so completion order cannot reorder vectors.
func (s *Service) embedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	if s.cfg.EmbedWorkers == 1 {
		return s.embedder.Embed(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EmbedWorkers)
	for i, text := range texts {
		g.Go(func() error {
			out, err := s.embedder.Embed(gctx, []string{text})
			if err != nil {
				return err
			}
			if len(out) != 1 {
				return fmt.Errorf("rag: embedder returned %d vectors for one input", len(out))
			}
			vectors[i] = out[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (s *Service) dimension(vectors [][]float32) int {
	if s.cfg.Dimension > 0 {
		return s.cfg.Dimension
	}
	if len(vectors) > 0 {
		return len(vectors[0])
	}
	return 0
}

// GetDocument loads one document record.
func (s *Service) GetDocument(ctx context.Context, documentID uint64) (*Document, error) {
	var doc Document
	if err := s.db.WithContext(ctx).Take(&doc, documentID).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns the project's documents, newest first.
func (s *Service) ListDocuments(ctx context.Context, projectID uint64) ([]Document, error) {
	var docs []Document
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}

// DocumentChunks returns the chunks of a document in ordinal order.
func (s *Service) DocumentChunks(ctx context.Context, documentID uint64) ([]Chunk, error) {
	var chunks []Chunk
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("seq ASC").
		Find(&chunks).Error
	return chunks, err
}

// CollectionStats reports per-collection chunk counts plus the embedding
// dimension.
type CollectionStats struct {
	Chunks    map[Collection]int64 `json:"chunks"`
	Dimension int                  `json:"dimension"`
}

// Stats counts indexed chunks per collection.
func (s *Service) Stats(ctx context.Context) (*CollectionStats, error) {
	stats := &CollectionStats{
		Chunks:    make(map[Collection]int64, len(Collections())),
		Dimension: s.cfg.Dimension,
	}
	for _, collection := range Collections() {
		var count int64
		err := s.db.WithContext(ctx).
			Model(&Chunk{}).
			Joins("JOIN rag_documents ON rag_documents.id = rag_chunks.document_id").
			Where("rag_documents.collection = ?", string(collection)).
			Count(&count).Error
		if err != nil {
			return nil, fmt.Errorf("rag: count chunks in %s: %w", collection, err)
		}
		stats.Chunks[collection] = count
	}
	return stats, nil
}

// ProjectPurger removes everything a package persisted for a project. The
// bids and conflicts services implement it so PurgeProject can cascade.
type ProjectPurger interface {
	PurgeProject(ctx context.Context, projectID uint64) error
}

// PurgeProject deletes the project's documents, chunks and vector points,
// then runs each extra purger. Deleting a project cascades to everything it
// owns.
func (s *Service) PurgeProject(ctx context.Context, projectID uint64, extra ...ProjectPurger) error {
	for _, collection := range Collections() {
		if err := s.store.DeleteByProject(ctx, collection, projectID); err != nil {
			return fmt.Errorf("rag: purge vectors in %s: %w", collection, err)
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&Chunk{}).Error; err != nil {
			return err
		}
		return tx.Where("project_id = ?", projectID).Delete(&Document{}).Error
	})
	if err != nil {
		return fmt.Errorf("rag: purge project %d: %w", projectID, err)
	}
	for _, purger := range extra {
		if err := purger.PurgeProject(ctx, projectID); err != nil {
			return err
		}
	}
	return nil
}
