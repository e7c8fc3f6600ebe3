package conflicts

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"bidforge_back/logging"
	"bidforge_back/rag"
)

// Service runs detection over a project's processed documents and keeps the
// resulting conflict records.
type Service struct {
	db       *gorm.DB
	embedder rag.Embedder
	detector *Detector
	log      *logging.Logger
}

func NewService(db *gorm.DB, embedder rag.Embedder, detector *Detector, log *logging.Logger) (*Service, error) {
	if db == nil {
		return nil, errors.New("conflicts: database connection is required")
	}
	if embedder == nil {
		return nil, rag.ErrEmbedderUnavailable
	}
	if detector == nil {
		detector = NewDetector(DetectorConfig{})
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Service{
		db:       db,
		embedder: embedder,
		detector: detector,
		log:      log.With("component", "conflict_detector"),
	}, nil
}

// AutoMigrate creates the conflicts table.
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&Conflict{})
}

// Run compares every processed document pair in the project and stores the
// findings. Previous unresolved conflicts are replaced; reviewed and
// resolved ones survive reruns. A project with fewer than two processed
// documents yields no conflicts and no error.
func (s *Service) Run(ctx context.Context, projectID uint64) ([]Conflict, error) {
	docs, err := s.loadDocuments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(docs) < 2 {
		return nil, nil
	}

	var findings []Finding
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			pair, err := s.detector.Compare(docs[i], docs[j])
			if err != nil {
				return nil, err
			}
			findings = append(findings, pair...)
		}
	}

	conflicts := make([]Conflict, len(findings))
	for i, f := range findings {
		conflicts[i] = Conflict{
			ProjectID:   projectID,
			Kind:        f.Kind,
			Severity:    f.Severity,
			Status:      StatusUnresolved,
			Description: f.Description,
			DocAID:      f.DocAID,
			DocBID:      f.DocBID,
			ExcerptA:    f.ExcerptA,
			ExcerptB:    f.ExcerptB,
			Similarity:  f.Similarity,
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ? AND status = ?", projectID, StatusUnresolved).
			Delete(&Conflict{}).Error; err != nil {
			return err
		}
		if len(conflicts) == 0 {
			return nil
		}
		return tx.Create(&conflicts).Error
	})
	if err != nil {
		return nil, fmt.Errorf("conflicts: store findings: %w", err)
	}

	s.log.Info("conflict detection finished",
		"project_id", projectID, "documents", len(docs), "conflicts", len(conflicts))
	return conflicts, nil
}

// loadDocuments pulls the project's processed documents with their chunks
// and embeds each chunk for semantic comparison.
func (s *Service) loadDocuments(ctx context.Context, projectID uint64) ([]DocumentInput, error) {
	var records []rag.Document
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND processed = ?", projectID, true).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("conflicts: load documents: %w", err)
	}

	docs := make([]DocumentInput, 0, len(records))
	for _, record := range records {
		var chunks []rag.Chunk
		err := s.db.WithContext(ctx).
			Where("document_id = ?", record.ID).
			Order("seq ASC").
			Find(&chunks).Error
		if err != nil {
			return nil, fmt.Errorf("conflicts: load chunks for document %d: %w", record.ID, err)
		}

		doc := DocumentInput{ID: record.ID, Content: record.Content}
		if len(chunks) > 0 {
			texts := make([]string, len(chunks))
			for i, chunk := range chunks {
				texts[i] = chunk.Text
			}
			vectors, err := s.embedder.Embed(ctx, texts)
			if err != nil {
				return nil, fmt.Errorf("conflicts: embed chunks for document %d: %w", record.ID, err)
			}
			if len(vectors) != len(chunks) {
				return nil, fmt.Errorf("conflicts: embedding count mismatch for document %d", record.ID)
			}
			doc.Chunks = make([]ChunkInput, len(chunks))
			for i, chunk := range chunks {
				doc.Chunks[i] = ChunkInput{
					DocumentID: record.ID,
					Seq:        chunk.Seq,
					Text:       chunk.Text,
					Vector:     vectors[i],
				}
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// List returns the project's conflicts, most alarming first. status filters
// when non-empty.
func (s *Service) List(ctx context.Context, projectID uint64, status Status) ([]Conflict, error) {
	query := s.db.WithContext(ctx).Where("project_id = ?", projectID)
	if status != "" {
		if !status.valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		query = query.Where("status = ?", status)
	}
	var out []Conflict
	err := query.Order("similarity DESC, id ASC").Find(&out).Error
	return out, err
}

// UpdateStatus moves one conflict through the review workflow.
func (s *Service) UpdateStatus(ctx context.Context, conflictID uint64, status Status) error {
	if !status.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	result := s.db.WithContext(ctx).
		Model(&Conflict{}).
		Where("id = ?", conflictID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// PurgeProject removes every conflict the project owns.
func (s *Service) PurgeProject(ctx context.Context, projectID uint64) error {
	return s.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&Conflict{}).Error
}
