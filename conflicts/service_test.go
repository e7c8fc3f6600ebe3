package conflicts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bidforge_back/rag"
)

// mappedEmbedder returns a fixed vector per known text and a neutral one
// otherwise.
type mappedEmbedder struct {
	vectors map[string][]float32
}

func (m *mappedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := m.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func (m *mappedEmbedder) Dimension() int { return 3 }

func openConflictDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := rag.OpenDatabase("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&rag.Document{}, &rag.Chunk{}, &Conflict{}))
	return db
}

func seedDocument(t *testing.T, db *gorm.DB, projectID uint64, content string, chunks []string) rag.Document {
	t.Helper()
	doc := rag.Document{
		ProjectID:  projectID,
		FileName:   "doc.txt",
		FileType:   "txt",
		Collection: string(rag.CollectionRFQ),
		Content:    content,
		Processed:  true,
	}
	require.NoError(t, db.Create(&doc).Error)
	for i, text := range chunks {
		require.NoError(t, db.Create(&rag.Chunk{
			DocumentID: doc.ID,
			ProjectID:  projectID,
			Seq:        i,
			Text:       text,
			VectorID:   "v",
		}).Error)
	}
	return doc
}

func TestRunDetectsAndPersistsConflicts(t *testing.T) {
	db := openConflictDB(t)
	shared := []float32{1, 0, 0}
	embedder := &mappedEmbedder{vectors: map[string][]float32{
		"payment due in 30 days":        shared,
		"payment is due within 30 days": shared,
	}}
	svc, err := NewService(db, embedder, nil, nil)
	require.NoError(t, err)

	seedDocument(t, db, 1, "Total cost: $100,000", []string{"payment due in 30 days"})
	seedDocument(t, db, 1, "Budget: $40,000", []string{"payment is due within 30 days"})

	conflicts, err := svc.Run(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, conflicts, 2)

	kinds := map[Kind]int{}
	for _, c := range conflicts {
		kinds[c.Kind]++
		assert.Equal(t, StatusUnresolved, c.Status)
		assert.NotEmpty(t, c.Description)
	}
	assert.Equal(t, 1, kinds[KindSemantic])
	assert.Equal(t, 1, kinds[KindNumeric])
}

func TestRunWithSingleDocument(t *testing.T) {
	db := openConflictDB(t)
	svc, err := NewService(db, &mappedEmbedder{}, nil, nil)
	require.NoError(t, err)

	seedDocument(t, db, 1, "Total cost: $100,000", []string{"lone chunk"})

	conflicts, err := svc.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestRunReplacesUnresolvedKeepsReviewed(t *testing.T) {
	db := openConflictDB(t)
	shared := []float32{1, 0, 0}
	embedder := &mappedEmbedder{vectors: map[string][]float32{"same text": shared}}
	svc, err := NewService(db, embedder, nil, nil)
	require.NoError(t, err)

	seedDocument(t, db, 1, "alpha", []string{"same text"})
	seedDocument(t, db, 1, "beta", []string{"same text"})

	first, err := svc.Run(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NoError(t, svc.UpdateStatus(context.Background(), first[0].ID, StatusReviewed))

	second, err := svc.Run(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, second, 1)

	all, err := svc.List(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Len(t, all, 2, "reviewed conflict survives the rerun")
}

func TestUpdateStatusValidation(t *testing.T) {
	db := openConflictDB(t)
	svc, err := NewService(db, &mappedEmbedder{}, nil, nil)
	require.NoError(t, err)

	err = svc.UpdateStatus(context.Background(), 1, Status("shredded"))
	require.ErrorIs(t, err, ErrInvalidStatus)

	err = svc.UpdateStatus(context.Background(), 999, StatusResolved)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListFiltersByStatus(t *testing.T) {
	db := openConflictDB(t)
	svc, err := NewService(db, &mappedEmbedder{}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, db.Create(&Conflict{
		ProjectID: 1, Kind: KindSemantic, Severity: SeverityHigh,
		Status: StatusUnresolved, DocAID: 1, DocBID: 2, Similarity: 0.99,
	}).Error)
	require.NoError(t, db.Create(&Conflict{
		ProjectID: 1, Kind: KindNumeric, Severity: SeverityMedium,
		Status: StatusResolved, DocAID: 1, DocBID: 2, Similarity: 0.80,
	}).Error)

	unresolved, err := svc.List(context.Background(), 1, StatusUnresolved)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, KindSemantic, unresolved[0].Kind)

	_, err = svc.List(context.Background(), 1, Status("bogus"))
	require.ErrorIs(t, err, ErrInvalidStatus)
}
