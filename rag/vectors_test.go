package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	identical, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, identical, 1e-9)

	orthogonal, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, orthogonal, 1e-9)

	opposite, err := CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, opposite, 1e-9)

	// Scaling a vector never changes the similarity.
	scaled, err := CosineSimilarity([]float32{1, 2, 3}, []float32{10, 20, 30})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scaled, 1e-9)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	similarity, err := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Zero(t, similarity)
}

func TestQdrantStoreSeedsDimensionFromConfig(t *testing.T) {
	// A fresh store pointed at pre-existing collections must still reject
	// mismatched vectors before talking to the backend.
	store, err := NewQdrantStore(QdrantConfig{BaseURL: "http://localhost:6333", Dimension: 3})
	require.NoError(t, err)

	err = store.Insert(context.Background(), CollectionRFQ, []Point{
		{ID: "p1", ProjectID: 1, DocumentID: 1, Seq: 0, Text: "t", Vector: []float32{1, 0}},
	})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.Search(context.Background(), CollectionBids, []float32{1, 0}, Scope{}, 5)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCollectionValidation(t *testing.T) {
	for _, collection := range Collections() {
		assert.True(t, collection.valid(), string(collection))
	}
	assert.False(t, Collection("scratch_space").valid())
}
