package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPoints(t *testing.T, store *memoryStore, collection Collection, points ...Point) {
	t.Helper()
	require.NoError(t, store.EnsureCollection(context.Background(), collection, 3))
	require.NoError(t, store.Insert(context.Background(), collection, points))
}

func TestGetContextScoping(t *testing.T) {
	store := newMemoryStore()
	query := []float32{1, 0, 0}

	// Historical bids from several projects; all should be candidates.
	seedPoints(t, store, CollectionBids,
		Point{ID: "b1", ProjectID: 1, DocumentID: 10, Seq: 0, Text: "bid from project 1", Vector: []float32{1, 0, 0}},
		Point{ID: "b2", ProjectID: 2, DocumentID: 20, Seq: 0, Text: "bid from project 2", Vector: []float32{0.9, 0.1, 0}},
	)
	// RFQ chunks: only project 1's should come back.
	seedPoints(t, store, CollectionRFQ,
		Point{ID: "r1", ProjectID: 1, DocumentID: 11, Seq: 0, Text: "rfq from project 1", Vector: []float32{1, 0, 0}},
		Point{ID: "r2", ProjectID: 2, DocumentID: 21, Seq: 0, Text: "rfq from project 2", Vector: []float32{1, 0, 0}},
	)

	embedder := newStubEmbedder()
	embedder.vectors["tower construction"] = query

	retriever, err := NewRetriever(embedder, store, nil, nil, RetrieverConfig{})
	require.NoError(t, err)

	bidContext, err := retriever.GetContext(context.Background(), "tower construction", Scope{ProjectID: 1}, 0, 0)
	require.NoError(t, err)

	require.Len(t, bidContext.HistoricalBids, 2, "bid search is global")
	assert.Equal(t, "bid from project 1", bidContext.HistoricalBids[0].Text)

	require.Len(t, bidContext.SimilarRFQs, 1, "rfq search is project-scoped")
	assert.Equal(t, "rfq from project 1", bidContext.SimilarRFQs[0].Text)
}

func TestGetContextTopKLimits(t *testing.T) {
	store := newMemoryStore()
	for i := 0; i < 8; i++ {
		seedPoints(t, store, CollectionBids, Point{
			ID: string(rune('a' + i)), ProjectID: 1, DocumentID: uint64(i + 1),
			Text: "bid", Vector: []float32{1, 0, 0},
		})
	}

	retriever, err := NewRetriever(newStubEmbedder(), store, nil, nil, RetrieverConfig{})
	require.NoError(t, err)

	bidContext, err := retriever.GetContext(context.Background(), "query", Scope{ProjectID: 1}, 3, 0)
	require.NoError(t, err)
	assert.Len(t, bidContext.HistoricalBids, 3)
}

func TestGetContextEmptyQuery(t *testing.T) {
	embedder := newStubEmbedder()
	retriever, err := NewRetriever(embedder, newMemoryStore(), nil, nil, RetrieverConfig{})
	require.NoError(t, err)

	bidContext, err := retriever.GetContext(context.Background(), "   \n\t ", Scope{ProjectID: 1}, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, bidContext.TotalChunks())
	assert.Zero(t, embedder.calls, "an empty query never reaches the embedder")
}

func TestGetContextEmbedsQueryPrefixOnly(t *testing.T) {
	embedder := newStubEmbedder()
	retriever, err := NewRetriever(embedder, newMemoryStore(), nil, nil, RetrieverConfig{QueryPrefixLen: 10})
	require.NoError(t, err)

	_, err = retriever.GetContext(context.Background(), strings.Repeat("long query ", 20), Scope{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, embedder.last, 1)
	assert.Len(t, []rune(embedder.last[0]), 10)
}

func TestGetContextEmbedderFailure(t *testing.T) {
	embedder := newStubEmbedder()
	embedder.err = ErrEmbedderUnavailable
	retriever, err := NewRetriever(embedder, newMemoryStore(), nil, nil, RetrieverConfig{})
	require.NoError(t, err)

	_, err = retriever.GetContext(context.Background(), "query", Scope{}, 0, 0)
	require.ErrorIs(t, err, ErrEmbedderUnavailable)
}

func TestGetContextEmptyCollections(t *testing.T) {
	retriever, err := NewRetriever(newStubEmbedder(), newMemoryStore(), nil, nil, RetrieverConfig{})
	require.NoError(t, err)

	bidContext, err := retriever.GetContext(context.Background(), "anything", Scope{ProjectID: 42}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, bidContext.HistoricalBids)
	assert.Empty(t, bidContext.SimilarRFQs)
	assert.Empty(t, bidContext.Assembled(""))
}

func TestBidContextAssembled(t *testing.T) {
	bidContext := &BidContext{
		HistoricalBids: []Match{{Text: "first bid"}, {Text: "second bid"}},
		SimilarRFQs:    []Match{{Text: "rfq chunk"}},
	}

	assert.Equal(t, 3, bidContext.TotalChunks())
	assembled := bidContext.Assembled("")
	assert.Equal(t, "first bid"+DefaultSeparator+"second bid"+DefaultSeparator+"rfq chunk", assembled)

	custom := bidContext.Assembled(" | ")
	assert.Equal(t, "first bid | second bid | rfq chunk", custom)
}
