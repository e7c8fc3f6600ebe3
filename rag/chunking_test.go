package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkerValidation(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid", 1000, 200, false},
		{"no overlap", 10, 0, false},
		{"zero size", 0, 0, true},
		{"negative size", -5, 0, true},
		{"negative overlap", 10, -1, true},
		{"overlap equals size", 10, 10, true},
		{"overlap exceeds size", 10, 15, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewChunker(tc.size, tc.overlap)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidChunkConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChunkFixedWindows(t *testing.T) {
	chunker, err := NewChunker(4, 1)
	require.NoError(t, err)

	chunks := chunker.Chunk("ABCDEFGHIJ")
	assert.Equal(t, []string{"ABCD", "DEFG", "GHIJ"}, chunks)
}

func TestChunkShortInput(t *testing.T) {
	chunker, err := NewChunker(1000, 200)
	require.NoError(t, err)

	chunks := chunker.Chunk("short document")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short document", chunks[0])
}

func TestChunkEmptyInput(t *testing.T) {
	chunker := DefaultChunker()
	assert.Empty(t, chunker.Chunk(""))
	assert.Empty(t, chunker.Chunk("   \n\t  "))
}

func TestChunkCountFormula(t *testing.T) {
	// count = ceil((len - overlap) / (size - overlap)) for len > size
	cases := []struct {
		length, size, overlap, want int
	}{
		{10, 4, 1, 3},
		{1000, 1000, 200, 1},
		{1001, 1000, 200, 2},
		{2600, 1000, 200, 3},
	}
	for _, tc := range cases {
		chunker, err := NewChunker(tc.size, tc.overlap)
		require.NoError(t, err)
		chunks := chunker.Chunk(strings.Repeat("x", tc.length))
		assert.Len(t, chunks, tc.want, "length=%d size=%d overlap=%d", tc.length, tc.size, tc.overlap)
	}
}

func TestChunkOverlapContent(t *testing.T) {
	chunker, err := NewChunker(4, 2)
	require.NoError(t, err)

	chunks := chunker.Chunk("ABCDEFGH")
	require.Len(t, chunks, 3)
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1][len(chunks[i-1])-2:]
		assert.True(t, strings.HasPrefix(chunks[i], prevTail),
			"chunk %d should start with the previous chunk's overlap", i)
	}
}

func TestChunkMultibyteRunes(t *testing.T) {
	chunker, err := NewChunker(4, 1)
	require.NoError(t, err)

	chunks := chunker.Chunk("日本語のドキュメント")
	require.Len(t, chunks, 3)
	assert.Equal(t, "日本語の", chunks[0])
	assert.Equal(t, "のドキュ", chunks[1])
	assert.Equal(t, "ュメント", chunks[2])
}

func TestChunkDeterministic(t *testing.T) {
	chunker := DefaultChunker()
	text := strings.Repeat("terms and conditions apply. ", 200)

	first := chunker.Chunk(text)
	second := chunker.Chunk(text)
	assert.Equal(t, first, second)
}
