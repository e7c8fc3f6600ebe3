package rag

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// ErrInvalidChunkConfig reports an unusable chunk size/overlap pair. This is
// a programmer error and is never retried.
var ErrInvalidChunkConfig = errors.New("rag: chunk size must be positive and greater than overlap")

// Chunker splits document text into fixed-size overlapping windows measured
// in runes. A Chunker is immutable once constructed and Chunk is a pure
// function of its input.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the window configuration. Requires size > overlap >= 0.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w (size=%d overlap=%d)", ErrInvalidChunkConfig, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// DefaultChunker returns a chunker with the 1000/200 defaults.
func DefaultChunker() *Chunker {
	c, _ := NewChunker(defaultChunkSize, defaultChunkOverlap)
	return c
}

// ChunkerFromEnv builds a chunker from RAG_CHUNK_SIZE / RAG_CHUNK_OVERLAP,
// falling back to the defaults for unset variables.
func ChunkerFromEnv() (*Chunker, error) {
	size := defaultChunkSize
	if raw := strings.TrimSpace(os.Getenv("RAG_CHUNK_SIZE")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("rag: parse RAG_CHUNK_SIZE: %w", err)
		}
		size = parsed
	}
	overlap := defaultChunkOverlap
	if raw := strings.TrimSpace(os.Getenv("RAG_CHUNK_OVERLAP")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("rag: parse RAG_CHUNK_OVERLAP: %w", err)
		}
		overlap = parsed
	}
	return NewChunker(size, overlap)
}

// Size reports the configured window length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap reports how many runes consecutive windows share.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk walks the text producing windows of the configured size, advancing
// the start by size-overlap each step. The window that reaches the end of
// the text is the final chunk and may be shorter than the window size.
// Empty or whitespace-only input yields an empty slice.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	total := len(runes)

	step := c.size - c.overlap
	chunks := make([]string, 0, (total/step)+1)
	for start := 0; start < total; start += step {
		end := start + c.size
		if end >= total {
			chunks = append(chunks, string(runes[start:total]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
