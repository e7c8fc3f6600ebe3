package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrEmbedderUnavailable reports that no embedding provider is configured or
// credentialed.
var ErrEmbedderUnavailable = errors.New("rag: embedding provider is not configured")

// ErrDimensionMismatch reports a vector whose length disagrees with the
// collection dimension. Mismatched vectors are rejected rather than padded;
// a wrong-length (or zeroed) vector would corrupt similarity rankings.
var ErrDimensionMismatch = errors.New("rag: embedding dimension mismatch")

// Embedder converts text into fixed-dimension vectors. Batch calls preserve
// input order in the output.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	// Dimension reports the vector length this embedder produces, or 0 when
	// the provider decides.
	Dimension() int
}

// EmbedderConfig holds the settings for the OpenAI-compatible embeddings
// endpoint. Constructed once at process start and passed explicitly.
type EmbedderConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	MaxBatch  int
	Timeout   time.Duration
}

// EmbedderConfigFromEnv reads EMBEDDING_* variables. The API key is
// required; everything else has defaults.
func EmbedderConfigFromEnv() EmbedderConfig {
	cfg := EmbedderConfig{
		BaseURL: strings.TrimSpace(os.Getenv("EMBEDDING_BASE_URL")),
		APIKey:  strings.TrimSpace(os.Getenv("EMBEDDING_API_KEY")),
		Model:   strings.TrimSpace(os.Getenv("EMBEDDING_MODEL_ID")),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if raw := strings.TrimSpace(os.Getenv("EMBEDDING_VECTOR_DIM")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.Dimension = parsed
		}
	}
	if raw := strings.TrimSpace(os.Getenv("EMBEDDING_MAX_BATCH")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.MaxBatch = parsed
		}
	}
	return cfg
}

// HTTPEmbedder speaks the OpenAI-compatible POST /embeddings contract.
type HTTPEmbedder struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	maxBatch   int
}

// NewHTTPEmbedder validates the config and builds the client. A missing API
// key is ErrEmbedderUnavailable.
func NewHTTPEmbedder(cfg EmbedderConfig) (*HTTPEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrEmbedderUnavailable
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("rag: invalid embedding base URL %q", baseURL)
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 16
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEmbedder{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		maxBatch:   maxBatch,
	}, nil
}

func (e *HTTPEmbedder) Dimension() int { return e.dimension }

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions *int     `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed sends the inputs in batches of at most maxBatch and returns one
// vector per input, in input order.
func (e *HTTPEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if e == nil {
		return nil, ErrEmbedderUnavailable
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += e.maxBatch {
		end := start + e.maxBatch
		if end > len(inputs) {
			end = len(inputs)
		}
		vectors, err := e.embedBatch(ctx, inputs[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, vectors...)
	}
	return results, nil
}

func (e *HTTPEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	payload := embeddingRequest{Model: e.model, Input: batch}
	if e.dimension > 0 {
		dim := e.dimension
		payload.Dimensions = &dim
	}

	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return nil, fmt.Errorf("rag: encode embedding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", body)
	if err != nil {
		return nil, fmt.Errorf("rag: create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rag: embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("rag: embedding API status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("rag: decode embedding response: %w", err)
	}
	if len(decoded.Data) != len(batch) {
		return nil, fmt.Errorf("rag: embedding response count mismatch (expected %d, got %d)", len(batch), len(decoded.Data))
	}

	vectors := make([][]float32, len(decoded.Data))
	for i, item := range decoded.Data {
		vector := make([]float32, len(item.Embedding))
		for j, value := range item.Embedding {
			vector[j] = float32(value)
		}
		if e.dimension > 0 && len(vector) != e.dimension {
			return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vector), e.dimension)
		}
		vectors[i] = vector
	}
	return vectors, nil
}
