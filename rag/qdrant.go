package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"
)

// QdrantConfig holds the connection settings for a Qdrant instance.
type QdrantConfig struct {
	BaseURL   string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// QdrantConfigFromEnv reads QDRANT_URL / QDRANT_API_KEY.
func QdrantConfigFromEnv() QdrantConfig {
	cfg := QdrantConfig{
		BaseURL: strings.TrimSpace(os.Getenv("QDRANT_URL")),
		APIKey:  strings.TrimSpace(os.Getenv("QDRANT_API_KEY")),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:6333"
	}
	return cfg
}

// QdrantStore implements VectorStore against the Qdrant HTTP API. Points
// carry project/document/seq/text in the payload so scoped searches filter
// inside Qdrant rather than in the caller.
type QdrantStore struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	dims       map[Collection]int
}

// NewQdrantStore validates the base URL and builds the client.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("rag: invalid Qdrant URL %q", baseURL)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("rag: parse Qdrant URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	store := &QdrantStore{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		dims:       make(map[Collection]int),
	}
	// Seed the dimension checks so Insert/Search reject mismatched vectors
	// even when the collections pre-exist and EnsureCollection never ran.
	if cfg.Dimension > 0 {
		for _, c := range Collections() {
			store.dims[c] = cfg.Dimension
		}
	}
	return store, nil
}

// EnsureCollection creates (or re-declares) the collection with cosine
// distance and records the expected dimension for Insert checks.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection Collection, dim int) error {
	if !collection.valid() {
		return fmt.Errorf("rag: unknown collection %q", collection)
	}
	if dim <= 0 {
		return errors.New("rag: vector dimension must be positive")
	}

	payload := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", url.PathEscape(string(collection))), payload, nil); err != nil {
		return err
	}
	s.dims[collection] = dim
	return nil
}

// Insert upserts the points. Vectors whose length disagrees with the
// collection dimension are rejected before anything is sent.
func (s *QdrantStore) Insert(ctx context.Context, collection Collection, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	dim := s.dims[collection]
	body := make([]map[string]interface{}, 0, len(points))
	for _, p := range points {
		if dim > 0 && len(p.Vector) != dim {
			return fmt.Errorf("%w: point %s has %d, collection %s expects %d", ErrDimensionMismatch, p.ID, len(p.Vector), collection, dim)
		}
		body = append(body, map[string]interface{}{
			"id":     p.ID,
			"vector": p.Vector,
			"payload": map[string]interface{}{
				"project_id":  p.ProjectID,
				"document_id": p.DocumentID,
				"seq":         p.Seq,
				"text":        p.Text,
			},
		})
	}
	payload := map[string]interface{}{"points": body}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points", url.PathEscape(string(collection))), payload, nil)
}

// Search runs a filtered nearest-neighbour query. Results come back sorted
// by descending similarity; equal scores fall back to insertion (seq) order.
func (s *QdrantStore) Search(ctx context.Context, collection Collection, query []float32, scope Scope, topK int) ([]Match, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if dim := s.dims[collection]; dim > 0 && len(query) != dim {
		return nil, fmt.Errorf("%w: query has %d, collection %s expects %d", ErrDimensionMismatch, len(query), collection, dim)
	}
	if topK <= 0 {
		topK = 5
	}

	payload := map[string]interface{}{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
	}
	if scope.ProjectID != 0 {
		payload["filter"] = map[string]interface{}{
			"must": []map[string]interface{}{
				{"key": "project_id", "match": map[string]interface{}{"value": scope.ProjectID}},
			},
		}
	}

	var decoded struct {
		Result []struct {
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", url.PathEscape(string(collection))), payload, &decoded)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(decoded.Result))
	for _, item := range decoded.Result {
		match := Match{Score: item.Score}
		if item.Payload != nil {
			if v, ok := item.Payload["document_id"].(float64); ok {
				match.DocumentID = uint64(v)
			}
			if v, ok := item.Payload["seq"].(float64); ok {
				match.Seq = int(v)
			}
			if v, ok := item.Payload["text"].(string); ok {
				match.Text = v
			}
		}
		matches = append(matches, match)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].DocumentID != matches[j].DocumentID {
			return matches[i].DocumentID < matches[j].DocumentID
		}
		return matches[i].Seq < matches[j].Seq
	})
	return matches, nil
}

// DeleteByDocument removes every point whose payload references the document.
func (s *QdrantStore) DeleteByDocument(ctx context.Context, collection Collection, documentID uint64) error {
	return s.deleteByFilter(ctx, collection, "document_id", documentID)
}

// DeleteByProject removes every point belonging to the project.
func (s *QdrantStore) DeleteByProject(ctx context.Context, collection Collection, projectID uint64) error {
	return s.deleteByFilter(ctx, collection, "project_id", projectID)
}

func (s *QdrantStore) deleteByFilter(ctx context.Context, collection Collection, key string, value uint64) error {
	payload := map[string]interface{}{
		"filter": map[string]interface{}{
			"must": []map[string]interface{}{
				{"key": key, "match": map[string]interface{}{"value": value}},
			},
		},
	}
	return s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete", url.PathEscape(string(collection))), payload, nil)
}

func (s *QdrantStore) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	if s == nil {
		return errors.New("rag: qdrant store is not configured")
	}
	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return fmt.Errorf("rag: encode qdrant payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("rag: create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rag: qdrant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("rag: qdrant status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("rag: decode qdrant response: %w", err)
		}
	}
	return nil
}
