package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"bidforge_back/logging"
)

// DefaultSeparator delimits chunk texts when retrieved context is joined
// into a single prompt block.
const DefaultSeparator = "\n\n---\n\n"

const (
	defaultQueryPrefixLen  = 500
	defaultTopKHistorical  = 5
	defaultTopKCurrent     = 10
	queryEmbeddingCacheTTL = 10 * time.Minute
	cacheOpTimeout         = 300 * time.Millisecond
)

// RetrieverConfig tunes context retrieval. QueryPrefixLen bounds how much of
// the query is embedded; leading RFQ content is assumed most representative
// of intent, so the prefix trades recall for embedding cost.
type RetrieverConfig struct {
	QueryPrefixLen int
	TopKHistorical int
	TopKCurrent    int
	Separator      string
}

func (c RetrieverConfig) withDefaults() RetrieverConfig {
	if c.QueryPrefixLen <= 0 {
		c.QueryPrefixLen = defaultQueryPrefixLen
	}
	if c.TopKHistorical <= 0 {
		c.TopKHistorical = defaultTopKHistorical
	}
	if c.TopKCurrent <= 0 {
		c.TopKCurrent = defaultTopKCurrent
	}
	if c.Separator == "" {
		c.Separator = DefaultSeparator
	}
	return c
}

// BidContext is the assembled retrieval result for one query: ranked chunk
// texts from the historical winning-bid collection and from the current
// project's own RFQ chunks.
type BidContext struct {
	HistoricalBids []Match `json:"historical_bids"`
	SimilarRFQs    []Match `json:"similar_rfqs"`
}

// TotalChunks reports how many chunks were retrieved across both lists.
func (c *BidContext) TotalChunks() int {
	return len(c.HistoricalBids) + len(c.SimilarRFQs)
}

// Assembled joins the retrieved chunk texts with the separator, historical
// bids first, each list keeping its similarity ranking. An empty sep means
// DefaultSeparator.
func (c *BidContext) Assembled(sep string) string {
	parts := make([]string, 0, c.TotalChunks())
	for _, m := range c.HistoricalBids {
		parts = append(parts, m.Text)
	}
	for _, m := range c.SimilarRFQs {
		parts = append(parts, m.Text)
	}
	if sep == "" {
		sep = DefaultSeparator
	}
	return strings.Join(parts, sep)
}

// JoinMatches joins one match list's chunk texts in ranking order. An
// empty sep means DefaultSeparator.
func JoinMatches(matches []Match, sep string) string {
	if sep == "" {
		sep = DefaultSeparator
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, sep)
}

// Retriever embeds a query and fetches top-K similar chunks from the bid
// and RFQ collections.
type Retriever struct {
	embedder Embedder
	store    VectorStore
	cache    *embeddingCache
	log      *logging.Logger
	cfg      RetrieverConfig
}

// NewRetriever wires the retriever. redisClient may be nil, in which case
// query embeddings are not cached.
func NewRetriever(embedder Embedder, store VectorStore, redisClient *redis.Client, log *logging.Logger, cfg RetrieverConfig) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderUnavailable
	}
	if store == nil {
		return nil, errors.New("rag: vector store is required")
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		cache:    newEmbeddingCache(redisClient),
		log:      log.With("component", "retriever"),
		cfg:      cfg.withDefaults(),
	}, nil
}

// GetContext embeds a bounded prefix of the query and issues the two scoped
// similarity searches. An empty collection contributes an empty list; only
// transport failures are errors.
func (r *Retriever) GetContext(ctx context.Context, query string, scope Scope, topKHistorical, topKCurrent int) (*BidContext, error) {
	if topKHistorical <= 0 {
		topKHistorical = r.cfg.TopKHistorical
	}
	if topKCurrent <= 0 {
		topKCurrent = r.cfg.TopKCurrent
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return &BidContext{}, nil
	}

	vector, err := r.embedQuery(ctx, truncateRunes(trimmed, r.cfg.QueryPrefixLen))
	if err != nil {
		return nil, err
	}

	// Historical winning bids form a single global collection; only the RFQ
	// search is scoped to the project.
	historical, err := r.store.Search(ctx, CollectionBids, vector, Scope{}, topKHistorical)
	if err != nil {
		return nil, fmt.Errorf("rag: search historical bids: %w", err)
	}
	current, err := r.store.Search(ctx, CollectionRFQ, vector, scope, topKCurrent)
	if err != nil {
		return nil, fmt.Errorf("rag: search project chunks: %w", err)
	}

	r.log.Debug("context retrieved",
		"historical", len(historical),
		"current", len(current),
		"project_id", scope.ProjectID,
	)
	return &BidContext{HistoricalBids: historical, SimilarRFQs: current}, nil
}

// AssembledSeparator exposes the configured document-boundary separator for
// prompt construction.
func (r *Retriever) AssembledSeparator() string {
	return r.cfg.Separator
}

func (r *Retriever) embedQuery(ctx context.Context, prefix string) ([]float32, error) {
	if cached, ok := r.cache.get(ctx, prefix); ok {
		return cached, nil
	}
	vectors, err := r.embedder.Embed(ctx, []string{prefix})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, errors.New("rag: embedder returned no vector for query")
	}
	r.cache.set(ctx, prefix, vectors[0])
	return vectors[0], nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// embeddingCache keeps recent query embeddings in Redis. Misses and cache
// failures are silent; the cache only exists to avoid re-embedding the same
// query prefix.
type embeddingCache struct {
	client *redis.Client
}

func newEmbeddingCache(client *redis.Client) *embeddingCache {
	if client == nil {
		return nil
	}
	return &embeddingCache{client: client}
}

func (c *embeddingCache) key(prefix string) string {
	sum := sha256.Sum256([]byte(prefix))
	return "rag:qembed:" + hex.EncodeToString(sum[:])
}

func (c *embeddingCache) get(ctx context.Context, prefix string) ([]float32, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	opCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	raw, err := c.client.Get(opCtx, c.key(prefix)).Bytes()
	if err != nil {
		return nil, false
	}
	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		return nil, false
	}
	return vector, true
}

func (c *embeddingCache) set(ctx context.Context, prefix string, vector []float32) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(vector)
	if err != nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	_ = c.client.Set(opCtx, c.key(prefix), raw, queryEmbeddingCacheTTL).Err()
}
