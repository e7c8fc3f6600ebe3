package bids

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"

	"bidforge_back/llm"
	"bidforge_back/logging"
	"bidforge_back/rag"
)

const (
	defaultBidMaxTokens   = 4000
	defaultBidTemperature = 0.7
	maxPromptRunes        = 60000
)

// Completer routes a chat request to a vendor client. *llm.Registry
// implements it.
type Completer interface {
	Complete(ctx context.Context, req llm.ChatRequest) (string, error)
}

// ContextProvider fetches retrieval context for a query. *rag.Retriever
// implements it.
type ContextProvider interface {
	GetContext(ctx context.Context, query string, scope rag.Scope, topKHistorical, topKCurrent int) (*rag.BidContext, error)
}

// GenerateRequest asks one or more models for bid drafts against the same
// RFP and context.
type GenerateRequest struct {
	ProjectID uint64
	RFPText   string
	Models    []string
	// Instructions appends user guidance to the prompt, optional.
	Instructions string
	Temperature  float64
	MaxTokens    int
	// Persist stores successful drafts as versioned GeneratedBid rows.
	Persist bool
}

// ModelResult is one model's slot in a generation run. Exactly one of
// Content and Err is meaningful; a failed model never hides the others.
type ModelResult struct {
	Model   string        `json:"model"`
	Content string        `json:"content,omitempty"`
	Bid     *GeneratedBid `json:"bid,omitempty"`
	Err     error         `json:"-"`
}

// Generator produces bid drafts from an RFP plus retrieved context.
type Generator struct {
	db        *gorm.DB
	completer Completer
	retriever ContextProvider
	log       *logging.Logger

	mu sync.Mutex // serializes version assignment per process
}

func NewGenerator(db *gorm.DB, completer Completer, retriever ContextProvider, log *logging.Logger) (*Generator, error) {
	if completer == nil {
		return nil, errors.New("bids: completer is required")
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Generator{
		db:        db,
		completer: completer,
		retriever: retriever,
		log:       log.With("component", "bid_generator"),
	}, nil
}

// AutoMigrate creates the bid and analysis tables.
func (g *Generator) AutoMigrate() error {
	return g.db.AutoMigrate(&GeneratedBid{}, &AnalysisResult{})
}

// GenerateBid fans the same prompt out to every requested model and returns
// one result per model in request order. Each model succeeds or fails on
// its own. At least one model is required.
func (g *Generator) GenerateBid(ctx context.Context, req GenerateRequest) ([]ModelResult, error) {
	if strings.TrimSpace(req.RFPText) == "" {
		return nil, errors.New("bids: rfp text is required")
	}
	if len(req.Models) == 0 {
		return nil, errors.New("bids: at least one model is required")
	}

	bidContext := g.fetchContext(ctx, req)
	prompt := truncatePrompt(buildBidPrompt(req.RFPText, bidContext, req.Instructions), maxPromptRunes)

	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultBidTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultBidMaxTokens
	}

	results := make([]ModelResult, len(req.Models))
	var wg sync.WaitGroup
	for i, model := range req.Models {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = g.generateOne(ctx, req, model, prompt, temperature, maxTokens)
		}()
	}
	wg.Wait()

	return results, nil
}

func (g *Generator) generateOne(ctx context.Context, req GenerateRequest, model, prompt string, temperature float64, maxTokens int) ModelResult {
	result := ModelResult{Model: model}

	content, err := g.completer.Complete(ctx, llm.ChatRequest{
		Model:       model,
		System:      bidSystemPrompt,
		User:        prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		g.log.Warn("bid generation failed", "model", model, "project_id", req.ProjectID, "error", err)
		result.Err = err
		return result
	}
	result.Content = content

	if req.Persist && g.db != nil {
		bid, err := g.persistBid(ctx, req.ProjectID, model, content)
		if err != nil {
			g.log.Error("bid persistence failed", "model", model, "project_id", req.ProjectID, "error", err)
			result.Err = err
			return result
		}
		result.Bid = bid
	}
	return result
}

// persistBid stores the draft with the next version for this project and
// model. The lock plus max-query keeps versions gapless within a process.
func (g *Generator) persistBid(ctx context.Context, projectID uint64, model, content string) (*GeneratedBid, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var maxVersion int
	err := g.db.WithContext(ctx).
		Model(&GeneratedBid{}).
		Where("project_id = ? AND model = ?", projectID, model).
		Select("COALESCE(MAX(version), 0)").
		Scan(&maxVersion).Error
	if err != nil {
		return nil, fmt.Errorf("bids: resolve version: %w", err)
	}

	bid := GeneratedBid{
		ProjectID: projectID,
		Model:     model,
		Version:   maxVersion + 1,
		Content:   content,
	}
	if err := g.db.WithContext(ctx).Create(&bid).Error; err != nil {
		return nil, fmt.Errorf("bids: store bid: %w", err)
	}
	return &bid, nil
}

func (g *Generator) fetchContext(ctx context.Context, req GenerateRequest) *rag.BidContext {
	if g.retriever == nil {
		return nil
	}
	bidContext, err := g.retriever.GetContext(ctx, req.RFPText, rag.Scope{ProjectID: req.ProjectID}, 0, 0)
	if err != nil {
		// Generation degrades to context-free rather than failing outright.
		g.log.Warn("context retrieval failed", "project_id", req.ProjectID, "error", err)
		return nil
	}
	return bidContext
}

// ListBids returns a project's drafts, newest first.
func (g *Generator) ListBids(ctx context.Context, projectID uint64) ([]GeneratedBid, error) {
	var out []GeneratedBid
	err := g.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// LatestBid returns the newest draft a model produced for the project.
func (g *Generator) LatestBid(ctx context.Context, projectID uint64, model string) (*GeneratedBid, error) {
	var bid GeneratedBid
	err := g.db.WithContext(ctx).
		Where("project_id = ? AND model = ?", projectID, model).
		Order("created_at DESC, id DESC").
		First(&bid).Error
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// PurgeProject removes every draft and analysis the project owns.
func (g *Generator) PurgeProject(ctx context.Context, projectID uint64) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&GeneratedBid{}).Error; err != nil {
			return err
		}
		return tx.Where("project_id = ?", projectID).Delete(&AnalysisResult{}).Error
	})
}
