package bids

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"bidforge_back/llm"
	"bidforge_back/logging"
	"bidforge_back/rag"
)

const defaultAnalysisMaxTokens = 2000

// Analyzer produces structured RFP assessments.
type Analyzer struct {
	db        *gorm.DB
	completer Completer
	retriever ContextProvider
	log       *logging.Logger
}

func NewAnalyzer(db *gorm.DB, completer Completer, retriever ContextProvider, log *logging.Logger) (*Analyzer, error) {
	if completer == nil {
		return nil, errors.New("bids: completer is required")
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Analyzer{
		db:        db,
		completer: completer,
		retriever: retriever,
		log:       log.With("component", "rfp_analyzer"),
	}, nil
}

// analysisPayload is the wire shape the model must return.
type analysisPayload struct {
	QualityScore    *int             `json:"quality_score"`
	ClarityScore    *int             `json:"clarity_score"`
	DoabilityScore  *int             `json:"doability_score"`
	VendorRiskScore *int             `json:"vendor_risk_score"`
	OverallRisk     string           `json:"overall_risk"`
	KeyFindings     []KeyFinding     `json:"key_findings"`
	RedFlags        []RedFlag        `json:"red_flags"`
	Opportunities   []Opportunity    `json:"opportunities"`
	MissingDocs     []string         `json:"missing_documents"`
	Recommendations []Recommendation `json:"recommendations"`
}

// AnalyzeRFP runs one model over the RFP in JSON mode, validates the
// response strictly and persists the result. A malformed response fails
// with ErrMalformedOutput and nothing is stored.
func (a *Analyzer) AnalyzeRFP(ctx context.Context, projectID uint64, model, rfpText string) (*AnalysisResult, error) {
	if strings.TrimSpace(rfpText) == "" {
		return nil, errors.New("bids: rfp text is required")
	}

	var bidContext *rag.BidContext
	if a.retriever != nil {
		var err error
		bidContext, err = a.retriever.GetContext(ctx, rfpText, rag.Scope{ProjectID: projectID}, 0, 0)
		if err != nil {
			a.log.Warn("context retrieval failed", "project_id", projectID, "error", err)
			bidContext = nil
		}
	}

	raw, err := a.completer.Complete(ctx, llm.ChatRequest{
		Model:     model,
		System:    analysisSystemPrompt,
		User:      truncatePrompt(buildAnalysisPrompt(rfpText, bidContext), maxPromptRunes),
		MaxTokens: defaultAnalysisMaxTokens,
		ForceJSON: true,
	})
	if err != nil {
		return nil, err
	}

	result, err := parseAnalysis(raw)
	if err != nil {
		a.log.Warn("analysis output rejected", "model", model, "project_id", projectID, "error", err)
		return nil, err
	}
	result.ProjectID = projectID
	result.Model = model

	if a.db != nil {
		if err := a.db.WithContext(ctx).Create(result).Error; err != nil {
			return nil, fmt.Errorf("bids: store analysis: %w", err)
		}
	}
	return result, nil
}

// parseAnalysis decodes and validates the model's JSON. Every score must be
// present and within 0 to 100, and the risk verdict must be one of the four
// allowed values.
func parseAnalysis(raw string) (*AnalysisResult, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}

	var parsed analysisPayload
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	scores := map[string]*int{
		"quality_score":     parsed.QualityScore,
		"clarity_score":     parsed.ClarityScore,
		"doability_score":   parsed.DoabilityScore,
		"vendor_risk_score": parsed.VendorRiskScore,
	}
	for name, score := range scores {
		if score == nil {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedOutput, name)
		}
		if *score < 0 || *score > 100 {
			return nil, fmt.Errorf("%w: %s %d out of range", ErrMalformedOutput, name, *score)
		}
	}

	risk := Risk(strings.TrimSpace(parsed.OverallRisk))
	if !risk.valid() {
		return nil, fmt.Errorf("%w: overall_risk %q", ErrMalformedOutput, parsed.OverallRisk)
	}

	var err error
	result := &AnalysisResult{
		QualityScore:    *parsed.QualityScore,
		ClarityScore:    *parsed.ClarityScore,
		DoabilityScore:  *parsed.DoabilityScore,
		VendorRiskScore: *parsed.VendorRiskScore,
		OverallRisk:     risk,
	}
	if result.KeyFindings, err = listJSON(parsed.KeyFindings); err != nil {
		return nil, err
	}
	if result.RedFlags, err = listJSON(parsed.RedFlags); err != nil {
		return nil, err
	}
	if result.Opportunities, err = listJSON(parsed.Opportunities); err != nil {
		return nil, err
	}
	if result.MissingDocs, err = listJSON(parsed.MissingDocs); err != nil {
		return nil, err
	}
	if result.Recommendations, err = listJSON(parsed.Recommendations); err != nil {
		return nil, err
	}
	return result, nil
}

// extractJSON returns the outermost JSON object in the text, tolerating
// markdown code fences and surrounding prose.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// listJSON encodes a decoded list for its JSON column, normalizing absent
// lists to empty arrays.
func listJSON[T any](items []T) (datatypes.JSON, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return datatypes.JSON(data), nil
}

// LatestAnalysis returns the newest stored assessment for the project, or
// gorm.ErrRecordNotFound when none exists.
func (a *Analyzer) LatestAnalysis(ctx context.Context, projectID uint64) (*AnalysisResult, error) {
	var result AnalysisResult
	err := a.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}
