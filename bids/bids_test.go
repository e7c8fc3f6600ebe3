package bids

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bidforge_back/llm"
	"bidforge_back/rag"
)

type fakeCompleter struct {
	replies map[string]string
	errs    map[string]error
	reqs    []llm.ChatRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.ChatRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	if err, ok := f.errs[req.Model]; ok {
		return "", err
	}
	if reply, ok := f.replies[req.Model]; ok {
		return reply, nil
	}
	return "", fmt.Errorf("%w: %q", llm.ErrUnsupportedModel, req.Model)
}

type fakeRetriever struct {
	ctx *rag.BidContext
	err error
}

func (f *fakeRetriever) GetContext(context.Context, string, rag.Scope, int, int) (*rag.BidContext, error) {
	return f.ctx, f.err
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := rag.OpenDatabase("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&GeneratedBid{}, &AnalysisResult{}))
	return db
}

func TestGenerateBidIsolatesModelFailures(t *testing.T) {
	boom := errors.New("provider exploded")
	completer := &fakeCompleter{
		replies: map[string]string{"gpt-4o": "draft from gpt"},
		errs:    map[string]error{"claude-sonnet-4-20250514": boom},
	}
	gen, err := NewGenerator(openTestDB(t), completer, nil, nil)
	require.NoError(t, err)

	results, err := gen.GenerateBid(context.Background(), GenerateRequest{
		ProjectID: 7,
		RFPText:   "Build a bridge.",
		Models:    []string{"gpt-4o", "claude-sonnet-4-20250514"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "gpt-4o", results[0].Model)
	assert.Equal(t, "draft from gpt", results[0].Content)
	assert.NoError(t, results[0].Err)

	assert.Equal(t, "claude-sonnet-4-20250514", results[1].Model)
	assert.Empty(t, results[1].Content)
	assert.ErrorIs(t, results[1].Err, boom)
}

func TestGenerateBidVersionsPerProjectAndModel(t *testing.T) {
	db := openTestDB(t)
	completer := &fakeCompleter{replies: map[string]string{"gpt-4o": "draft"}}
	gen, err := NewGenerator(db, completer, nil, nil)
	require.NoError(t, err)

	req := GenerateRequest{ProjectID: 1, RFPText: "rfp", Models: []string{"gpt-4o"}, Persist: true}

	first, err := gen.GenerateBid(context.Background(), req)
	require.NoError(t, err)
	second, err := gen.GenerateBid(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, first[0].Bid)
	require.NotNil(t, second[0].Bid)
	assert.Equal(t, 1, first[0].Bid.Version)
	assert.Equal(t, 2, second[0].Bid.Version)

	// A different project restarts the count.
	other, err := gen.GenerateBid(context.Background(), GenerateRequest{
		ProjectID: 2, RFPText: "rfp", Models: []string{"gpt-4o"}, Persist: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, other[0].Bid.Version)

	latest, err := gen.LatestBid(context.Background(), 1, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
}

func TestGenerateBidIncludesRetrievedContext(t *testing.T) {
	completer := &fakeCompleter{replies: map[string]string{"gpt-4o": "draft"}}
	retriever := &fakeRetriever{ctx: &rag.BidContext{
		HistoricalBids: []rag.Match{{Text: "we delivered a similar bridge in 2023"}},
	}}
	gen, err := NewGenerator(openTestDB(t), completer, retriever, nil)
	require.NoError(t, err)

	_, err = gen.GenerateBid(context.Background(), GenerateRequest{
		ProjectID: 1, RFPText: "Build a bridge.", Models: []string{"gpt-4o"},
	})
	require.NoError(t, err)
	require.Len(t, completer.reqs, 1)
	assert.Contains(t, completer.reqs[0].User, "similar bridge in 2023")
	assert.Contains(t, completer.reqs[0].User, "Executive Summary")
}

func TestGenerateBidSurvivesRetrieverFailure(t *testing.T) {
	completer := &fakeCompleter{replies: map[string]string{"gpt-4o": "draft"}}
	retriever := &fakeRetriever{err: errors.New("vector store down")}
	gen, err := NewGenerator(openTestDB(t), completer, retriever, nil)
	require.NoError(t, err)

	results, err := gen.GenerateBid(context.Background(), GenerateRequest{
		ProjectID: 1, RFPText: "Build a bridge.", Models: []string{"gpt-4o"},
	})
	require.NoError(t, err)
	assert.Equal(t, "draft", results[0].Content)
}

const validAnalysisJSON = `{
  "quality_score": 82,
  "clarity_score": 75,
  "doability_score": 68,
  "vendor_risk_score": 40,
  "overall_risk": "Medium",
  "key_findings": [
    {"category": "schedule", "status": "warning", "title": "Tight timeline", "description": "18 months for a 15 km extension is aggressive."}
  ],
  "red_flags": [],
  "opportunities": [
    {"impact": "High", "title": "Repeat client", "description": "The issuer awarded us two prior phases."}
  ],
  "missing_documents": ["site survey"],
  "recommendations": [
    {"priority": "High", "action": "Clarify scope", "description": "Confirm the drainage scope before pricing.", "estimated_time": "1 week", "owner": "Bid manager"}
  ]
}`

func TestAnalyzeRFPStoresValidResult(t *testing.T) {
	db := openTestDB(t)
	completer := &fakeCompleter{replies: map[string]string{"gpt-4o": validAnalysisJSON}}
	analyzer, err := NewAnalyzer(db, completer, nil, nil)
	require.NoError(t, err)

	result, err := analyzer.AnalyzeRFP(context.Background(), 3, "gpt-4o", "Build a bridge.")
	require.NoError(t, err)
	assert.Equal(t, 82, result.QualityScore)
	assert.Equal(t, RiskMedium, result.OverallRisk)
	assert.True(t, completer.reqs[0].ForceJSON)

	stored, err := analyzer.LatestAnalysis(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, result.ID, stored.ID)

	var findings []KeyFinding
	require.NoError(t, json.Unmarshal(stored.KeyFindings, &findings))
	require.Len(t, findings, 1)
	assert.Equal(t, "Tight timeline", findings[0].Title)
	assert.JSONEq(t, `[]`, string(stored.RedFlags))
}

func TestAnalyzeRFPParsesFencedJSON(t *testing.T) {
	fenced := "```json\n" + validAnalysisJSON + "\n```"
	completer := &fakeCompleter{replies: map[string]string{"gpt-4o": fenced}}
	analyzer, err := NewAnalyzer(openTestDB(t), completer, nil, nil)
	require.NoError(t, err)

	result, err := analyzer.AnalyzeRFP(context.Background(), 1, "gpt-4o", "rfp")
	require.NoError(t, err)
	assert.Equal(t, 75, result.ClarityScore)
}

func TestAnalyzeRFPRejectsOutOfRangeScore(t *testing.T) {
	db := openTestDB(t)
	bad := `{"quality_score":150,"clarity_score":50,"doability_score":50,"vendor_risk_score":50,"overall_risk":"Low"}`
	completer := &fakeCompleter{replies: map[string]string{"gpt-4o": bad}}
	analyzer, err := NewAnalyzer(db, completer, nil, nil)
	require.NoError(t, err)

	_, err = analyzer.AnalyzeRFP(context.Background(), 1, "gpt-4o", "rfp")
	require.ErrorIs(t, err, ErrMalformedOutput)

	var count int64
	require.NoError(t, db.Model(&AnalysisResult{}).Count(&count).Error)
	assert.Zero(t, count, "invalid output must never be persisted")
}

func TestAnalyzeRFPRejectsUnknownRisk(t *testing.T) {
	bad := `{"quality_score":50,"clarity_score":50,"doability_score":50,"vendor_risk_score":50,"overall_risk":"Catastrophic"}`
	completer := &fakeCompleter{replies: map[string]string{"gpt-4o": bad}}
	analyzer, err := NewAnalyzer(openTestDB(t), completer, nil, nil)
	require.NoError(t, err)

	_, err = analyzer.AnalyzeRFP(context.Background(), 1, "gpt-4o", "rfp")
	require.ErrorIs(t, err, ErrMalformedOutput)
}

func TestAnalyzeRFPRejectsMissingScore(t *testing.T) {
	bad := `{"clarity_score":50,"doability_score":50,"vendor_risk_score":50,"overall_risk":"Low"}`
	completer := &fakeCompleter{replies: map[string]string{"gpt-4o": bad}}
	analyzer, err := NewAnalyzer(openTestDB(t), completer, nil, nil)
	require.NoError(t, err)

	_, err = analyzer.AnalyzeRFP(context.Background(), 1, "gpt-4o", "rfp")
	require.ErrorIs(t, err, ErrMalformedOutput)
}

func TestAnalyzeRFPRejectsWrongListShape(t *testing.T) {
	// key_findings must be objects, not bare strings.
	bad := `{"quality_score":50,"clarity_score":50,"doability_score":50,"vendor_risk_score":50,"overall_risk":"Low","key_findings":["just a string"]}`
	completer := &fakeCompleter{replies: map[string]string{"gpt-4o": bad}}
	analyzer, err := NewAnalyzer(openTestDB(t), completer, nil, nil)
	require.NoError(t, err)

	_, err = analyzer.AnalyzeRFP(context.Background(), 1, "gpt-4o", "rfp")
	require.ErrorIs(t, err, ErrMalformedOutput)
}

func TestAnalyzeRFPRejectsProse(t *testing.T) {
	completer := &fakeCompleter{replies: map[string]string{"gpt-4o": "I cannot analyze this document."}}
	analyzer, err := NewAnalyzer(openTestDB(t), completer, nil, nil)
	require.NoError(t, err)

	_, err = analyzer.AnalyzeRFP(context.Background(), 1, "gpt-4o", "rfp")
	require.ErrorIs(t, err, ErrMalformedOutput)
}
