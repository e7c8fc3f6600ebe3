package bids

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// ErrMalformedOutput reports model output that could not be parsed into the
// required shape. Nothing malformed is ever persisted.
var ErrMalformedOutput = errors.New("bids: malformed model output")

// GeneratedBid is one model's bid draft for a project. Version counts up
// per project and model, starting at 1.
type GeneratedBid struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	ProjectID uint64    `gorm:"index;not null" json:"project_id"`
	Model     string    `gorm:"size:128;not null" json:"model"`
	Version   int       `gorm:"not null" json:"version"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (GeneratedBid) TableName() string { return "generated_bids" }

// Risk is the overall risk verdict of an RFP analysis.
type Risk string

const (
	RiskLow      Risk = "Low"
	RiskMedium   Risk = "Medium"
	RiskHigh     Risk = "High"
	RiskCritical Risk = "Critical"
)

func (r Risk) valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// KeyFinding is one observation from an RFP analysis. Status is one of
// positive, warning, negative.
type KeyFinding struct {
	Category    string `json:"category"`
	Status      string `json:"status"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RedFlag is a concern raised by the analysis.
type RedFlag struct {
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Opportunity is an upside the analysis identified.
type Opportunity struct {
	Impact      string `json:"impact"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Recommendation is a suggested next step with an owner and rough effort.
type Recommendation struct {
	Priority      string `json:"priority"`
	Action        string `json:"action"`
	Description   string `json:"description"`
	EstimatedTime string `json:"estimated_time"`
	Owner         string `json:"owner"`
}

// AnalysisResult is a structured RFP assessment. All four scores are on a
// 0 to 100 scale. The list columns hold the JSON-encoded finding, flag,
// opportunity and recommendation items.
type AnalysisResult struct {
	ID              uint64         `gorm:"primaryKey" json:"id"`
	ProjectID       uint64         `gorm:"index;not null" json:"project_id"`
	Model           string         `gorm:"size:128;not null" json:"model"`
	QualityScore    int            `gorm:"not null" json:"quality_score"`
	ClarityScore    int            `gorm:"not null" json:"clarity_score"`
	DoabilityScore  int            `gorm:"not null" json:"doability_score"`
	VendorRiskScore int            `gorm:"not null" json:"vendor_risk_score"`
	OverallRisk     Risk           `gorm:"size:16;not null" json:"overall_risk"`
	KeyFindings     datatypes.JSON `json:"key_findings"`
	RedFlags        datatypes.JSON `json:"red_flags"`
	Opportunities   datatypes.JSON `json:"opportunities"`
	MissingDocs     datatypes.JSON `json:"missing_documents"`
	Recommendations datatypes.JSON `json:"recommendations"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (AnalysisResult) TableName() string { return "analysis_results" }
