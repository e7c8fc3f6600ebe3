package conflicts

import (
	"errors"
	"time"
)

// Kind distinguishes how a conflict was found.
type Kind string

const (
	// KindSemantic marks near-duplicate passages whose embedding similarity
	// crossed a threshold.
	KindSemantic Kind = "semantic"
	// KindNumeric marks figures of the same category that disagree across
	// documents.
	KindNumeric Kind = "numeric"
)

// Severity grades how alarming a conflict is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Status tracks a conflict through review.
type Status string

const (
	StatusUnresolved Status = "unresolved"
	StatusReviewed   Status = "reviewed"
	StatusResolved   Status = "resolved"
)

func (s Status) valid() bool {
	switch s {
	case StatusUnresolved, StatusReviewed, StatusResolved:
		return true
	}
	return false
}

// ErrInvalidStatus reports a status outside the review workflow.
var ErrInvalidStatus = errors.New("conflicts: invalid status")

// Conflict is one detected contradiction between two documents of a
// project.
type Conflict struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	ProjectID   uint64    `gorm:"index;not null" json:"project_id"`
	Kind        Kind      `gorm:"size:16;not null" json:"kind"`
	Severity    Severity  `gorm:"size:16;not null" json:"severity"`
	Status      Status    `gorm:"size:16;not null;default:unresolved" json:"status"`
	Description string    `gorm:"type:text" json:"description"`
	DocAID      uint64    `gorm:"not null" json:"doc_a_id"`
	DocBID      uint64    `gorm:"not null" json:"doc_b_id"`
	ExcerptA    string    `gorm:"type:text" json:"excerpt_a"`
	ExcerptB    string    `gorm:"type:text" json:"excerpt_b"`
	Similarity  float64   `json:"similarity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Conflict) TableName() string { return "conflicts" }
