package conflicts

import (
	"fmt"
	"sort"

	"bidforge_back/rag"
)

const (
	defaultHighThreshold   = 0.95
	defaultMediumThreshold = 0.85

	defaultNumericHighSpread   = 0.50
	defaultNumericMediumSpread = 0.10

	excerptRunes = 300
)

// DetectorConfig tunes both detection paths. Semantic thresholds are
// cosine similarities; numeric spreads are relative differences.
type DetectorConfig struct {
	HighThreshold   float64
	MediumThreshold float64

	NumericHighSpread   float64
	NumericMediumSpread float64
}

func (c DetectorConfig) withDefaults() DetectorConfig {
	if c.HighThreshold <= 0 {
		c.HighThreshold = defaultHighThreshold
	}
	if c.MediumThreshold <= 0 {
		c.MediumThreshold = defaultMediumThreshold
	}
	if c.NumericHighSpread <= 0 {
		c.NumericHighSpread = defaultNumericHighSpread
	}
	if c.NumericMediumSpread <= 0 {
		c.NumericMediumSpread = defaultNumericMediumSpread
	}
	return c
}

// ChunkInput is one chunk of a document prepared for comparison.
type ChunkInput struct {
	DocumentID uint64
	Seq        int
	Text       string
	Vector     []float32
}

// DocumentInput is one document's side of a comparison.
type DocumentInput struct {
	ID      uint64
	Content string
	Chunks  []ChunkInput
}

// Finding is one detected conflict before persistence.
type Finding struct {
	Kind        Kind
	Severity    Severity
	Description string
	DocAID      uint64
	DocBID      uint64
	ExcerptA    string
	ExcerptB    string
	Similarity  float64
}

// Detector compares document pairs. It holds no storage; the service feeds
// it documents and persists its findings.
type Detector struct {
	cfg DetectorConfig
}

func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Compare runs both detection paths over one document pair. Findings come
// back ordered by descending similarity, ties keeping comparison order.
// Documents without chunks produce no semantic findings and no error.
func (d *Detector) Compare(docA, docB DocumentInput) ([]Finding, error) {
	findings, err := d.compareSemantic(docA, docB)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Similarity > findings[j].Similarity
	})

	findings = append(findings, d.compareNumeric(docA, docB)...)
	return findings, nil
}

// compareSemantic flags chunk pairs whose cosine similarity crosses the
// medium threshold. Near-identical passages in two documents usually mean
// one contradicts or supersedes the other.
func (d *Detector) compareSemantic(docA, docB DocumentInput) ([]Finding, error) {
	var findings []Finding
	for _, a := range docA.Chunks {
		for _, b := range docB.Chunks {
			if a.Vector == nil || b.Vector == nil {
				continue
			}
			similarity, err := rag.CosineSimilarity(a.Vector, b.Vector)
			if err != nil {
				return nil, fmt.Errorf("conflicts: compare chunk %d/%d with %d/%d: %w",
					docA.ID, a.Seq, docB.ID, b.Seq, err)
			}
			severity, flagged := d.semanticSeverity(similarity)
			if !flagged {
				continue
			}
			findings = append(findings, Finding{
				Kind:     KindSemantic,
				Severity: severity,
				Description: fmt.Sprintf(
					"near-duplicate passages in documents %d and %d, similarity %.2f",
					docA.ID, docB.ID, similarity),
				DocAID:     docA.ID,
				DocBID:     docB.ID,
				ExcerptA:   excerpt(a.Text),
				ExcerptB:   excerpt(b.Text),
				Similarity: similarity,
			})
		}
	}
	return findings, nil
}

func (d *Detector) semanticSeverity(similarity float64) (Severity, bool) {
	switch {
	case similarity > d.cfg.HighThreshold:
		return SeverityHigh, true
	case similarity > d.cfg.MediumThreshold:
		return SeverityMedium, true
	}
	return "", false
}

// compareNumeric flags headline figures of the same category that disagree
// across the pair.
func (d *Detector) compareNumeric(docA, docB DocumentInput) []Finding {
	figuresA := representativeFigures(extractFigures(docA.Content))
	figuresB := representativeFigures(extractFigures(docB.Content))

	var findings []Finding
	for _, category := range []figureCategory{categoryMoney, categoryPercent, categoryDuration} {
		a, okA := figuresA[category]
		b, okB := figuresB[category]
		if !okA || !okB {
			continue
		}
		spread := relativeSpread(a.Value, b.Value)
		severity, flagged := d.numericSeverity(spread)
		if !flagged {
			continue
		}
		findings = append(findings, Finding{
			Kind:     KindNumeric,
			Severity: severity,
			Description: fmt.Sprintf(
				"%s figures differ by %.0f%% (%s vs %s)",
				category, spread*100, a.Raw, b.Raw),
			DocAID:     docA.ID,
			DocBID:     docB.ID,
			ExcerptA:   a.Raw,
			ExcerptB:   b.Raw,
			Similarity: 1 - spread,
		})
	}
	return findings
}

func (d *Detector) numericSeverity(spread float64) (Severity, bool) {
	switch {
	case spread > d.cfg.NumericHighSpread:
		return SeverityHigh, true
	case spread > d.cfg.NumericMediumSpread:
		return SeverityMedium, true
	}
	return "", false
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptRunes {
		return text
	}
	return string(runes[:excerptRunes])
}
