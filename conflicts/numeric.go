package conflicts

import (
	"regexp"
	"strconv"
	"strings"
)

// figureCategory groups extracted numbers so only like figures are
// compared: a price never conflicts with a deadline.
type figureCategory string

const (
	categoryMoney    figureCategory = "money"
	categoryPercent  figureCategory = "percent"
	categoryDuration figureCategory = "duration"
)

// figure is one normalized number pulled out of document text. Raw keeps
// the original token for conflict excerpts.
type figure struct {
	Category figureCategory
	Raw      string
	Value    float64
}

var (
	moneyPattern    = regexp.MustCompile(`(?i)\$\s*\d+(?:,\d{3})*(?:\.\d+)?(?:\s*(?:million|billion|thousand|[MBK]))?`)
	percentPattern  = regexp.MustCompile(`\d+(?:\.\d+)?%`)
	durationPattern = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:days?|weeks?|months?|years?)\b`)
)

var moneyMultipliers = map[string]float64{
	"thousand": 1e3, "k": 1e3,
	"million": 1e6, "m": 1e6,
	"billion": 1e9, "b": 1e9,
}

// durations normalize to days so "2 weeks" and "14 days" agree.
var durationUnits = map[string]float64{
	"day": 1, "week": 7, "month": 30, "year": 365,
}

// extractFigures pulls monetary amounts, percentages and durations out of
// free text.
func extractFigures(text string) []figure {
	var figures []figure

	for _, raw := range moneyPattern.FindAllString(text, -1) {
		if value, ok := parseMoney(raw); ok {
			figures = append(figures, figure{Category: categoryMoney, Raw: raw, Value: value})
		}
	}
	for _, raw := range percentPattern.FindAllString(text, -1) {
		value, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err == nil {
			figures = append(figures, figure{Category: categoryPercent, Raw: raw, Value: value})
		}
	}
	for _, raw := range durationPattern.FindAllString(text, -1) {
		if value, ok := parseDuration(raw); ok {
			figures = append(figures, figure{Category: categoryDuration, Raw: raw, Value: value})
		}
	}

	return figures
}

func parseMoney(raw string) (float64, bool) {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	multiplier := 1.0
	lower := strings.ToLower(s)
	for suffix, m := range moneyMultipliers {
		if strings.HasSuffix(lower, suffix) {
			multiplier = m
			s = strings.TrimSpace(s[:len(s)-len(suffix)])
			break
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return value * multiplier, true
}

func parseDuration(raw string) (float64, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for unit, days := range durationUnits {
		idx := strings.Index(lower, unit)
		if idx < 0 {
			continue
		}
		number := strings.TrimSpace(lower[:idx])
		value, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return 0, false
		}
		return value * days, true
	}
	return 0, false
}

// representativeFigures keeps the largest figure per category. The headline
// number of a document (total cost, overall duration) is usually the
// largest of its kind.
func representativeFigures(figures []figure) map[figureCategory]figure {
	out := make(map[figureCategory]figure)
	for _, f := range figures {
		if current, ok := out[f.Category]; !ok || f.Value > current.Value {
			out[f.Category] = f
		}
	}
	return out
}

// relativeSpread measures disagreement between two figures as a fraction
// of the larger one.
func relativeSpread(a, b float64) float64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	larger := a
	if b > larger {
		larger = b
	}
	if larger == 0 {
		return 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff / larger
}
