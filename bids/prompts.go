package bids

import (
	"fmt"
	"strings"

	"bidforge_back/rag"
)

const bidSystemPrompt = `You are an expert bid writer for a professional services vendor. You write
winning, realistic proposals grounded in the material you are given. Never
invent capabilities or prices that contradict the provided context.`

const bidSectionList = `1. Executive Summary
2. Project Understanding
3. Proposed Approach and Methodology
4. Timeline and Milestones
5. Pricing Approach
6. Team and Qualifications
7. Risk Mitigation`

// buildBidPrompt assembles the user prompt for bid generation from the RFP
// text and the retrieved context.
func buildBidPrompt(rfpText string, bidContext *rag.BidContext, instructions string) string {
	var sb strings.Builder

	sb.WriteString("Write a complete bid proposal responding to the RFP below.\n")
	sb.WriteString("Structure the proposal with exactly these sections:\n")
	sb.WriteString(bidSectionList)
	sb.WriteString("\n\n## RFP\n")
	sb.WriteString(strings.TrimSpace(rfpText))

	if bidContext != nil {
		if len(bidContext.HistoricalBids) > 0 {
			sb.WriteString("\n\n## Relevant excerpts from past winning bids\n")
			sb.WriteString(rag.JoinMatches(bidContext.HistoricalBids, ""))
		}
		if len(bidContext.SimilarRFQs) > 0 {
			sb.WriteString("\n\n## Related passages from this project's documents\n")
			sb.WriteString(rag.JoinMatches(bidContext.SimilarRFQs, ""))
		}
	}

	if instructions = strings.TrimSpace(instructions); instructions != "" {
		sb.WriteString("\n\n## Additional instructions\n")
		sb.WriteString(instructions)
	}

	return sb.String()
}

const analysisSystemPrompt = `You are a procurement analyst reviewing an RFP on behalf of a vendor
deciding whether and how to bid. You respond with a single JSON object and
no surrounding prose.`

// buildAnalysisPrompt asks for the fixed JSON assessment shape.
func buildAnalysisPrompt(rfpText string, bidContext *rag.BidContext) string {
	var sb strings.Builder

	sb.WriteString("Analyze the RFP below and return a JSON object with exactly this shape:\n")
	sb.WriteString(`{
  "quality_score": <integer 0-100>,
  "clarity_score": <integer 0-100>,
  "doability_score": <integer 0-100>,
  "vendor_risk_score": <integer 0-100>,
  "overall_risk": "Low" | "Medium" | "High" | "Critical",
  "key_findings": [
    {"category": "<category>", "status": "<positive|warning|negative>", "title": "<title>", "description": "<description>"}
  ],
  "red_flags": [
    {"severity": "<Low|Medium|High|Critical>", "title": "<title>", "description": "<description>"}
  ],
  "opportunities": [
    {"impact": "<Low|Medium|High>", "title": "<title>", "description": "<description>"}
  ],
  "missing_documents": ["<document name>"],
  "recommendations": [
    {"priority": "<Low|Medium|High>", "action": "<action>", "description": "<description>", "estimated_time": "<time>", "owner": "<role>"}
  ]
}`)
	sb.WriteString("\n\n## RFP\n")
	sb.WriteString(strings.TrimSpace(rfpText))

	if bidContext != nil && bidContext.TotalChunks() > 0 {
		sb.WriteString("\n\n## Context from related documents\n")
		sb.WriteString(bidContext.Assembled(""))
	}

	return sb.String()
}

func truncatePrompt(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return fmt.Sprintf("%s\n[truncated at %d characters]", string(runes[:max]), max)
}
