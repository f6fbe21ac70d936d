package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TerminationReason records how a reasoning loop run ended.
type TerminationReason string

const (
	TerminationFinished              TerminationReason = "finished"
	TerminationIterationLimitReached TerminationReason = "iteration_limit_reached"
	TerminationParseExhausted        TerminationReason = "parse_exhausted"
)

// ReasoningStep is one thought/action/observation cycle of the loop.
type ReasoningStep struct {
	Thought     string `json:"thought,omitempty"`
	Tool        string `json:"tool,omitempty"`
	ToolInput   string `json:"tool_input,omitempty"`
	Observation string `json:"observation,omitempty"`
	ParseFailed bool   `json:"parse_failed,omitempty"`
}

type Recommendation string

const (
	RecommendationNone Recommendation = ""
	RecommendationBuy  Recommendation = "BUY"
	RecommendationSell Recommendation = "SELL"
	RecommendationHold Recommendation = "HOLD"
)

var recommendationPattern = regexp.MustCompile(`\b(BUY|SELL|HOLD)\b`)

// ExtractRecommendation returns the recommendation carried by text when it
// names exactly one distinct upper-case token, and the number of distinct
// tokens found.
func ExtractRecommendation(text string) (Recommendation, int) {
	seen := make(map[string]struct{}, 3)
	var first string
	for _, m := range recommendationPattern.FindAllString(text, -1) {
		if _, ok := seen[m]; !ok {
			if len(seen) == 0 {
				first = m
			}
			seen[m] = struct{}{}
		}
	}
	if len(seen) != 1 {
		return RecommendationNone, len(seen)
	}
	return Recommendation(first), 1
}

var statedRecommendationPattern = regexp.MustCompile(`(?:[Rr]ecommendation|RECOMMENDATION)[*_\s]*:[*_\s]*(BUY|SELL|HOLD)\b`)

// SingleRecommendation rewrites text so that it names exactly one distinct
// token. With several tokens, the first explicit "Recommendation: X" wins and
// the other tokens are lower-cased; without one, def is used. Text with no
// token gets a "Recommendation: <def>" line appended.
func SingleRecommendation(text string, def Recommendation) (string, Recommendation) {
	text = strings.TrimSpace(text)
	rec, n := ExtractRecommendation(text)
	if n == 1 {
		return text, rec
	}

	keep := def
	stated := false
	if n > 1 {
		if m := statedRecommendationPattern.FindStringSubmatch(text); m != nil {
			keep = Recommendation(m[1])
			stated = true
		}
		text = recommendationPattern.ReplaceAllStringFunc(text, func(tok string) string {
			if tok == string(keep) {
				return tok
			}
			return strings.ToLower(tok)
		})
	}

	if !stated {
		if text != "" {
			text += "\n\n"
		}
		text += "Recommendation: " + string(keep)
	}
	return text, keep
}

// Analysis is the outcome of an analysis request.
type Analysis struct {
	Ticker         string            `json:"ticker"`
	Text           string            `json:"analysis"`
	Recommendation Recommendation    `json:"recommendation,omitempty"`
	Termination    TerminationReason `json:"termination"`
	Iterations     int               `json:"iterations"`
	FallbackUsed   bool              `json:"fallback_used"`
	Steps          []ReasoningStep   `json:"steps,omitempty"`
}

// PriceResult is the outcome of a price request. Exactly one of Snapshot,
// Answer or Error is meaningful.
type PriceResult struct {
	Ticker    string         `json:"ticker"`
	Snapshot  *PriceSnapshot `json:"snapshot,omitempty"`
	Answer    string         `json:"answer,omitempty"`
	Error     *ErrorResult   `json:"error,omitempty"`
	Escalated bool           `json:"escalated,omitempty"`
}

// PriceData is the value exposed as price_data by the HTTP layer.
func (p *PriceResult) PriceData() any {
	switch {
	case p == nil:
		return nil
	case p.Snapshot != nil:
		return p.Snapshot
	case p.Answer != "":
		return map[string]string{"ticker": p.Ticker, "answer": p.Answer}
	case p.Error != nil:
		return p.Error
	default:
		return nil
	}
}

// PromptText renders the price data for inclusion in a prompt.
func (p *PriceResult) PromptText() string {
	data := p.PriceData()
	if data == nil {
		return "not available"
	}
	if p.Answer != "" && p.Snapshot == nil {
		return p.Answer
	}
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%+v", data)
	}
	return string(b)
}
