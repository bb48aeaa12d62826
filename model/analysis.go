package model

import (
	"encoding/json"
	"strings"
)

// NoneSentinel fills analysis fields the classifier left out.
const NoneSentinel = "无"

// Skip record written for posts rejected by the validity filter, so they are
// never picked up again.
const (
	SkipTicker     = "无效数据"
	SkipSuggestion = "跳过"
	SkipLogic      = "数据验证失败"
	SkipSummary    = "此帖子数据无效，已跳过分析"
)

// AnalysisResult is the structured output of a classification call.
type AnalysisResult struct {
	IsValuable LenientBool `json:"is_valuable"`
	Ticker     string      `json:"ticker"`
	Suggestion string      `json:"suggestion"`
	Logic      string      `json:"logic"`
	AiSummary  string      `json:"ai_summary"`
}

// ApplyDefaults replaces empty fields with NoneSentinel.
func (r *AnalysisResult) ApplyDefaults() {
	for _, f := range []*string{&r.Ticker, &r.Suggestion, &r.Logic, &r.AiSummary} {
		if strings.TrimSpace(*f) == "" {
			*f = NoneSentinel
		}
	}
}

// SkipAnalysisResult is the neutral record stored for filtered posts.
func SkipAnalysisResult() *AnalysisResult {
	return &AnalysisResult{
		Ticker:     SkipTicker,
		Suggestion: SkipSuggestion,
		Logic:      SkipLogic,
		AiSummary:  SkipSummary,
	}
}

// LenientBool accepts true/false as well as "true"/"false" strings and 0/1,
// models are not always strict about the JSON type of is_valuable.
type LenientBool bool

func (b *LenientBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(string(data)), `"`)) {
	case "true", "1", "yes":
		*b = true
	case "false", "0", "no", "", "null":
		*b = false
	default:
		var v bool
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = LenientBool(v)
	}
	return nil
}
