package models

// FailureAnalysis is the most likely reason a query went unanswered.
type FailureAnalysis struct {
	LikelyIssue string  `json:"likelyIssue"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	Suggestion  string  `json:"suggestion"`
}

type FallbackSuggestions struct {
	CorrectedQueries []string `json:"correctedQueries"`
	SimilarQueries   []string `json:"similarQueries"`
	TemplateExamples []string `json:"templateExamples"`
}

// FallbackAction is a UI affordance offered instead of an answer.
type FallbackAction struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Action      string `json:"action"`
	URL         string `json:"url,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

type FallbackResponse struct {
	Type          string              `json:"type"`
	OriginalQuery string              `json:"originalQuery"`
	Analysis      FailureAnalysis     `json:"errorAnalysis"`
	Suggestions   FallbackSuggestions `json:"suggestions"`
	Alternatives  []FallbackAction    `json:"alternatives"`
}

// All returns every suggestion, corrected first, without duplicates.
func (s FallbackSuggestions) All() []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{s.CorrectedQueries, s.SimilarQueries, s.TemplateExamples} {
		for _, q := range list {
			if !seen[q] {
				seen[q] = true
				out = append(out, q)
			}
		}
	}
	return out
}

type FallbackStats struct {
	TotalQueries  int64   `json:"totalQueries"`
	FailedQueries int64   `json:"failedQueries"`
	FallbackRate  float64 `json:"fallbackRate"`
	PeriodDays    int     `json:"periodDays"`
}
