package models

import "time"

// ResponseSource names the pipeline stage that produced an answer.
type ResponseSource string

const (
	SourceFAQ           ResponseSource = "faq"
	SourceTemplate      ResponseSource = "template"
	SourceRuleBased     ResponseSource = "rule_based"
	SourceClarification ResponseSource = "clarification"
	SourceFallback      ResponseSource = "fallback"
)

// Visualization hints attached to formatted responses.
const (
	VizNumber      = "number"
	VizBarChart    = "bar_chart"
	VizTable       = "table"
	VizList        = "list"
	VizMetricCards = "metric_cards"
	VizText        = "text"
)

type ChatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type ChatResponse struct {
	Response          string                 `json:"response"`
	Data              map[string]interface{} `json:"data,omitempty"`
	Suggestions       []string               `json:"suggestions"`
	Intent            IntentType             `json:"intent"`
	Confidence        float64                `json:"confidence"`
	Source            ResponseSource         `json:"source"`
	VisualizationHint string                 `json:"visualizationHint,omitempty"`
	Clarification     *ClarificationDialog   `json:"clarification,omitempty"`
	GeneratedQuery    string                 `json:"generatedQuery,omitempty"`
	Entities          Entities               `json:"entities,omitempty"`
}

// IntentCapability describes one intent for client UIs.
type IntentCapability struct {
	Type        IntentType `json:"type"`
	Description string     `json:"description"`
	Examples    []string   `json:"examples"`
}

type Capabilities struct {
	Intents              []IntentCapability `json:"intents"`
	AvailableRecordTypes []string           `json:"availableRecordTypes"`
}

// QueryLogEntry is one answered exchange as kept by the query log.
type QueryLogEntry struct {
	UserID         string         `json:"userId"`
	Message        string         `json:"message"`
	Response       string         `json:"response"`
	Intent         IntentType     `json:"intent"`
	Confidence     float64        `json:"confidence"`
	Source         ResponseSource `json:"source"`
	GeneratedQuery string         `json:"generatedQuery,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Successful reports whether the exchange counts as a resolved query.
func (e QueryLogEntry) Successful(minConfidence float64) bool {
	return e.Confidence >= minConfidence && e.Source != SourceFallback
}

// QueryStats counts logged exchanges over a window. Failed counts exchanges
// answered below the failure confidence.
type QueryStats struct {
	Total  int64 `json:"total"`
	Failed int64 `json:"failed"`
}
