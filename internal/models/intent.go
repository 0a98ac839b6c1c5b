package models

type IntentType string

// Catalog order. Ties between equal scores resolve to the earlier entry.
const (
	IntentDataQuery  IntentType = "data_query"
	IntentAnalysis   IntentType = "analysis"
	IntentNavigation IntentType = "navigation"
	IntentHelp       IntentType = "help"
	IntentGeneral    IntentType = "general"
	IntentUnknown    IntentType = "unknown"
)

type IntentResult struct {
	Type            IntentType             `json:"type"`
	Confidence      float64                `json:"confidence"`
	AllScores       map[IntentType]float64 `json:"allScores"`
	MatchedEntities []string               `json:"matchedEntities,omitempty"`
	MatchedAction   string                 `json:"matchedAction,omitempty"`
}

// IsDataIntent reports whether the intent is answered from the record store.
func (r IntentResult) IsDataIntent() bool {
	return r.Type == IntentDataQuery || r.Type == IntentAnalysis || r.Type == IntentUnknown
}

// Routing names the handler that answers an intent.
type Routing struct {
	Handler    string                 `json:"handler"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}
