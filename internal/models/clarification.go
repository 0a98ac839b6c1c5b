package models

import "time"

type ClarificationOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ClarificationDialog is the structured question returned to the client.
type ClarificationDialog struct {
	ClarificationID string                `json:"clarificationId"`
	SessionID       string                `json:"sessionId"`
	IssueType       string                `json:"issueType"`
	Question        string                `json:"question"`
	Options         []ClarificationOption `json:"options"`
	Priority        string                `json:"priority"`
	Round           int                   `json:"round"`
}

// ClarificationSession is the server-side state behind a dialog.
type ClarificationSession struct {
	SessionID     string     `json:"sessionId"`
	IssueType     string     `json:"issueType"`
	OriginalQuery string     `json:"originalQuery"`
	Entities      Entities     `json:"entities"`
	Intent        IntentResult `json:"intent"`
	Round         int          `json:"round"`
	// Answered lists issue types already settled in earlier rounds.
	Answered  []string  `json:"answered,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClarificationRequest carries the option a user picked. OriginalQuery is
// echoed back when the session has expired.
type ClarificationRequest struct {
	UserID        string `json:"userId"`
	SessionID     string `json:"sessionId"`
	Choice        string `json:"choice"`
	OriginalQuery string `json:"originalQuery,omitempty"`
}

// ClarificationOutcome is the result of applying a user's choice.
type ClarificationOutcome struct {
	RefinedQuery           string               `json:"refinedQuery"`
	Entities               Entities             `json:"entities"`
	NeedsMoreClarification bool                 `json:"needsMoreClarification"`
	Next                   *ClarificationDialog `json:"nextClarification,omitempty"`
	// Abandoned is set when the session was missing or expired.
	Abandoned bool `json:"abandoned,omitempty"`
	// Answer is the pipeline response to the refined query once no further
	// clarification is needed.
	Answer *ChatResponse `json:"answer,omitempty"`
}
