package models

import (
	"sort"
	"time"
)

type Exchange struct {
	UserMessage       string     `json:"userMessage"`
	AssistantResponse string     `json:"assistantResponse"`
	Intent            IntentType `json:"intent"`
	Confidence        float64    `json:"confidence"`
	Topic             string     `json:"topic,omitempty"`
	Timestamp         time.Time  `json:"timestamp"`
}

// ConversationContext is the rolling per-user memory of recent exchanges.
type ConversationContext struct {
	UserID            string          `json:"userId"`
	SessionID         string          `json:"sessionId"`
	History           []Exchange      `json:"history"`
	LastTopic         string          `json:"lastTopic,omitempty"`
	EntitiesMentioned map[string]bool `json:"entitiesMentioned"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Mentioned returns the entity kinds seen so far, sorted.
func (c *ConversationContext) Mentioned() []string {
	out := make([]string, 0, len(c.EntitiesMentioned))
	for k := range c.EntitiesMentioned {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
