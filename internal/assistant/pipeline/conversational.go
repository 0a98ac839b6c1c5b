// internal/assistant/pipeline/conversational.go
package pipeline

import (
	"regexp"

	"community-assistant/internal/models"
)

var (
	greetingRe = regexp.MustCompile(`\b(?:hi|hello|hey|good (?:morning|afternoon|evening))\b`)
	thanksRe   = regexp.MustCompile(`\b(?:thanks|thank you|salamat)\b`)
)

// conversational answers help, navigation and small talk without touching
// the record store.
func (p *Pipeline) conversational(t *turn) models.ChatResponse {
	switch t.intent.Type {
	case models.IntentHelp:
		return p.Formatter.Help(firstOr(t.intent.MatchedEntities, ""))
	case models.IntentNavigation:
		return p.Formatter.Navigation(firstOr(t.intent.MatchedEntities, "dashboard"))
	}

	q := string(t.query)
	switch {
	case thanksRe.MatchString(q):
		return p.Formatter.Thanks()
	case greetingRe.MatchString(q):
		return p.Formatter.Greeting()
	}
	return p.Formatter.Help("")
}

func firstOr(list []string, def string) string {
	if len(list) > 0 {
		return list[0]
	}
	return def
}
