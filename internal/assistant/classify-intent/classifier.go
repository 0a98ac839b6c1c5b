// Package classifyintent scores a message against a fixed intent catalog.
// Classification is a pure function of the message and its entities.
package classifyintent

import (
	"fmt"
	"regexp"

	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/models"
)

const (
	boundary    = `(?:^|[^\pL\pN'-])`
	boundaryEnd = `(?:$|[^\pL\pN'-])`
)

var regionsTerm = pluralRe("regions")

type compiledIntent struct {
	spec     intentSpec
	keywords []*regexp.Regexp
	patterns []*regexp.Regexp
	terms    []*regexp.Regexp
}

type compiledGroup struct {
	name  string
	terms []*regexp.Regexp
}

type Classifier struct {
	config   *Config
	intents  []compiledIntent
	entities []compiledGroup
	actions  []compiledGroup
}

func NewClassifier(config *Config) *Classifier {
	if config == nil {
		config = LoadConfig()
	}
	c := &Classifier{config: config}
	for _, spec := range catalog {
		ci := compiledIntent{spec: spec}
		for _, kw := range spec.Keywords {
			ci.keywords = append(ci.keywords, wordRe(kw))
		}
		for _, p := range spec.Patterns {
			ci.patterns = append(ci.patterns, regexp.MustCompile(p))
		}
		for _, t := range spec.Terms {
			ci.terms = append(ci.terms, pluralRe(t))
		}
		c.intents = append(c.intents, ci)
	}
	for _, g := range dataEntities {
		cg := compiledGroup{name: g.Name}
		for _, t := range g.Terms {
			cg.terms = append(cg.terms, pluralRe(t))
		}
		c.entities = append(c.entities, cg)
	}
	for _, g := range actionVerbs {
		cg := compiledGroup{name: g.Action}
		for _, v := range g.Verbs {
			cg.terms = append(cg.terms, wordRe(v))
		}
		c.actions = append(c.actions, cg)
	}
	return c
}

// Classify returns the best intent with the full score vector. When nothing
// scores above zero the result is IntentUnknown and the error wraps
// ErrUnknownIntent; the result is still usable.
func (c *Classifier) Classify(q models.NormalizedQuery, entities models.Entities) (models.IntentResult, error) {
	text := string(q)
	scores := make(map[models.IntentType]float64, len(c.intents))

	best := models.IntentUnknown
	bestScore := 0.0
	for _, ci := range c.intents {
		s := c.score(ci, text, entities)
		scores[ci.spec.Type] = s
		if s > bestScore {
			best, bestScore = ci.spec.Type, s
		}
	}

	result := models.IntentResult{
		Type:            best,
		Confidence:      bestScore,
		AllScores:       scores,
		MatchedEntities: c.DataEntities(q, entities),
		MatchedAction:   c.Action(q),
	}
	if best == models.IntentUnknown {
		return result, fmt.Errorf("%w: %q", apperrors.ErrUnknownIntent, text)
	}
	return result, nil
}

func (c *Classifier) score(ci compiledIntent, text string, entities models.Entities) float64 {
	kw := countMatches(ci.keywords, text)
	pat := countMatches(ci.patterns, text)
	ent := countMatches(ci.terms, text)
	if ci.spec.Type == models.IntentAnalysis && entities.Has(models.KindLocation) && !regionsTerm.MatchString(text) {
		ent++
	}

	score := 0.0
	if kw > 0 {
		score += min(float64(kw)*c.config.KeywordWeight, c.config.KeywordCap)
	}
	if pat > 0 {
		score += min(float64(pat)*c.config.PatternWeight, c.config.PatternCap)
	}
	if ent > 0 {
		score += min(float64(ent)*c.config.EntityWeight, c.config.EntityCap)
	}
	return min(score, 1.0)
}

// DataEntities names the record families the message talks about, in
// catalog order. A resolved location counts as talking about regions.
func (c *Classifier) DataEntities(q models.NormalizedQuery, entities models.Entities) []string {
	text := string(q)
	var out []string
	for _, g := range c.entities {
		if countMatches(g.terms, text) > 0 || (g.name == "regions" && entities.Has(models.KindLocation)) {
			out = append(out, g.name)
		}
	}
	return out
}

// Action returns the first action verb family present, or "".
func (c *Classifier) Action(q models.NormalizedQuery) string {
	for _, g := range c.actions {
		if countMatches(g.terms, string(q)) > 0 {
			return g.name
		}
	}
	return ""
}

// Route maps a classification onto the handler that answers it.
func (c *Classifier) Route(r models.IntentResult) models.Routing {
	switch r.Type {
	case models.IntentDataQuery:
		action := r.MatchedAction
		if action == "" {
			action = "read"
		}
		return models.Routing{Handler: "query_executor", Parameters: map[string]interface{}{
			"entities": r.MatchedEntities, "action": action,
		}}
	case models.IntentAnalysis:
		return models.Routing{Handler: "analysis_engine", Parameters: map[string]interface{}{
			"entities": r.MatchedEntities, "analysis_type": "insights",
		}}
	case models.IntentNavigation:
		return models.Routing{Handler: "navigation_handler", Parameters: map[string]interface{}{
			"target": firstOr(r.MatchedEntities, "dashboard"),
		}}
	case models.IntentHelp:
		return models.Routing{Handler: "help_system", Parameters: map[string]interface{}{
			"topic": firstOr(r.MatchedEntities, "general"),
		}}
	case models.IntentGeneral:
		return models.Routing{Handler: "conversational"}
	default:
		return models.Routing{Handler: "fallback"}
	}
}

// Capabilities lists every intent with its description and examples.
func (c *Classifier) Capabilities() []models.IntentCapability {
	out := make([]models.IntentCapability, 0, len(c.intents))
	for _, ci := range c.intents {
		out = append(out, models.IntentCapability{
			Type:        ci.spec.Type,
			Description: ci.spec.Description,
			Examples:    append([]string(nil), ci.spec.Examples...),
		})
	}
	return out
}

// Description returns the human-readable description of an intent.
func (c *Classifier) Description(t models.IntentType) string {
	for _, ci := range c.intents {
		if ci.spec.Type == t {
			return ci.spec.Description
		}
	}
	return "Unknown intent"
}

func countMatches(res []*regexp.Regexp, text string) int {
	n := 0
	for _, re := range res {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

func wordRe(phrase string) *regexp.Regexp {
	return regexp.MustCompile(boundary + regexp.QuoteMeta(phrase) + boundaryEnd)
}

// pluralRe also accepts the -s and -es plural of a term.
func pluralRe(term string) *regexp.Regexp {
	return regexp.MustCompile(boundary + regexp.QuoteMeta(term) + `(?:s|es)?` + boundaryEnd)
}

func firstOr(values []string, fallback string) string {
	if len(values) > 0 {
		return values[0]
	}
	return fallback
}
