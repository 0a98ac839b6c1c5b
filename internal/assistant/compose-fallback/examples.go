// internal/assistant/compose-fallback/examples.go
package composefallback

import (
	"strings"

	"community-assistant/internal/models"
)

type topicExamples struct {
	topic    string
	examples []string
}

// exampleQueries are phrasings known to succeed, per intent and topic.
// Placeholders are filled from the request's entities or a default.
var exampleQueries = map[models.IntentType][]topicExamples{
	models.IntentDataQuery: {
		{"communities", []string{
			"How many communities in {location}?",
			"Show me communities in {location}",
			"List all communities in {location}",
			"Count communities in {location}",
			"Communities with {livelihood} livelihood",
			"Show me {ethnic_group} communities",
		}},
		{"workshops", []string{
			"How many workshops in {location}?",
			"Show me MANA assessments in {location}",
			"List workshops conducted in {location}",
			"Recent workshops in {location}",
		}},
		{"policies", []string{
			"Show me all policy recommendations",
			"List approved policy recommendations",
			"How many policy recommendations?",
			"Policies for {sector} sector",
		}},
		{"organizations", []string{
			"List all partnerships",
			"Show me active partnerships",
			"How many partnerships in {location}?",
		}},
		{"projects", []string{
			"Show me all projects",
			"List projects in {location}",
			"How many ongoing projects?",
			"Projects by {ministry}",
			"Completed projects in {location}",
		}},
	},
	models.IntentAnalysis: {
		{"communities", []string{
			"Most common ethnolinguistic groups in {location}",
			"Top livelihoods in {location}",
			"Communities by region",
			"Total population in {location}",
		}},
		{"workshops", []string{
			"Workshops by type",
			"Total participants in {location}",
		}},
		{"policies", []string{
			"Policies by sector",
			"Total budget of policies",
		}},
		{"projects", []string{
			"Projects by sector",
			"Total budget of projects",
		}},
	},
}

var placeholderDefaults = []struct {
	placeholder string
	kind        models.EntityKind
	fallback    string
}{
	{"{location}", models.KindLocation, "Region IX"},
	{"{livelihood}", models.KindLivelihood, "fishing"},
	{"{ethnic_group}", models.KindEthnicGroup, "Meranaw"},
	{"{sector}", models.KindSector, "education"},
	{"{ministry}", models.KindMinistry, "MAFAR"},
}

// TemplateExamples returns up to MaxSuggestions example queries for the
// intent, drawn from the topics named in its matched entities or, when none
// match, from every topic. Unknown intents borrow the
// data_query examples.
func (c *Composer) TemplateExamples(intent models.IntentResult, entities models.Entities) []string {
	t := intent.Type
	if t == models.IntentUnknown || t == "" {
		t = models.IntentDataQuery
	}
	topics := exampleQueries[t]

	var picked []string
	for _, te := range topics {
		if containsString(intent.MatchedEntities, te.topic) {
			picked = append(picked, te.examples...)
		}
	}
	if len(picked) == 0 {
		for _, te := range topics {
			picked = append(picked, te.examples...)
		}
	}
	if len(picked) > c.config.MaxSuggestions {
		picked = picked[:c.config.MaxSuggestions]
	}

	out := make([]string, len(picked))
	for i, ex := range picked {
		out[i] = fillPlaceholders(ex, entities)
	}
	return out
}

func fillPlaceholders(s string, entities models.Entities) string {
	for _, p := range placeholderDefaults {
		if !strings.Contains(s, p.placeholder) {
			continue
		}
		v := entities.Text(p.kind)
		if v == "" {
			v = p.fallback
		}
		s = strings.ReplaceAll(s, p.placeholder, v)
	}
	return s
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
