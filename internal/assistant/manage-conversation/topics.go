// internal/assistant/manage-conversation/topics.go
package manageconversation

import (
	"strings"

	"community-assistant/internal/common/textutil"
)

const (
	TopicCommunities  = "communities"
	TopicMANA         = "mana"
	TopicCoordination = "coordination"
	TopicPolicies     = "policies"
	TopicProjects     = "projects"
	TopicGeneral      = "general"
)

type topicRule struct {
	topic    string
	keywords []string
	// entities are classifier entity names that vote for the topic.
	entities []string
}

// Ties resolve to the earlier rule.
var topicRules = []topicRule{
	{TopicCommunities, []string{"barangay", "community", "communities", "obc", "municipality", "province"}, []string{"communities", "regions"}},
	{TopicMANA, []string{"workshop", "assessment", "mana", "needs", "consultation"}, []string{"workshops"}},
	{TopicCoordination, []string{"partner", "stakeholder", "organization", "coordination"}, []string{"organizations"}},
	{TopicPolicies, []string{"policy", "policies", "recommendation", "proposal"}, []string{"policies"}},
	{TopicProjects, []string{"project", "ppa", "program", "activity", "budget"}, []string{"projects"}},
}

var followUps = map[string][]string{
	TopicCommunities: {
		"Show me MANA assessments for these communities",
		"What are the top livelihoods?",
		"Which ones have ongoing projects?",
	},
	TopicMANA: {
		"How many participants attended?",
		"Show me workshops by type",
		"Show me the policy recommendations",
	},
	TopicCoordination: {
		"What sectors do they focus on?",
		"Show me their partnerships",
		"How many partnerships are ongoing?",
	},
	TopicPolicies: {
		"Which ones are approved?",
		"Show me policies by sector",
		"What is the total proposed budget?",
	},
	TopicProjects: {
		"What's the total budget?",
		"Show me projects by sector",
		"Which ministry is responsible?",
	},
}

var generalFollowUps = []string{
	"Can you show me more details?",
	"What else can you tell me?",
	"How does this compare to other areas?",
}

// ClassifyTopic scores keyword hits in message, one point each, plus two
// points per matching classifier entity name. No hits means general.
func ClassifyTopic(message string, entities []string) string {
	q := textutil.Lower(message)
	best, bestScore := TopicGeneral, 0
	for _, r := range topicRules {
		score := 0
		for _, k := range r.keywords {
			if strings.Contains(q, k) {
				score++
			}
		}
		for _, e := range entities {
			for _, re := range r.entities {
				if e == re {
					score += 2
				}
			}
		}
		if score > bestScore {
			best, bestScore = r.topic, score
		}
	}
	return best
}

// FollowUps returns three suggested next questions for topic.
func FollowUps(topic string) []string {
	if s, ok := followUps[topic]; ok {
		return append([]string(nil), s...)
	}
	return append([]string(nil), generalFollowUps...)
}
