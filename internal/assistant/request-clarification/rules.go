// internal/assistant/request-clarification/rules.go
package requestclarification

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	entityextraction "community-assistant/internal/assistant/entity-extraction"
	"community-assistant/internal/models"
)

const (
	IssueMissingLocation        = "missing_location"
	IssueAmbiguousDate          = "ambiguous_date"
	IssueAmbiguousCommunityType = "ambiguous_community_type"
	IssueMissingStatus          = "missing_status"

	// OptionAll leaves the query unconstrained on the rule's dimension.
	OptionAll = "all"
)

// Input is everything a rule predicate may look at.
type Input struct {
	Query    string
	Entities models.Entities
	Intent   models.IntentResult
}

// Rule is one row of the clarification table. Predicates are pure.
type Rule struct {
	ID        string
	Priority  int
	Predicate func(in Input) bool
	Question  string
	Options   []models.ClarificationOption
	// EntityKey is the entity kind a choice fills, empty when it only
	// rewrites the query.
	EntityKey string
}

func (r Rule) priorityLabel() string {
	switch {
	case r.Priority >= 3:
		return "high"
	case r.Priority == 2:
		return "medium"
	default:
		return "low"
	}
}

func (r Rule) hasOption(key string) bool {
	for _, o := range r.Options {
		if o.Key == key {
			return true
		}
	}
	return false
}

var rules = []Rule{
	{
		ID:        IssueMissingLocation,
		Priority:  3,
		Predicate: missingLocation,
		Question:  "Which region would you like to know about?",
		Options:   regionOptions(),
		EntityKey: string(models.KindLocation),
	},
	{
		ID:        IssueAmbiguousDate,
		Priority:  2,
		Predicate: ambiguousDate,
		Question:  "Which time period are you interested in?",
		Options: []models.ClarificationOption{
			{Key: "last_30_days", Label: "Last 30 days"},
			{Key: "last_3_months", Label: "Last 3 months"},
			{Key: "this_year", Label: "This year"},
			{Key: "all_time", Label: "All time"},
		},
		EntityKey: string(models.KindDateRange),
	},
	{
		ID:        IssueAmbiguousCommunityType,
		Priority:  2,
		Predicate: ambiguousCommunityType,
		Question:  "What type of communities are you looking for?",
		Options: []models.ClarificationOption{
			{Key: "livelihood_filter", Label: "By livelihood (fishing, farming, etc.)"},
			{Key: "ethnic_filter", Label: "By ethnolinguistic group"},
			{Key: OptionAll, Label: "All communities"},
		},
	},
	{
		ID:        IssueMissingStatus,
		Priority:  1,
		Predicate: missingStatus,
		Question:  "Which project status?",
		Options: []models.ClarificationOption{
			{Key: "active", Label: "Active projects"},
			{Key: "completed", Label: "Completed projects"},
			{Key: OptionAll, Label: "All projects"},
		},
		EntityKey: string(models.KindStatus),
	},
}

// regionOptions lists every served region followed by the catch-all.
func regionOptions() []models.ClarificationOption {
	out := make([]models.ClarificationOption, 0, len(entityextraction.Regions)+1)
	for _, r := range entityextraction.Regions {
		out = append(out, models.ClarificationOption{
			Key:   "region_" + strings.ToLower(r.Code),
			Label: fmt.Sprintf("%s (%s)", r.Official, r.Label),
		})
	}
	return append(out, models.ClarificationOption{Key: OptionAll, Label: "All regions"})
}

func init() {
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })
}

// Rules returns the table in evaluation order.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

func ruleByID(id string) (Rule, bool) {
	for _, r := range rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Counting or listing the administrative divisions themselves never needs a
// region.
var adminAggregate = regexp.MustCompile(`\b(?:how many|total|count of|list) (?:provinces|regions|municipalities|barangays)\b`)

var (
	relevantRecords = regexp.MustCompile(`\b(?:communities|workshops|projects)\b`)
	dateTerms       = regexp.MustCompile(`\b(?:recent|latest|trends?|analysis)\b`)
)

func isDataIntent(t models.IntentType) bool {
	return t == models.IntentDataQuery || t == models.IntentAnalysis
}

func missingLocation(in Input) bool {
	if !isDataIntent(in.Intent.Type) || in.Entities.Has(models.KindLocation) {
		return false
	}
	q := strings.ToLower(in.Query)
	if adminAggregate.MatchString(q) {
		return false
	}
	return relevantRecords.MatchString(q)
}

func ambiguousDate(in Input) bool {
	if !isDataIntent(in.Intent.Type) || in.Entities.Has(models.KindDateRange) {
		return false
	}
	return dateTerms.MatchString(strings.ToLower(in.Query))
}

// Only plain listings ask for a community filter; counts and comparisons
// are answered for all communities.
func ambiguousCommunityType(in Input) bool {
	if in.Intent.Type != models.IntentDataQuery || in.Intent.MatchedAction != "read" {
		return false
	}
	if !contains(in.Intent.MatchedEntities, "communities") {
		return false
	}
	return !in.Entities.Has(models.KindLivelihood) && !in.Entities.Has(models.KindEthnicGroup)
}

func missingStatus(in Input) bool {
	if in.Intent.Type != models.IntentDataQuery {
		return false
	}
	return contains(in.Intent.MatchedEntities, "projects") && !in.Entities.Has(models.KindStatus)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
