// internal/assistant/classify-intent/catalog.go
package classifyintent

import "community-assistant/internal/models"

type intentSpec struct {
	Type        models.IntentType
	Keywords    []string
	Patterns    []string
	Terms       []string
	Description string
	Examples    []string
	Handler     string
}

// catalog is ordered; ties between equal scores go to the earlier intent.
var catalog = []intentSpec{
	{
		Type: models.IntentDataQuery,
		Keywords: []string{
			"how many", "count", "list", "show me", "find", "get",
			"which", "what are", "total", "number of", "display",
		},
		Patterns: []string{
			`\bhow many .+ (are|in|have)\b`,
			`\b(count|total|number of) .+`,
			`\b(list|show|display) (all|the) .+`,
			`\bwhich .+ (are|have|in)\b`,
		},
		Terms:       []string{"communities", "workshops", "policies", "projects", "organizations"},
		Description: "Request for specific data from the system",
		Examples: []string{
			"How many communities are in Region IX?",
			"List all workshops in Zamboanga del Sur",
			"Show me active policy recommendations",
			"Count organizations in the coordination network",
		},
		Handler: "query_executor",
	},
	{
		Type: models.IntentAnalysis,
		Keywords: []string{
			"analyze", "compare", "trend", "insight", "summary",
			"top", "most", "least", "average", "common",
			"distribution", "breakdown", "pattern",
		},
		Patterns: []string{
			`\b(what|which) (are|is) the (top|most|least) .+`,
			`\b(analyze|compare|summarize) .+`,
			`\b(trend|pattern|distribution) (of|in|for) .+`,
		},
		Terms:       []string{"needs", "priorities", "sectors", "regions"},
		Description: "Request for analytical insights and patterns",
		Examples: []string{
			"What are the top needs in coastal communities?",
			"Analyze MANA assessment trends",
			"Compare project completion rates by region",
			"Show me the most common ethnolinguistic groups",
		},
		Handler: "analysis_engine",
	},
	{
		Type: models.IntentNavigation,
		Keywords: []string{
			"go to", "navigate", "open", "take me", "redirect",
			"dashboard", "page", "view", "section",
		},
		Patterns: []string{
			`\b(go to|navigate to|open|show) (the )?(dashboard|page|view)\b`,
			`\b(take me to|redirect to) .+`,
		},
		Terms:       []string{"dashboard", "communities", "mana", "coordination", "policies"},
		Description: "Request to navigate to a different page",
		Examples: []string{
			"Take me to the dashboard",
			"Open the MANA module",
			"Go to coordination page",
		},
		Handler: "navigation_handler",
	},
	{
		Type: models.IntentHelp,
		Keywords: []string{
			"help", "how do i", "how to", "explain", "what is",
			"guide", "tutorial", "instructions", "steps",
		},
		Patterns: []string{
			`\bhow (do i|to|can i) .+`,
			`\b(what is|explain) .+`,
			`\b(help|guide|tutorial) (me with|on|for) .+`,
		},
		Terms:       []string{"create", "update", "delete", "search", "filter"},
		Description: "Request for help or instructions",
		Examples: []string{
			"How do I create a new workshop?",
			"What is a policy recommendation?",
			"Help me search for communities",
		},
		Handler: "help_system",
	},
	{
		Type:        models.IntentGeneral,
		Keywords:    []string{"hi", "hello", "thanks", "thank you", "okay", "yes", "no"},
		Patterns:    []string{`^(hi|hello|hey)\b`, `\b(thanks|thank you)\b`},
		Description: "General conversation or greeting",
		Examples: []string{
			"Hello!",
			"Thank you",
			"What can you help me with?",
		},
		Handler: "conversational",
	},
}

// Record families a message can be about, by the words that name them.
var dataEntities = []struct {
	Name  string
	Terms []string
}{
	{"communities", []string{"barangay", "community", "communities", "obc"}},
	{"workshops", []string{"workshop", "assessment", "mana", "consultation"}},
	{"policies", []string{"policy", "policies", "recommendation", "proposal"}},
	{"projects", []string{"project", "ppa", "program", "activity", "activities"}},
	{"organizations", []string{"organization", "partner", "stakeholder", "agency", "agencies"}},
	{"regions", []string{"region", "province", "municipality", "municipalities", "area"}},
}

// Action verbs, checked in order.
var actionVerbs = []struct {
	Action string
	Verbs  []string
}{
	{"create", []string{"create", "add", "new", "register"}},
	{"read", []string{"show", "display", "view", "get", "find", "list"}},
	{"update", []string{"update", "edit", "modify", "change"}},
	{"delete", []string{"delete", "remove"}},
	{"filter", []string{"filter", "search", "where"}},
	{"aggregate", []string{"how many", "number of", "count", "total", "sum", "average"}},
}
