// internal/assistant/format-response/formatter_test.go
package formatresponse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-assistant/internal/common/logger"
	"community-assistant/internal/models"
)

func newFormatter(t *testing.T) *Formatter {
	t.Helper()
	return NewFormatter(nil, logger.NewTestLogger(t))
}

func regionIX() models.Entities {
	return models.Entities{
		models.KindLocation: models.LocationEntity{Value: "Region IX", LocationType: models.LocationRegion, Code: "IX", Confidence: 1, Validated: true},
	}
}

// ==========================
// Count
// ==========================

func TestCount(t *testing.T) {
	tests := []struct {
		name     string
		n        int64
		q        Query
		wantText string
		wantViz  string
		wantSugg []string
	}{
		{
			name:     "subject and location",
			n:        6,
			q:        Query{Question: "how many communities in Region IX", Subject: "communities", Entities: regionIX()},
			wantText: "There are 6 communities in Region IX matching your query.",
			wantViz:  models.VizNumber,
			wantSugg: []string{"Show me the list of communities", "Break down by region", "Compare with other areas"},
		},
		{
			name:     "single item",
			n:        1,
			q:        Query{Question: "how many policies", Subject: "policy recommendations"},
			wantText: "There is 1 policy recommendation matching your query.",
			wantViz:  models.VizNumber,
		},
		{
			name:     "zero suggests needs only",
			n:        0,
			q:        Query{Question: "how many barangays in Davao"},
			wantText: "There are no barangays matching your query.",
			wantViz:  models.VizNumber,
			wantSugg: []string{"What are the needs in these barangays?"},
		},
		{
			name:     "large count uses thousands separator and chart",
			n:        12500,
			q:        Query{Question: "count everything", Topics: []string{"projects"}},
			wantText: "There are 12,500 projects matching your query.",
			wantViz:  models.VizBarChart,
		},
		{
			name:     "nothing to go on",
			n:        3,
			q:        Query{Question: "how many"},
			wantText: "There are 3 items matching your query.",
			wantViz:  models.VizNumber,
		},
	}

	f := newFormatter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.Count(tt.n, tt.q)
			assert.Equal(t, tt.wantText, resp.Response)
			assert.Equal(t, tt.wantViz, resp.VisualizationHint)
			assert.Equal(t, tt.n, resp.Data["count"])
			assert.LessOrEqual(t, len(resp.Suggestions), 3)
			if tt.wantSugg != nil {
				assert.Equal(t, tt.wantSugg, resp.Suggestions)
			}
		})
	}
}

func TestResult_Routing(t *testing.T) {
	f := newFormatter(t)

	tests := []struct {
		name    string
		res     models.SandboxResult
		wantViz string
		prefix  string
	}{
		{"count", models.SandboxResult{Success: true, Value: int64(4), ResultType: models.ResultScalar}, models.VizNumber, "There are 4"},
		{"exists", models.SandboxResult{Success: true, Value: true, ResultType: models.ResultScalar}, models.VizText, "Yes, there are"},
		{"aggregate", models.SandboxResult{Success: true, Value: map[string]interface{}{"population__sum": int64(6950)}, ResultType: models.ResultAggregate}, models.VizMetricCards, "Here are the aggregate results"},
		{"records", models.SandboxResult{Success: true, Value: []models.Record{{"name": "Talon-Talon"}}, ResultType: models.ResultRecords}, models.VizList, "Found 1 community"},
		{"breakdown", models.SandboxResult{Success: true, Value: []models.Record{{"region": "Region IX", "total": int64(6)}}, ResultType: models.ResultRecords}, models.VizBarChart, "Here is the breakdown"},
		{"flat values", models.SandboxResult{Success: true, Value: []interface{}{"a", "b"}, ResultType: models.ResultRecords}, models.VizList, "Found 2 communities"},
		{"unknown shape", models.SandboxResult{Success: true, Value: 3.5}, models.VizText, "Here's what I found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.Result(tt.res, Query{Subject: "communities"})
			assert.Equal(t, tt.wantViz, resp.VisualizationHint)
			assert.True(t, strings.HasPrefix(resp.Response, tt.prefix), resp.Response)
		})
	}
}

// ==========================
// List and breakdown
// ==========================

func communities(n int) []models.Record {
	out := make([]models.Record, n)
	for i := range out {
		out[i] = models.Record{"id": int64(i + 1), "name": "Community " + string(rune('A'+i)), "region": "Region IX"}
	}
	return out
}

func TestList(t *testing.T) {
	f := newFormatter(t)

	t.Run("short list shows everything", func(t *testing.T) {
		resp := f.List(communities(2), false, Query{Subject: "communities"})
		assert.Equal(t, "Found 2 communities. Here they are:\n\n1. **Name**: Community A\n2. **Name**: Community B", resp.Response)
		assert.Equal(t, models.VizList, resp.VisualizationHint)
		assert.Equal(t, []string{"Filter these communities", "Analyze these results", "Show MANA assessments for these"}, resp.Suggestions)
	})

	t.Run("long list previews five and becomes a table", func(t *testing.T) {
		resp := f.List(communities(12), true, Query{Subject: "communities"})
		assert.True(t, strings.HasPrefix(resp.Response, "Found 12 communities. Here are the first 5:"))
		assert.Contains(t, resp.Response, "5. **Name**: Community E")
		assert.NotContains(t, resp.Response, "Community F")
		assert.Contains(t, resp.Response, "*Showing 5 of 12 total results*")
		assert.Equal(t, models.VizTable, resp.VisualizationHint)
		assert.Equal(t, 5, resp.Data["previewCount"])
		assert.Equal(t, true, resp.Data["truncated"])
		assert.Equal(t, "Show me more details", resp.Suggestions[0])
	})

	t.Run("empty", func(t *testing.T) {
		resp := f.List(nil, false, Query{Topics: []string{"policies"}})
		assert.Equal(t, "No policies found matching your query.", resp.Response)
		assert.Equal(t, []string{"Try a broader search", "Show me all policies"}, resp.Suggestions)
		assert.Equal(t, 0, resp.Data["count"])
	})

	t.Run("rows without priority fields use sorted columns", func(t *testing.T) {
		rows := []models.Record{{"id": int64(9), "region": "Region X", "province": "Bukidnon", "households": int64(1200), "coastal": false}}
		resp := f.List(rows, false, Query{})
		assert.Contains(t, resp.Response, "1. **Households**: 1,200 | **Province**: Bukidnon | **Region**: Region X")
	})

	t.Run("long values are truncated", func(t *testing.T) {
		rows := []models.Record{{"title": strings.Repeat("x", 150)}}
		resp := f.List(rows, false, Query{Subject: "projects"})
		assert.Contains(t, resp.Response, strings.Repeat("x", 97)+"...")
		assert.NotContains(t, resp.Response, strings.Repeat("x", 98))
	})
}

func TestBreakdown(t *testing.T) {
	f := newFormatter(t)
	rows := []models.Record{
		{"primary_livelihood": "fishing", "total": int64(7)},
		{"primary_livelihood": "farming", "total": int64(5)},
		{"primary_livelihood": "", "total": int64(1)},
	}
	resp := f.Result(models.SandboxResult{Success: true, Value: rows, ResultType: models.ResultRecords}, Query{Subject: "communities"})

	assert.Equal(t, "Here is the breakdown of communities by primary livelihood:\n\n"+
		"1. **fishing**: 7\n2. **farming**: 5\n3. **Unspecified**: 1", resp.Response)
	assert.Equal(t, "primary_livelihood", resp.Data["groupBy"])
	assert.Equal(t, models.VizBarChart, resp.VisualizationHint)
}

func TestBreakdownField(t *testing.T) {
	tests := []struct {
		name  string
		rows  []models.Record
		field string
		ok    bool
	}{
		{"pairs", []models.Record{{"sector": "education", "total": int64(2)}}, "sector", true},
		{"no rows", nil, "", false},
		{"extra column", []models.Record{{"sector": "x", "status": "y", "total": int64(1)}}, "", false},
		{"no total", []models.Record{{"sector": "x", "name": "y"}}, "", false},
		{"mixed fields", []models.Record{{"sector": "x", "total": int64(1)}, {"status": "y", "total": int64(1)}}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, ok := breakdownField(tt.rows)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.field, field)
		})
	}
}

// ==========================
// Aggregate
// ==========================

func TestAggregate(t *testing.T) {
	f := newFormatter(t)
	resp := f.Aggregate(map[string]interface{}{
		"population__sum": int64(6950),
		"budget__avg":     12.5,
		"households":      "n/a",
	}, Query{})

	assert.Equal(t, "Here are the aggregate results:\n\n"+
		"**Budget (AVG)**: ₱12.50\n"+
		"**Households (VALUE)**: n/a\n"+
		"**Population (SUM)**: 6,950", resp.Response)
	assert.Equal(t, models.VizMetricCards, resp.VisualizationHint)
	assert.Len(t, resp.Suggestions, 3)
}

// ==========================
// Nouns
// ==========================

func TestPluralizeSingularize(t *testing.T) {
	tests := []struct{ singular, plural string }{
		{"community", "communities"},
		{"policy recommendation", "policy recommendations"},
		{"project", "projects"},
		{"survey", "surveys"},
		{"municipality", "municipalities"},
	}
	for _, tt := range tests {
		t.Run(tt.singular, func(t *testing.T) {
			assert.Equal(t, tt.plural, pluralize(tt.singular))
			assert.Equal(t, tt.singular, singularize(tt.plural))
		})
	}
	assert.Equal(t, "address", singularize("address"))
}

func TestCountNoun(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"subject wins", Query{Question: "how many regions", Subject: "communities"}, "community"},
		{"communities before region", Query{Question: "How many communities in Region IX"}, "community"},
		{"barangay", Query{Question: "count barangays"}, "barangay"},
		{"province", Query{Question: "how many provinces"}, "province"},
		{"topic", Query{Question: "how many", Topics: []string{"workshops"}}, "workshop"},
		{"default", Query{Question: "how many"}, "item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countNoun(tt.q))
		})
	}
}

// ==========================
// Messages
// ==========================

func TestNavigation(t *testing.T) {
	tests := []struct {
		target, wantTarget, wantURL string
	}{
		{"communities", "communities", "/communities/"},
		{"projects", "projects", "/project-central/"},
		{"workshops", "mana", "/mana/"},
		{"organizations", "coordination", "/coordination/"},
		{"", "dashboard", "/dashboard/"},
		{"reports", "dashboard", "/dashboard/"},
	}
	f := newFormatter(t)
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			resp := f.Navigation(tt.target)
			assert.Equal(t, "I'll take you to the "+tt.wantTarget+" page.", resp.Response)
			assert.Equal(t, tt.wantURL, resp.Data["redirectUrl"])
			assert.NotNil(t, resp.Suggestions)
		})
	}
}

func TestFixedMessages(t *testing.T) {
	f := newFormatter(t)
	for name, resp := range map[string]models.ChatResponse{
		"help":     f.Help(""),
		"greeting": f.Greeting(),
		"thanks":   f.Thanks(),
		"analysis": f.AnalysisGuidance(),
		"unknown":  f.Unknown(),
		"apology":  f.Apology(),
	} {
		t.Run(name, func(t *testing.T) {
			assert.NotEmpty(t, resp.Response)
			assert.NotEmpty(t, resp.Suggestions)
			assert.Equal(t, models.VizText, resp.VisualizationHint)
		})
	}

	help := f.Help("communities")
	assert.Equal(t, "communities", help.Data["topic"])
	assert.Contains(t, help.Response, "How many communities are in Region IX?")
}

func TestError(t *testing.T) {
	resp := newFormatter(t).Error("query rejected", "delete everything")
	assert.Contains(t, resp.Response, "*query rejected*")
	assert.Equal(t, "delete everything", resp.Data["query"])
	assert.Len(t, resp.Suggestions, 3)
}

func TestFAQ(t *testing.T) {
	f := newFormatter(t)
	resp := f.FAQ(&models.FAQMatch{
		EntryID:        "total_communities",
		Category:       "communities",
		Tier:           "curated_exact",
		Answer:         "There are 18 communities.",
		RelatedQueries: []string{"a", "b", "c", "d"},
	})
	assert.Equal(t, "There are 18 communities.", resp.Response)
	assert.Equal(t, []string{"a", "b", "c"}, resp.Suggestions)
	assert.Equal(t, "total_communities", resp.Data["faqId"])

	empty := f.FAQ(&models.FAQMatch{Answer: "x"})
	assert.NotNil(t, empty.Suggestions)
}

func TestClarification(t *testing.T) {
	d := &models.ClarificationDialog{
		SessionID: "s1",
		IssueType: "missing_location",
		Question:  "Which region?",
		Options:   []models.ClarificationOption{{Key: "region_ix", Label: "Region IX"}, {Key: "all", Label: "All regions"}},
	}
	resp := newFormatter(t).Clarification(d)
	assert.Equal(t, "Which region?", resp.Response)
	assert.Equal(t, []string{"Region IX", "All regions"}, resp.Suggestions)
	require.NotNil(t, resp.Clarification)
	assert.Equal(t, "s1", resp.Clarification.SessionID)
}

func TestFallback(t *testing.T) {
	fr := models.FallbackResponse{
		Type:          "query_failed",
		OriginalQuery: "comunitys in regon 9",
		Analysis: models.FailureAnalysis{
			LikelyIssue: "unrecognized_term",
			Explanation: "Some words were not recognized.",
			Suggestion:  "Check the spelling.",
		},
		Suggestions: models.FallbackSuggestions{
			CorrectedQueries: []string{"communities in Region IX", "how many communities in Region IX"},
			SimilarQueries:   []string{"communities in Region IX", "list communities"},
			TemplateExamples: []string{"a", "b", "c"},
		},
	}
	resp := newFormatter(t).Fallback(fr)
	assert.Equal(t, "I couldn't find an answer to that question. Some words were not recognized.\n\nCheck the spelling.", resp.Response)
	assert.Equal(t, []string{"communities in Region IX", "how many communities in Region IX", "list communities", "a", "b"}, resp.Suggestions)
	assert.Equal(t, fr, resp.Data["fallback"])
}
