package composefallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-assistant/internal/common/cache"
	"community-assistant/internal/common/clock"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/models"
	"community-assistant/internal/recordstore"
)

// ==========================
// Test Helper Functions
// ==========================

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func setupRedis(t *testing.T) (cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewRedisStore(client), mr
}

func seededHistory(t *testing.T) *recordstore.MemoryQueryLog {
	t.Helper()
	log := recordstore.NewMemoryQueryLog()
	ctx := context.Background()
	for _, e := range []models.QueryLogEntry{
		{Message: "How many communities in Region IX?", Confidence: 0.9, Source: models.SourceTemplate, Timestamp: now.Add(-24 * time.Hour)},
		{Message: "How many communities in Region X?", Confidence: 0.9, Source: models.SourceTemplate, Timestamp: now.Add(-48 * time.Hour)},
		{Message: "show me the weather", Confidence: 0.9, Source: models.SourceFAQ, Timestamp: now.Add(-time.Hour)},
		{Message: "How many communities in Region XI?", Confidence: 0.3, Source: models.SourceFallback, Timestamp: now.Add(-time.Hour)},
		{Message: "How many communities in Region XII?", Confidence: 0.9, Source: models.SourceTemplate, Timestamp: now.Add(-40 * 24 * time.Hour)},
	} {
		require.NoError(t, log.Append(ctx, e))
	}
	return log
}

func newTestComposer(t *testing.T, history History, store cache.Store) *Composer {
	t.Helper()
	return NewComposer(nil, history, store, clock.Fixed(now), nil, logger.NewTestLogger(t))
}

type failingHistory struct{}

func (failingHistory) RecentSuccessful(context.Context, time.Time, float64, int) ([]models.QueryLogEntry, error) {
	return nil, errors.New("index unavailable")
}

func (failingHistory) Stats(context.Context, time.Time, float64) (models.QueryStats, error) {
	return models.QueryStats{}, errors.New("index unavailable")
}

// ==========================
// Analyze
// ==========================

func TestAnalyze(t *testing.T) {
	c := newTestComposer(t, nil, nil)
	loc := models.Entities{models.KindLocation: models.LocationEntity{Value: "Region IX", LocationType: models.LocationRegion}}

	tests := []struct {
		name      string
		query     string
		entities  models.Entities
		wantIssue string
		wantConf  float64
	}{
		{"typo", "comunitys in regon 9", nil, IssueUnrecognizedTerm, 0.7},
		{"missing location", "show communities", nil, IssueMissingLocation, 1.0},
		{"location entity present", "show communities in Region IX", loc, IssueMissingLocation, 0.5},
		{"ambiguous", "which one", nil, IssueAmbiguousQuery, 1.0},
		{"unsupported", "cannot export the budget spreadsheet", loc, IssueUnsupported, 0.5},
		{"nothing scores", "export budget spreadsheet to excel", loc, IssueMissingLocation, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Analyze(Request{Query: tt.query, Entities: tt.entities})
			assert.Equal(t, tt.wantIssue, got.LikelyIssue)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			assert.NotEmpty(t, got.Explanation)
			assert.NotEmpty(t, got.Suggestion)
		})
	}
}

// ==========================
// Suggestions
// ==========================

func TestCorrections(t *testing.T) {
	c := newTestComposer(t, nil, nil)

	got := c.Corrections("comunitys in regon 9")
	require.NotEmpty(t, got)
	assert.Equal(t, "communities in Region IX", got[0])
	assert.LessOrEqual(t, len(got), 5)
	assert.Contains(t, got, "How many communities are in Region IX?")

	assert.Empty(t, c.Corrections("hello there"))
}

func TestSimilarQueries(t *testing.T) {
	store, mr := setupRedis(t)
	history := seededHistory(t)
	c := newTestComposer(t, history, store)
	ctx := context.Background()

	got := c.SimilarQueries(ctx, "how many communities in region 9?")
	assert.ElementsMatch(t, []string{"How many communities in Region IX?", "How many communities in Region X?"}, got)
	assert.NotContains(t, got, "show me the weather")

	// Memoised: a new entry is not seen until the TTL passes.
	require.NoError(t, history.Append(ctx, models.QueryLogEntry{
		Message: "How many communities in Region 9", Confidence: 0.95, Source: models.SourceTemplate, Timestamp: now,
	}))
	assert.Equal(t, got, c.SimilarQueries(ctx, "how many communities in region 9?"))

	mr.FastForward(6 * time.Minute)
	assert.Contains(t, c.SimilarQueries(ctx, "how many communities in region 9?"), "How many communities in Region 9")
}

func TestSimilarQueries_SkipsQueryItself(t *testing.T) {
	c := newTestComposer(t, seededHistory(t), nil)
	got := c.SimilarQueries(context.Background(), "how many communities in region ix?")
	assert.Equal(t, []string{"How many communities in Region X?"}, got)
}

func TestSimilarQueries_Degrades(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, newTestComposer(t, nil, nil).SimilarQueries(ctx, "anything"))
	assert.Empty(t, newTestComposer(t, failingHistory{}, nil).SimilarQueries(ctx, "anything"))
}

func TestTemplateExamples(t *testing.T) {
	c := newTestComposer(t, nil, nil)

	tests := []struct {
		name     string
		intent   models.IntentResult
		entities models.Entities
		want     []string
	}{
		{
			name:   "matched topic with location",
			intent: models.IntentResult{Type: models.IntentDataQuery, MatchedEntities: []string{"communities"}},
			entities: models.Entities{
				models.KindLocation: models.LocationEntity{Value: "Region X", LocationType: models.LocationRegion},
			},
			want: []string{
				"How many communities in Region X?",
				"Show me communities in Region X",
				"List all communities in Region X",
				"Count communities in Region X",
				"Communities with fishing livelihood",
			},
		},
		{
			name:   "projects fill ministry",
			intent: models.IntentResult{Type: models.IntentDataQuery, MatchedEntities: []string{"projects"}},
			entities: models.Entities{
				models.KindMinistry: models.TermEntity{EntityKind: models.KindMinistry, Value: "MBHTE"},
			},
			want: []string{
				"Show me all projects",
				"List projects in Region IX",
				"How many ongoing projects?",
				"Projects by MBHTE",
				"Completed projects in Region IX",
			},
		},
		{
			name:   "unknown intent borrows data examples",
			intent: models.IntentResult{Type: models.IntentUnknown},
			want: []string{
				"How many communities in Region IX?",
				"Show me communities in Region IX",
				"List all communities in Region IX",
				"Count communities in Region IX",
				"Communities with fishing livelihood",
			},
		},
		{
			name:   "analysis",
			intent: models.IntentResult{Type: models.IntentAnalysis, MatchedEntities: []string{"policies"}},
			want:   []string{"Policies by sector", "Total budget of policies"},
		},
		{
			name:   "help has none",
			intent: models.IntentResult{Type: models.IntentHelp},
			want:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.TemplateExamples(tt.intent, tt.entities))
		})
	}
}

func TestAlternatives(t *testing.T) {
	data := Alternatives(models.IntentDataQuery)
	require.Len(t, data, 3)
	assert.Equal(t, "query_builder", data[0].Type)
	assert.Equal(t, "/help/chat-queries/", data[1].URL)
	assert.Equal(t, "direct_search", data[2].Type)

	assert.Len(t, Alternatives(models.IntentAnalysis), 2)
}

// ==========================
// Compose and Stats
// ==========================

func TestCompose(t *testing.T) {
	store, _ := setupRedis(t)
	c := newTestComposer(t, seededHistory(t), store)

	resp := c.Compose(context.Background(), Request{
		Query:  "comunitys in regon 9",
		Intent: models.IntentResult{Type: models.IntentDataQuery},
	})

	assert.Equal(t, "query_failed", resp.Type)
	assert.Equal(t, "comunitys in regon 9", resp.OriginalQuery)
	assert.Equal(t, IssueUnrecognizedTerm, resp.Analysis.LikelyIssue)
	require.NotEmpty(t, resp.Suggestions.CorrectedQueries)
	assert.Equal(t, "communities in Region IX", resp.Suggestions.CorrectedQueries[0])
	assert.Len(t, resp.Suggestions.TemplateExamples, 5)
	assert.Len(t, resp.Alternatives, 3)
	assert.Equal(t, "communities in Region IX", resp.Suggestions.All()[0])
}

func TestStats(t *testing.T) {
	c := newTestComposer(t, seededHistory(t), nil)
	got := c.Stats(context.Background())
	assert.Equal(t, models.FallbackStats{TotalQueries: 4, FailedQueries: 1, FallbackRate: 25, PeriodDays: 30}, got)

	assert.Equal(t, models.FallbackStats{PeriodDays: 30}, newTestComposer(t, failingHistory{}, nil).Stats(context.Background()))
	assert.Equal(t, models.FallbackStats{PeriodDays: 30}, newTestComposer(t, nil, nil).Stats(context.Background()))
}
