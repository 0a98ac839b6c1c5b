// Package composefallback builds the reply for a question nothing else could
// answer: a diagnosis, corrected and similar queries, filled-in examples and
// alternative actions.
package composefallback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"time"

	"community-assistant/internal/assistant/similarity"
	"community-assistant/internal/common/cache"
	"community-assistant/internal/common/clock"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/common/textutil"
	"community-assistant/internal/models"
)

// Failure issues, in tie-break order.
const (
	IssueMissingLocation  = "missing_location"
	IssueUnrecognizedTerm = "unrecognized_term"
	IssueAmbiguousQuery   = "ambiguous_query"
	IssueUnsupported      = "unsupported_query"
)

const responseType = "query_failed"

type failurePattern struct {
	issue       string
	indicators  []string
	explanation string
	suggestion  string
}

var failurePatterns = []failurePattern{
	{
		issue:       IssueMissingLocation,
		indicators:  []string{"communities", "workshops", "projects"},
		explanation: "This query usually requires a location (region, province, or municipality)",
		suggestion:  `Try adding "in Region IX" or "in Zamboanga del Sur"`,
	},
	{
		issue:       IssueUnrecognizedTerm,
		indicators:  []string{"typo", "misspelling", "unknown"},
		explanation: "Some terms in your query were not recognized",
		suggestion:  "Check spelling or use the query builder",
	},
	{
		issue:       IssueAmbiguousQuery,
		indicators:  []string{"unclear", "multiple", "which"},
		explanation: "Your query could mean multiple things",
		suggestion:  "Try being more specific about what you want to know",
	},
	{
		issue:       IssueUnsupported,
		indicators:  []string{"cannot", "unsupported", "not available"},
		explanation: "This type of query is not yet supported",
		suggestion:  "Try using the visual query builder or manual filtering",
	},
}

var locationWords = []string{"region", "province", "zamboanga", "davao", "cotabato", "soccsksargen"}

// History is the query log view the composer reads.
type History interface {
	RecentSuccessful(ctx context.Context, since time.Time, minConfidence float64, limit int) ([]models.QueryLogEntry, error)
	Stats(ctx context.Context, since time.Time, failBelow float64) (models.QueryStats, error)
}

// Request carries what the pipeline knew when it gave up.
type Request struct {
	Query    string
	Intent   models.IntentResult
	Entities models.Entities
}

type Composer struct {
	corrector *Corrector
	engine    *similarity.Engine
	history   History
	store     cache.Store
	clock     clock.Clock
	config    *Config
	logger    logger.Logger
}

// NewComposer wires a composer. history and store may be nil: similar queries
// are then skipped or computed uncached.
func NewComposer(engine *similarity.Engine, history History, store cache.Store, clk clock.Clock, config *Config, log logger.Logger) *Composer {
	if config == nil {
		config = LoadConfig()
	}
	if engine == nil {
		engine = similarity.NewEngine(0)
	}
	return &Composer{
		corrector: NewCorrector(),
		engine:    engine,
		history:   history,
		store:     store,
		clock:     clock.OrSystem(clk),
		config:    config,
		logger:    logger.ForComponent(log, "compose-fallback"),
	}
}

func (c *Composer) Corrector() *Corrector { return c.corrector }

// Compose never fails; every part degrades to empty on its own.
func (c *Composer) Compose(ctx context.Context, req Request) models.FallbackResponse {
	resp := models.FallbackResponse{
		Type:          responseType,
		OriginalQuery: req.Query,
		Analysis:      c.Analyze(req),
		Suggestions: models.FallbackSuggestions{
			CorrectedQueries: c.Corrections(req.Query),
			SimilarQueries:   c.SimilarQueries(ctx, req.Query),
			TemplateExamples: c.TemplateExamples(req.Intent, req.Entities),
		},
		Alternatives: Alternatives(req.Intent.Type),
	}
	c.logger.Info("Fallback composed", map[string]interface{}{
		"likely_issue": resp.Analysis.LikelyIssue,
		"confidence":   resp.Analysis.Confidence,
		"corrected":    len(resp.Suggestions.CorrectedQueries),
		"similar":      len(resp.Suggestions.SimilarQueries),
	})
	return resp
}

// Analyze scores each failure pattern and reports the best; ties go to the
// earlier pattern.
func (c *Composer) Analyze(req Request) models.FailureAnalysis {
	q := textutil.Lower(req.Query)

	best, bestScore := failurePatterns[len(failurePatterns)-1], -1.0
	for _, p := range failurePatterns {
		score := 0.0
		if containsAny(q, p.indicators...) {
			score += 0.5
		}
		switch p.issue {
		case IssueMissingLocation:
			if containsAny(q, "communities", "workshops", "projects") &&
				!containsAny(q, locationWords...) && !req.Entities.Has(models.KindLocation) {
				score += 0.6
			}
		case IssueUnrecognizedTerm:
			if c.corrector.HasCorrections(req.Query) {
				score += 0.7
			}
		case IssueAmbiguousQuery:
			if len(strings.Fields(q)) < 3 {
				score += 0.4
			}
			if len(req.Entities) == 0 {
				score += 0.3
			}
		}
		score = math.Min(score, 1)
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	return models.FailureAnalysis{
		LikelyIssue: best.issue,
		Confidence:  bestScore,
		Explanation: best.explanation,
		Suggestion:  best.suggestion,
	}
}

// Corrections is the spelling-corrected query followed by rephrasings.
func (c *Composer) Corrections(query string) []string {
	var out []string
	if corrected := c.corrector.Correct(query); corrected != query {
		out = append(out, corrected)
	}
	out = append(out, c.corrector.SuggestAlternatives(query, c.config.MaxSuggestions-1)...)
	return dedupe(out, c.config.MaxSuggestions)
}

func similarKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return cache.Key("fallback", "similar", hex.EncodeToString(sum[:8]))
}

// SimilarQueries finds recent successful questions close to query. Results
// are memoised per query for SimilarCacheTTL.
func (c *Composer) SimilarQueries(ctx context.Context, query string) []string {
	if c.history == nil {
		return []string{}
	}
	key := similarKey(query)
	if c.store != nil {
		var cached []string
		err := cache.GetJSON(ctx, c.store, key, &cached)
		if err == nil {
			return cached
		}
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn("Similar query cache unavailable", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	since := c.clock.Now().Add(-c.config.HistoryWindow)
	entries, err := c.history.RecentSuccessful(ctx, since, c.config.MinConfidence, c.config.HistoryLimit)
	if err != nil {
		c.logger.Warn("Could not load query history", map[string]interface{}{
			"error": err.Error(),
		})
		return []string{}
	}

	// Scored case-insensitively; the logged wording is returned.
	q := textutil.Lower(query)
	seen := make(map[string]bool)
	var originals, candidates []string
	for _, e := range entries {
		lower := textutil.Lower(e.Message)
		if lower == q || seen[lower] {
			continue
		}
		seen[lower] = true
		originals = append(originals, e.Message)
		candidates = append(candidates, lower)
	}
	matches := c.engine.FindMostSimilar(q, candidates, c.config.SimilarThreshold, c.config.MaxSuggestions)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = originals[m.Index]
	}

	if c.store != nil {
		if err := cache.SetJSON(ctx, c.store, key, out, c.config.SimilarCacheTTL); err != nil {
			c.logger.Warn("Failed to cache similar queries", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return out
}

// Stats reports exchanges and failures over the history window. Failures
// are exchanges answered below FailureConfidence.
func (c *Composer) Stats(ctx context.Context) models.FallbackStats {
	days := int(c.config.HistoryWindow.Hours() / 24)
	st := models.FallbackStats{PeriodDays: days}
	if c.history == nil {
		return st
	}
	qs, err := c.history.Stats(ctx, c.clock.Now().Add(-c.config.HistoryWindow), c.config.FailureConfidence)
	if err != nil {
		c.logger.Warn("Could not get fallback stats", map[string]interface{}{
			"error": err.Error(),
		})
		return st
	}
	st.TotalQueries, st.FailedQueries = qs.Total, qs.Failed
	if qs.Total > 0 {
		st.FallbackRate = math.Round(float64(qs.Failed)/float64(qs.Total)*10000) / 100
	}
	return st
}

// Alternatives lists the actions offered next to a failed answer.
func Alternatives(intent models.IntentType) []models.FallbackAction {
	out := []models.FallbackAction{
		{
			Type:        "query_builder",
			Label:       "Build query step-by-step",
			Description: "Use the visual query builder",
			Action:      "open_query_builder",
			Icon:        "fa-magic",
		},
		{
			Type:        "help",
			Label:       "Learn query syntax",
			Description: "See examples and documentation",
			Action:      "open_help",
			URL:         "/help/chat-queries/",
			Icon:        "fa-book",
		},
	}
	if intent == models.IntentDataQuery {
		out = append(out, models.FallbackAction{
			Type:        "direct_search",
			Label:       "Use advanced search",
			Description: "Search with filters in the module",
			Action:      "open_search",
			Icon:        "fa-search",
		})
	}
	return out
}
