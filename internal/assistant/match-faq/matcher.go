// Package matchfaq answers common questions from a curated catalog before the
// query pipeline runs. Curated entries are tried in priority order, then the
// legacy pattern table.
//
// An exact hit is containment either way between the normalised query and a
// pattern, so a short query inside a long pattern still answers. Containment
// is checked on whole words: "obcms" hits "what is obcms" but "act" does not
// hit "contact support". Plain substring containment would accept both.
package matchfaq

import (
	"context"
	"strings"
	"sync"

	"community-assistant/internal/assistant/similarity"
	"community-assistant/internal/common/cache"
	"community-assistant/internal/common/clock"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/common/metrics"
	"community-assistant/internal/models"
)

const (
	TierCuratedExact = "curated_exact"
	TierCuratedFuzzy = "curated_fuzzy"
	TierLegacyExact  = "legacy_exact"
	TierLegacyFuzzy  = "legacy_fuzzy"
)

// Executor runs a generated query expression. The sandbox satisfies it.
type Executor interface {
	Execute(ctx context.Context, expr string) models.SandboxResult
}

type Matcher struct {
	catalog *Catalog
	engine  *similarity.Engine
	exec    Executor
	store   cache.Store
	clock   clock.Clock
	config  *Config
	logger  logger.Logger

	statsMu sync.Mutex
}

// NewMatcher wires a matcher. store may be nil, in which case stats are
// computed on every stats-backed hit and hits are not counted.
func NewMatcher(catalog *Catalog, engine *similarity.Engine, exec Executor, store cache.Store, clk clock.Clock, config *Config, log logger.Logger) *Matcher {
	if config == nil {
		config = LoadConfig()
	}
	if engine == nil {
		engine = similarity.NewEngine(0)
	}
	return &Matcher{
		catalog: catalog,
		engine:  engine,
		exec:    exec,
		store:   store,
		clock:   clock.OrSystem(clk),
		config:  config,
		logger:  logger.ForComponent(log, "match-faq"),
	}
}

func (m *Matcher) Catalog() *Catalog { return m.catalog }

type candidate struct {
	id       string
	pattern  string
	category string
	priority int
	score    float64
	answer   string
	related  []string
	examples []string
}

// Match returns the first acceptable FAQ answer for message.
func (m *Matcher) Match(ctx context.Context, message string) (*models.FAQMatch, bool) {
	q := Normalize(message)
	if q == "" {
		return nil, false
	}

	var stats map[string]string
	resolve := func(response, statsKey string) string {
		if response != "" {
			return response
		}
		if stats == nil {
			stats = m.cachedStats(ctx)
		}
		return stats[statsKey]
	}

	// Curated exact.
	for i, e := range m.catalog.entries {
		for _, p := range m.catalog.patterns[i] {
			if !containsEither(q, p) {
				continue
			}
			answer := resolve(e.Response, e.StatsKey)
			if answer == "" {
				break
			}
			return m.hit(ctx, curatedCandidate(e, p, 1.0, answer), TierCuratedExact), true
		}
	}

	// Curated fuzzy: best priority, then best score.
	var best *candidate
	for i, e := range m.catalog.entries {
		threshold := m.config.FuzzyThreshold
		if e.Priority >= m.config.CriticalPriority {
			threshold -= m.config.CriticalLeniency
		}
		score, pattern := 0.0, ""
		for _, p := range m.catalog.patterns[i] {
			if s := m.engine.Similarity(q, p); s > score {
				score, pattern = s, p
			}
		}
		if score < threshold {
			continue
		}
		if best != nil && (e.Priority < best.priority || (e.Priority == best.priority && score <= best.score)) {
			continue
		}
		answer := resolve(e.Response, e.StatsKey)
		if answer == "" {
			continue
		}
		c := curatedCandidate(e, pattern, score, answer)
		best = &c
	}
	if best != nil {
		return m.hit(ctx, *best, TierCuratedFuzzy), true
	}

	// Legacy exact.
	for i, l := range m.catalog.legacy {
		p := m.catalog.legacyN[i]
		if !containsEither(q, p) {
			continue
		}
		answer := resolve(l.Answer, l.StatsKey)
		if answer == "" {
			continue
		}
		return m.hit(ctx, legacyCandidate(l, p, 1.0, answer), TierLegacyExact), true
	}

	// Legacy fuzzy: best score, first in table order on ties.
	best = nil
	for i, l := range m.catalog.legacy {
		p := m.catalog.legacyN[i]
		score := m.engine.Similarity(q, p)
		if score < m.config.LegacyThreshold || (best != nil && score <= best.score) {
			continue
		}
		answer := resolve(l.Answer, l.StatsKey)
		if answer == "" {
			continue
		}
		c := legacyCandidate(l, p, score, answer)
		best = &c
	}
	if best != nil {
		return m.hit(ctx, *best, TierLegacyFuzzy), true
	}

	m.logger.Debug("FAQ miss", map[string]interface{}{"query": q})
	return nil, false
}

func curatedCandidate(e models.FAQEntry, pattern string, score float64, answer string) candidate {
	return candidate{
		id:       e.ID,
		pattern:  pattern,
		category: e.Category,
		priority: e.Priority,
		score:    score,
		answer:   answer,
		related:  e.RelatedQueries,
		examples: e.Examples,
	}
}

func legacyCandidate(l LegacyEntry, pattern string, score float64, answer string) candidate {
	return candidate{
		id:       l.ID(),
		pattern:  pattern,
		category: l.Category,
		priority: l.Priority,
		score:    score,
		answer:   answer,
		related:  l.RelatedQueries,
		examples: l.Examples,
	}
}

func (m *Matcher) hit(ctx context.Context, c candidate, tier string) *models.FAQMatch {
	metrics.FAQHits.WithLabelValues(tier).Inc()
	m.trackHit(ctx, c.id)
	m.logger.Info("FAQ hit", map[string]interface{}{
		"entry_id":   c.id,
		"tier":       tier,
		"confidence": c.score,
	})
	return &models.FAQMatch{
		EntryID:        c.id,
		Pattern:        c.pattern,
		Category:       c.category,
		Tier:           tier,
		Answer:         c.answer,
		Confidence:     c.score,
		RelatedQueries: c.related,
		Examples:       c.examples,
	}
}

func hitsKey() string { return cache.Key("faq", "hits") }

func (m *Matcher) trackHit(ctx context.Context, id string) {
	if m.store == nil {
		return
	}
	if _, err := m.store.IncrField(ctx, hitsKey(), id, m.config.HitsTTL); err != nil {
		m.logger.Warn("Failed to track FAQ hit", map[string]interface{}{
			"entry_id": id,
			"error":    err.Error(),
		})
	}
}

// containsEither reports whether a contains b or b contains a on word
// boundaries. A one-word query inside a long pattern counts.
func containsEither(a, b string) bool {
	pa, pb := " "+a+" ", " "+b+" "
	return strings.Contains(pa, pb) || strings.Contains(pb, pa)
}
