// internal/assistant/match-faq/analytics.go
package matchfaq

import (
	"context"
	"sort"
	"strings"

	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/models"
)

// PopularFAQs returns the most hit entries in the current window, most hits
// first. Counters for entries no longer in the catalog are skipped.
func (m *Matcher) PopularFAQs(ctx context.Context, limit int) ([]models.FAQPopularity, error) {
	hits, err := m.hits(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.FAQPopularity, 0, len(hits))
	for id, n := range hits {
		if p, ok := m.describe(id); ok && n > 0 {
			p.Hits = n
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hits != out[j].Hits {
			return out[i].Hits > out[j].Hits
		}
		return out[i].EntryID < out[j].EntryID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats summarises catalog size and hit counters.
func (m *Matcher) Stats(ctx context.Context) (models.FAQStats, error) {
	stats := models.FAQStats{
		TotalFAQs:      len(m.catalog.entries),
		TotalPatterns:  m.catalog.PatternCount(),
		LegacyPatterns: len(m.catalog.legacy),
		ByCategory:     make(map[string]int),
	}
	for _, e := range m.catalog.entries {
		stats.ByCategory[e.Category]++
	}

	popular, err := m.PopularFAQs(ctx, 0)
	if err != nil {
		return stats, err
	}
	for _, p := range popular {
		stats.TotalHits += p.Hits
		if !strings.HasPrefix(p.EntryID, "legacy:") {
			stats.FAQsWithHits++
		}
	}
	if stats.TotalFAQs > 0 {
		stats.HitRate = float64(stats.FAQsWithHits) / float64(stats.TotalFAQs)
	}
	if len(popular) > 10 {
		popular = popular[:10]
	}
	stats.Popular = popular
	return stats, nil
}

func (m *Matcher) hits(ctx context.Context) (map[string]int64, error) {
	if m.store == nil {
		return map[string]int64{}, nil
	}
	fields, err := m.store.Fields(ctx, hitsKey())
	if err != nil {
		return nil, apperrors.NewCacheUnavailableError("faq hits", err)
	}
	return fields, nil
}

func (m *Matcher) describe(id string) (models.FAQPopularity, bool) {
	if e, ok := m.catalog.ByID(id); ok {
		return models.FAQPopularity{EntryID: id, Question: e.PrimaryQuestion, Category: e.Category}, true
	}
	for _, l := range m.catalog.legacy {
		if l.ID() == id {
			return models.FAQPopularity{EntryID: id, Question: l.Pattern, Category: l.Category}, true
		}
	}
	return models.FAQPopularity{}, false
}
