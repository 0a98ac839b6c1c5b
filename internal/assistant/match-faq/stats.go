// internal/assistant/match-faq/stats.go
package matchfaq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"community-assistant/internal/common/cache"
	"community-assistant/internal/models"
)

// statComputer renders one stats key. Each computer runs its own expressions
// so a failing record type only drops its own keys.
type statComputer func(ctx context.Context, m *Matcher) (string, error)

var statComputers = map[string]statComputer{
	"total_communities":               totalCommunities,
	"top_ethnic_groups":               topBy("ethnolinguistic_group", "Top 5 ethnolinguistic groups"),
	"top_livelihoods":                 topBy("primary_livelihood", "Top 5 livelihoods"),
	"municipalities_only":             municipalitiesOnly,
	"cities_only":                     citiesOnly,
	"total_municipalities_and_cities": municipalitiesAndCities,
	"total_provinces":                 simpleCount(`Province.objects.count()`, "There are %d provinces with OBC communities in the system."),
	"total_barangays":                 simpleCount(`Barangay.objects.count()`, "There are %d barangays recorded in the system."),
	"total_workshops":                 totalWorkshops,
	"total_policies":                  simpleCount(`PolicyRecommendation.objects.count()`, "There are %d policy recommendations tracked in the system."),
	"total_partnerships":              totalPartnerships,
	"active_partnerships":             simpleCount(`Partnership.objects.filter(status="ongoing").count()`, "There are %d active partnerships."),
	"ongoing_projects":                simpleCount(`WorkItem.objects.filter(work_type="project", status="ongoing").count()`, "There are %d ongoing projects."),
}

func knownStat(key string) bool {
	_, ok := statComputers[key]
	return ok
}

func statsKey() string { return cache.Key("faq", "stats") }

// cachedStats returns the stored stats, computing them on a miss. When the
// cache itself is failing the stats are computed but not stored.
func (m *Matcher) cachedStats(ctx context.Context) map[string]string {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	if m.store == nil {
		return m.computeStats(ctx)
	}
	var stats map[string]string
	err := cache.GetJSON(ctx, m.store, statsKey(), &stats)
	if err == nil {
		return stats
	}
	if !errors.Is(err, cache.ErrMiss) {
		m.logger.Warn("FAQ stats cache unavailable, computing without storing", map[string]interface{}{
			"error": err.Error(),
		})
		return m.computeStats(ctx)
	}
	stats, _ = m.refreshLocked(ctx)
	return stats
}

// RefreshStats recomputes every stats answer and stores the result.
func (m *Matcher) RefreshStats(ctx context.Context) (map[string]string, error) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.refreshLocked(ctx)
}

func (m *Matcher) refreshLocked(ctx context.Context) (map[string]string, error) {
	stats := m.computeStats(ctx)
	if m.store == nil {
		return stats, nil
	}
	if err := cache.SetJSON(ctx, m.store, statsKey(), stats, m.config.StatsTTL); err != nil {
		m.logger.Warn("Failed to store FAQ stats", map[string]interface{}{
			"error": err.Error(),
		})
		return stats, err
	}
	m.logger.Info("FAQ stats cache updated", map[string]interface{}{
		"entries": len(stats),
	})
	return stats, nil
}

func (m *Matcher) computeStats(ctx context.Context) map[string]string {
	stats := make(map[string]string, len(statComputers))
	if m.exec == nil {
		return stats
	}
	for key, compute := range statComputers {
		text, err := compute(ctx, m)
		if err != nil {
			m.logger.Warn("FAQ stat unavailable", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}
		stats[key] = text
	}
	return stats
}

func (m *Matcher) count(ctx context.Context, expr string) (int64, error) {
	res := m.exec.Execute(ctx, expr)
	if !res.Success {
		return 0, fmt.Errorf("%s: %s", expr, res.Reason)
	}
	n, ok := res.Value.(int64)
	if !ok {
		return 0, fmt.Errorf("%s: expected a count, got %T", expr, res.Value)
	}
	return n, nil
}

func (m *Matcher) records(ctx context.Context, expr string) ([]models.Record, error) {
	res := m.exec.Execute(ctx, expr)
	if !res.Success {
		return nil, fmt.Errorf("%s: %s", expr, res.Reason)
	}
	rows, ok := res.Value.([]models.Record)
	if !ok {
		return nil, fmt.Errorf("%s: expected records, got %T", expr, res.Value)
	}
	return rows, nil
}

func simpleCount(expr, format string) statComputer {
	return func(ctx context.Context, m *Matcher) (string, error) {
		n, err := m.count(ctx, expr)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(format, n), nil
	}
}

func totalCommunities(ctx context.Context, m *Matcher) (string, error) {
	n, err := m.count(ctx, `Community.objects.count()`)
	if err != nil {
		return "", err
	}
	text := fmt.Sprintf("There are %d OBC communities registered in the system.", n)

	rows, err := m.records(ctx, `Community.objects.values("region").annotate(total=Count("id")).order_by("-total", "region")`)
	if err != nil || len(rows) == 0 {
		return text, nil
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("• %v: %v communities", r["region"], r["total"]))
	}
	return text + "\n\nBreakdown by region:\n" + strings.Join(lines, "\n"), nil
}

func topBy(field, title string) statComputer {
	expr := fmt.Sprintf(
		`Community.objects.exclude(%[1]s__isnull=True).exclude(%[1]s="").values("%[1]s").annotate(total=Count("id")).order_by("-total", "%[1]s")[:5]`,
		field)
	return func(ctx context.Context, m *Matcher) (string, error) {
		rows, err := m.records(ctx, expr)
		if err != nil {
			return "", err
		}
		if len(rows) == 0 {
			return "", fmt.Errorf("no %s values recorded", field)
		}
		lines := make([]string, len(rows))
		for i, r := range rows {
			lines[i] = fmt.Sprintf("%d. %v: %v communities", i+1, r[field], r["total"])
		}
		return title + ":\n" + strings.Join(lines, "\n"), nil
	}
}

func municipalityCounts(ctx context.Context, m *Matcher) (munis, cities int64, err error) {
	if munis, err = m.count(ctx, `Municipality.objects.filter(municipality_type="municipality").count()`); err != nil {
		return 0, 0, err
	}
	if cities, err = m.count(ctx, `Municipality.objects.exclude(municipality_type="municipality").count()`); err != nil {
		return 0, 0, err
	}
	return munis, cities, nil
}

func municipalitiesOnly(ctx context.Context, m *Matcher) (string, error) {
	munis, _, err := municipalityCounts(ctx, m)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("There are %d municipalities in the OBCMS database (excluding cities).", munis), nil
}

func citiesOnly(ctx context.Context, m *Matcher) (string, error) {
	_, cities, err := municipalityCounts(ctx, m)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("There are %d cities in the OBCMS database (excluding municipalities).", cities), nil
}

func municipalitiesAndCities(ctx context.Context, m *Matcher) (string, error) {
	total, err := m.count(ctx, `Municipality.objects.count()`)
	if err != nil {
		return "", err
	}
	munis, cities, err := municipalityCounts(ctx, m)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("There are %d municipalities and cities combined (%d municipalities + %d cities).", total, munis, cities), nil
}

func totalWorkshops(ctx context.Context, m *Matcher) (string, error) {
	year := m.clock.Now().Year()
	n, err := m.count(ctx, fmt.Sprintf(`Assessment.objects.filter(held_on__year=%d).count()`, year))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("There are %d assessments conducted in %d.", n, year), nil
}

func totalPartnerships(ctx context.Context, m *Matcher) (string, error) {
	total, err := m.count(ctx, `Partnership.objects.count()`)
	if err != nil {
		return "", err
	}
	active, err := m.count(ctx, `Partnership.objects.filter(status="ongoing").count()`)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("There are %d partnerships registered (%d active).", total, active), nil
}

// StatKeys lists every stats key in sorted order.
func StatKeys() []string {
	keys := make([]string, 0, len(statComputers))
	for k := range statComputers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
