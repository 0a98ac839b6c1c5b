// internal/assistant/entity-extraction/daterange.go
package entityextraction

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"community-assistant/internal/common/clock"
	"community-assistant/internal/models"
)

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

const monthAlt = `january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec`

var (
	reLastN     = regexp.MustCompile(`\b(?:last|past|previous)\s+(\d+)\s+(day|days|week|weeks|month|months)\b`)
	reThisYear  = regexp.MustCompile(`\b(?:this|current)\s+year\b`)
	reLastYear  = regexp.MustCompile(`\blast\s+year\b`)
	reRecent    = regexp.MustCompile(`\b(?:recent|recently|latest|current)\b`)
	reFromTo    = regexp.MustCompile(`\bfrom\s+(` + monthAlt + `)\s+to\s+(` + monthAlt + `)(?:\s+(\d{4}))?\b`)
	reMonthYear = regexp.MustCompile(`\b(` + monthAlt + `)\s+(\d{4})\b`)
	reBareYear  = regexp.MustCompile(`\b(20\d{2})\b`)
)

// DateRangeResolver turns relative and absolute date phrases into bounds
// computed from one clock, so a request sees a single "now".
type DateRangeResolver struct {
	clock clock.Clock
}

func NewDateRangeResolver(c clock.Clock) *DateRangeResolver {
	return &DateRangeResolver{clock: clock.OrSystem(c)}
}

func (r *DateRangeResolver) Kind() models.EntityKind { return models.KindDateRange }

func (r *DateRangeResolver) Resolve(_ context.Context, q models.NormalizedQuery) (models.Entity, bool, error) {
	text := string(q)
	now := r.clock.Now()
	today := truncateDay(now)

	if m := reLastN.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, false, fmt.Errorf("parse relative amount %q: %w", m[1], err)
		}
		days := n
		switch {
		case strings.HasPrefix(m[2], "week"):
			days = n * 7
		case strings.HasPrefix(m[2], "month"):
			days = n * 30
		}
		return models.DateRangeEntity{
			Start:      today.AddDate(0, 0, -days),
			End:        now,
			Label:      fmt.Sprintf("last %d %s", n, m[2]),
			Confidence: 1.0,
		}, true, nil
	}
	if reThisYear.MatchString(text) {
		return models.DateRangeEntity{
			Start:      time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()),
			End:        now,
			Label:      "this year",
			Confidence: 1.0,
		}, true, nil
	}
	if reLastYear.MatchString(text) {
		y := now.Year() - 1
		return models.DateRangeEntity{
			Start:      time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location()),
			End:        time.Date(y, time.December, 31, 23, 59, 59, 0, now.Location()),
			Label:      "last year",
			Confidence: 1.0,
		}, true, nil
	}
	if reRecent.MatchString(text) {
		return models.DateRangeEntity{
			Start:      today.AddDate(0, 0, -30),
			End:        now,
			Label:      "recent",
			Confidence: 0.85,
		}, true, nil
	}
	if m := reFromTo.FindStringSubmatch(text); m != nil {
		year := now.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		from, to := months[m[1]], months[m[2]]
		start := time.Date(year, from, 1, 0, 0, 0, 0, now.Location())
		end := endOfMonth(year, to, now.Location())
		if to < from {
			end = endOfMonth(year+1, to, now.Location())
		}
		return models.DateRangeEntity{
			Start:      start,
			End:        end,
			Label:      fmt.Sprintf("%s to %s %d", from, to, year),
			Confidence: ConfidenceCanonical,
		}, true, nil
	}
	if m := reMonthYear.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[2])
		month := months[m[1]]
		return models.DateRangeEntity{
			Start:      time.Date(year, month, 1, 0, 0, 0, 0, now.Location()),
			End:        endOfMonth(year, month, now.Location()),
			Label:      fmt.Sprintf("%s %d", month, year),
			Confidence: ConfidenceCanonical,
		}, true, nil
	}
	if m := reBareYear.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		return models.DateRangeEntity{
			Start:      time.Date(year, time.January, 1, 0, 0, 0, 0, now.Location()),
			End:        time.Date(year, time.December, 31, 23, 59, 59, 0, now.Location()),
			Label:      m[1],
			Confidence: ConfidenceVariant,
		}, true, nil
	}
	return nil, false, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfMonth(year int, m time.Month, loc *time.Location) time.Time {
	return time.Date(year, m+1, 1, 0, 0, 0, 0, loc).Add(-time.Second)
}
