// internal/assistant/request-clarification/refine.go
package requestclarification

import (
	"strings"
	"time"

	entityextraction "community-assistant/internal/assistant/entity-extraction"
	"community-assistant/internal/models"
)

type dateOption struct {
	days     int
	thisYear bool
	phrase   string
	label    string
}

var dateOptions = map[string]dateOption{
	"last_30_days":  {days: 30, phrase: "in the last 30 days", label: "last 30 days"},
	"last_3_months": {days: 90, phrase: "in the last 3 months", label: "last 3 months"},
	"this_year":     {thisYear: true, phrase: "this year", label: "this year"},
}

// Status choices map onto the canonical status vocabulary.
var statusOptions = map[string]string{
	"active":    "ongoing",
	"completed": "completed",
}

var communityTypeSuffix = map[string]string{
	"livelihood_filter": "(livelihood filter)",
	"ethnic_filter":     "(ethnic filter)",
}

// refine rewrites query and entities for one answered issue. entities is
// modified in place.
func refine(issue, choice, query string, entities models.Entities, now time.Time) string {
	if choice == OptionAll {
		return query
	}
	switch issue {
	case IssueMissingLocation:
		code := strings.ToUpper(strings.TrimPrefix(choice, "region_"))
		for _, r := range entityextraction.Regions {
			if r.Code != code {
				continue
			}
			entities[models.KindLocation] = models.LocationEntity{
				Value:        r.Official,
				LocationType: models.LocationRegion,
				Code:         r.Code,
				Confidence:   1.0,
				Validated:    true,
			}
			return query + " in " + r.Official
		}

	case IssueAmbiguousDate:
		opt, ok := dateOptions[choice]
		if !ok {
			return query
		}
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		start := today.AddDate(0, 0, -opt.days)
		if opt.thisYear {
			start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		}
		entities[models.KindDateRange] = models.DateRangeEntity{
			Start:      start,
			End:        now,
			Label:      opt.label,
			Confidence: 1.0,
		}
		return query + " " + opt.phrase

	case IssueMissingStatus:
		if status, ok := statusOptions[choice]; ok {
			entities[models.KindStatus] = models.TermEntity{
				EntityKind: models.KindStatus,
				Value:      status,
				Matched:    choice,
				Confidence: 1.0,
			}
			return choice + " " + query
		}

	case IssueAmbiguousCommunityType:
		if suffix, ok := communityTypeSuffix[choice]; ok {
			return query + " " + suffix
		}
	}
	return query
}
