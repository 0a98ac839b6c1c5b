// internal/assistant/match-template/legacy.go
package matchtemplate

import (
	"fmt"
	"regexp"
	"strings"

	"community-assistant/internal/common/textutil"
	"community-assistant/internal/models"
)

// knownLocations are matched as substrings. Longer names come first so
// "zamboanga del sur" wins over "zamboanga".
var knownLocations = []string{
	"zamboanga del sur", "zamboanga del norte", "zamboanga sibugay",
	"cagayan de oro", "sultan kudarat", "general santos",
	"zamboanga", "davao", "cotabato", "lanao", "bukidnon", "iligan", "marawi", "sarangani",
}

var placePhrase = regexp.MustCompile(`\b(?:in|at|from)\s+([a-z][a-z]+(?:\s+[a-z][a-z]+){0,3})`)

// stopPlaces are words "in ..." phrases commonly capture that are not places.
var stopPlaces = map[string]bool{
	"the": true, "total": true, "all": true, "each": true, "every": true, "region": true,
}

func hasAny(q string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// GenerateLegacy is the single-shot keyword generator tried after every
// template failed. It only answers count and list questions.
func GenerateLegacy(query string, entities models.Entities) (string, bool) {
	q := textutil.Normalize(query)
	communities := hasAny(q, "communit", "barangay", "obc")

	switch {
	case hasAny(q, "how many", "count"):
		switch {
		case communities:
			return "Community.objects" + communityFilter(q, entities) + ".count()", true
		case hasAny(q, "workshop", "assessment"):
			return "Assessment.objects.all().count()", true
		case hasAny(q, "polic"):
			return "PolicyRecommendation.objects.all().count()", true
		case hasAny(q, "project", "ppa"):
			return "WorkItem.objects.all().count()", true
		}
	case hasAny(q, "list", "show", "tell me about", "about"):
		if communities {
			return fmt.Sprintf(`Community.objects%s.order_by("name").values("name", "municipality", "province", "region")[:%d]`,
				communityFilter(q, entities), DefaultLimit), true
		}
	}
	return "", false
}

func communityFilter(q string, entities models.Entities) string {
	if loc, ok := entities.Location(); ok && loc.LocationType == models.LocationRegion {
		return fmt.Sprintf(".filter(region__iexact=%s)", quote(loc.Value))
	}
	place := ""
	if loc, ok := entities.Location(); ok {
		place = loc.Value
	} else {
		place = extractPlace(q)
	}
	if place == "" {
		return ".all()"
	}
	p := quote(place)
	return fmt.Sprintf(".filter(Q(municipality__icontains=%s) | Q(province__icontains=%s))", p, p)
}

// extractPlace finds a place name in normalized text, preferring known
// provinces and cities over an "in <words>" phrase.
func extractPlace(q string) string {
	for _, l := range knownLocations {
		if strings.Contains(q, l) {
			return textutil.Title(l)
		}
	}
	m := placePhrase.FindStringSubmatch(q)
	if m == nil {
		return ""
	}
	words := strings.Fields(m[1])
	for len(words) > 0 && (words[len(words)-1] == "city" || words[len(words)-1] == "province") {
		words = words[:len(words)-1]
	}
	if len(words) == 0 || stopPlaces[words[0]] {
		return ""
	}
	place := strings.Join(words, " ")
	if len(place) <= 3 {
		return ""
	}
	return textutil.Title(place)
}
