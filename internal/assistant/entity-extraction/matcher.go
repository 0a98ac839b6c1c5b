// internal/assistant/entity-extraction/matcher.go
package entityextraction

import (
	"regexp"
	"unicode/utf8"

	"community-assistant/internal/common/textutil"
)

// termGroup maps accepted spellings onto one canonical value.
type termGroup struct {
	Canonical string
	Variants  []string
}

type compiledVariant struct {
	group     int
	variant   string
	canonical bool
	re        *regexp.Regexp
}

// phraseMatcher finds the longest word-bounded variant present in a query.
// Ties on length go to the group declared first.
type phraseMatcher struct {
	groups   []termGroup
	variants []compiledVariant
}

type phraseHit struct {
	Group     int
	Variant   string
	Canonical bool
	Pos       int
}

func newPhraseMatcher(groups []termGroup) *phraseMatcher {
	m := &phraseMatcher{groups: groups}
	for gi, g := range groups {
		canon := textutil.Normalize(g.Canonical)
		seen := make(map[string]bool)
		for _, v := range g.Variants {
			nv := textutil.Normalize(v)
			if nv == "" || seen[nv] {
				continue
			}
			seen[nv] = true
			m.variants = append(m.variants, compiledVariant{
				group:     gi,
				variant:   nv,
				canonical: nv == canon,
				re:        wordPattern(nv),
			})
		}
	}
	return m
}

func (m *phraseMatcher) best(q string) (phraseHit, bool) {
	var (
		hit   phraseHit
		found bool
	)
	for _, v := range m.variants {
		loc := v.re.FindStringSubmatchIndex(q)
		if loc == nil {
			continue
		}
		if found {
			cur, prev := utf8.RuneCountInString(v.variant), utf8.RuneCountInString(hit.Variant)
			if cur < prev || (cur == prev && v.group >= hit.Group) {
				continue
			}
		}
		hit = phraseHit{Group: v.group, Variant: v.variant, Canonical: v.canonical, Pos: loc[2]}
		found = true
	}
	return hit, found
}

func wordPattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\pL\pN'-])(` + regexp.QuoteMeta(phrase) + `)(?:$|[^\pL\pN'-])`)
}

// containsWord reports whether phrase occurs in q on word boundaries.
func containsWord(q, phrase string) bool {
	return wordPattern(phrase).MatchString(q)
}
