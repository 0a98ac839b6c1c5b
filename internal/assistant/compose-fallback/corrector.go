// internal/assistant/compose-fallback/corrector.go
package composefallback

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"community-assistant/internal/common/textutil"
)

// typos maps lower-case misspellings onto their correction. Proper nouns
// carry their canonical casing.
var typos = map[string]string{
	"comunity":       "community",
	"comunitys":      "communities",
	"comunities":     "communities",
	"comunties":      "communities",
	"communitys":     "communities",
	"communites":     "communities",
	"obcs":           "OBCs",
	"regon":          "region",
	"regeon":         "region",
	"rejoin":         "region",
	"ragion":         "region",
	"zambonga":       "Zamboanga",
	"zamboange":      "Zamboanga",
	"davoa":          "Davao",
	"cotabatu":       "Cotabato",
	"soccksargen":    "SOCCSKSARGEN",
	"soksargen":      "SOCCSKSARGEN",
	"marano":         "Meranaw",
	"maranaos":       "Meranaw",
	"meranaos":       "Meranaw",
	"maguindanao":    "Maguindanao",
	"tausugs":        "Tausug",
	"badjaos":        "Badjao",
	"workshp":        "workshop",
	"workshps":       "workshops",
	"worshop":        "workshop",
	"workship":       "workshop",
	"asessment":      "assessment",
	"assesment":      "assessment",
	"assement":       "assessment",
	"manna":          "MANA",
	"partneship":     "partnership",
	"partnerhsip":    "partnership",
	"stakholders":    "stakeholders",
	"organisaton":    "organization",
	"organizaton":    "organization",
	"recomendation":  "recommendation",
	"recomendations": "recommendations",
	"policys":        "policies",
	"policeis":       "policies",
	"projetcs":       "projects",
	"shwo":           "show",
	"sho":            "show",
	"lsit":           "list",
	"connt":          "count",
	"cout":           "count",
}

var phrases = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`(?i)\bhow many community\b`), "how many communities"},
	{regexp.MustCompile(`(?i)\bshow me community\b`), "show me communities"},
	{regexp.MustCompile(`(?i)\blist all community\b`), "list all communities"},
}

var romanByCode = map[string]string{
	"9": "IX", "10": "X", "11": "XI", "12": "XII",
	"ix": "IX", "x": "X", "xi": "XI", "xii": "XII",
}

var (
	regionCode = regexp.MustCompile(`(?i)\bregion\s+(9|10|11|12|ix|x|xi|xii)\b`)
	bareCode   = regexp.MustCompile(`(?i)\b(in|from)\s+(9|10|11|12)\b`)
	topicWords = regexp.MustCompile(`(?i)\b(region\s+(?:ix|x|xi|xii)|zamboanga|davao|cotabato|soccsksargen)\b`)
)

// Corrector fixes domain typos and normalises region references. It is
// stateless and safe for concurrent use.
type Corrector struct{}

func NewCorrector() *Corrector { return &Corrector{} }

// Correct fixes word typos, then known phrases, then region codes:
// "comunitys in regon 9" becomes "communities in Region IX".
func (c *Corrector) Correct(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		core, trail := splitTrailing(w)
		if fix, ok := typos[textutil.Lower(core)]; ok {
			words[i] = preserveCase(core, fix) + trail
		}
	}
	out := strings.Join(words, " ")

	for _, p := range phrases {
		out = p.pattern.ReplaceAllString(out, p.repl)
	}

	out = regionCode.ReplaceAllStringFunc(out, func(m string) string {
		sub := regionCode.FindStringSubmatch(m)
		return "Region " + romanByCode[textutil.Lower(sub[1])]
	})
	out = bareCode.ReplaceAllStringFunc(out, func(m string) string {
		sub := bareCode.FindStringSubmatch(m)
		return sub[1] + " Region " + romanByCode[sub[2]]
	})
	return out
}

// HasCorrections reports whether Correct changes more than letter case.
func (c *Corrector) HasCorrections(query string) bool {
	return textutil.Lower(c.Correct(query)) != textutil.Lower(query)
}

// splitTrailing separates sentence punctuation from the end of a word.
func splitTrailing(w string) (string, string) {
	end := strings.TrimRightFunc(w, func(r rune) bool {
		return unicode.IsPunct(r) && r != '-' && r != '\''
	})
	return end, w[len(end):]
}

// preserveCase applies the shape of original to a lower-case correction.
// Corrections with their own capitals are kept as written.
func preserveCase(original, fix string) string {
	if fix != textutil.Lower(fix) {
		return fix
	}
	if utf8.RuneCountInString(original) > 1 && original == textutil.Upper(original) {
		return textutil.Upper(fix)
	}
	r, _ := utf8.DecodeRuneInString(original)
	if unicode.IsUpper(r) {
		f, size := utf8.DecodeRuneInString(fix)
		return string(unicode.ToUpper(f)) + fix[size:]
	}
	return fix
}

// CorrectionConfidence is 0 when nothing changed, otherwise one minus half
// the share of changed words.
func (c *Corrector) CorrectionConfidence(original, corrected string) float64 {
	if original == corrected {
		return 0
	}
	orig := wordSet(original)
	if len(orig) == 0 {
		return 0
	}
	corr := wordSet(corrected)
	changed := 0
	for w := range orig {
		if !corr[w] {
			changed++
		}
	}
	for w := range corr {
		if !orig[w] {
			changed++
		}
	}
	conf := 1 - float64(changed)/float64(len(orig))*0.5
	if conf < 0 {
		return 0
	}
	return conf
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(textutil.Lower(s)) {
		out[w] = true
	}
	return out
}

// SuggestAlternatives returns the corrected query followed by rephrasings
// for the topic it mentions, without case-insensitive duplicates.
func (c *Corrector) SuggestAlternatives(query string, limit int) []string {
	var alts []string
	corrected := c.Correct(query)
	if corrected != query {
		alts = append(alts, corrected)
	}

	lower := textutil.Lower(corrected)
	location := topicWords.FindString(corrected)
	switch {
	case location != "" && containsAny(lower, "community", "communities", "obc", "barangay"):
		alts = append(alts,
			"How many communities are in "+location+"?",
			"Show me communities in "+location,
			"List all communities in "+location,
			"Count communities in "+location,
			"Communities located in "+location,
		)
	case location != "" && containsAny(lower, "workshop", "assessment", "mana"):
		alts = append(alts,
			"How many workshops in "+location+"?",
			"Show me MANA workshops in "+location,
			"List workshops conducted in "+location,
			"Count assessments in "+location,
		)
	case containsAny(lower, "policy", "policies", "recommendation"):
		alts = append(alts,
			"Show me all policy recommendations",
			"List approved policy recommendations",
			"How many policy recommendations?",
			"Show me draft policies",
		)
	case containsAny(lower, "partnership", "coordination", "stakeholder"):
		alts = append(alts,
			"List all partnerships",
			"Show me active partnerships",
			"How many partnerships?",
			"Count coordination partnerships",
		)
	}
	return dedupe(alts, limit)
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// dedupe drops case-insensitive repeats and caps the list at limit.
func dedupe(in []string, limit int) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(in))
	for _, s := range in {
		k := textutil.Lower(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
