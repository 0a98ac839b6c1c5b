// internal/assistant/match-faq/catalog.go
package matchfaq

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/common/textutil"
	"community-assistant/internal/common/validation"
	"community-assistant/internal/models"
)

var (
	//go:embed faq_catalog.yaml
	catalogYAML []byte
	//go:embed faq_catalog.schema.json
	catalogSchema []byte
	//go:embed legacy_faqs.yaml
	legacyYAML []byte
	//go:embed legacy_faqs.schema.json
	legacySchema []byte
)

// PriorityRange bounds the priorities allowed in one category.
type PriorityRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// LegacyEntry is one row of the flat pattern table.
type LegacyEntry struct {
	Pattern        string   `yaml:"pattern" json:"pattern"`
	Answer         string   `yaml:"answer" json:"answer,omitempty"`
	StatsKey       string   `yaml:"stats_key" json:"statsKey,omitempty"`
	Category       string   `yaml:"category" json:"category"`
	Priority       int      `yaml:"priority" json:"priority"`
	RelatedQueries []string `yaml:"related_queries" json:"relatedQueries,omitempty"`
	Examples       []string `yaml:"examples" json:"examples,omitempty"`
}

// ID is the hit-counter key of a legacy row.
func (e LegacyEntry) ID() string { return "legacy:" + e.Pattern }

type catalogDoc struct {
	Categories map[string][]int  `yaml:"categories"`
	Entries    []models.FAQEntry `yaml:"entries"`
}

// Catalog is the immutable curated tier, sorted by descending priority, plus
// the legacy table in file order.
type Catalog struct {
	entries  []models.FAQEntry
	patterns [][]string
	byID     map[string]int
	ranges   map[string]PriorityRange
	legacy   []LegacyEntry
	legacyN  []string
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog returns the embedded catalog, parsed once.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = ParseCatalog(catalogYAML, legacyYAML)
	})
	return defaultCatalog, defaultErr
}

// ParseCatalog validates both documents against their schemas, then checks
// category priority ranges, duplicate ids and stats keys.
func ParseCatalog(curated, legacy []byte) (*Catalog, error) {
	var raw interface{}
	if err := yaml.Unmarshal(curated, &raw); err != nil {
		return nil, apperrors.NewCatalogInvalidError("faq_catalog", err.Error())
	}
	if err := validation.ValidateCatalog("faq_catalog", catalogSchema, raw); err != nil {
		return nil, err
	}
	var doc catalogDoc
	if err := yaml.Unmarshal(curated, &doc); err != nil {
		return nil, apperrors.NewCatalogInvalidError("faq_catalog", err.Error())
	}

	var rawLegacy interface{}
	if err := yaml.Unmarshal(legacy, &rawLegacy); err != nil {
		return nil, apperrors.NewCatalogInvalidError("legacy_faqs", err.Error())
	}
	if err := validation.ValidateCatalog("legacy_faqs", legacySchema, rawLegacy); err != nil {
		return nil, err
	}
	var legacyEntries []LegacyEntry
	if err := yaml.Unmarshal(legacy, &legacyEntries); err != nil {
		return nil, apperrors.NewCatalogInvalidError("legacy_faqs", err.Error())
	}

	c := &Catalog{
		byID:   make(map[string]int, len(doc.Entries)),
		ranges: make(map[string]PriorityRange, len(doc.Categories)),
		legacy: legacyEntries,
	}
	for name, r := range doc.Categories {
		if r[0] > r[1] {
			return nil, apperrors.NewCatalogInvalidError("faq_catalog", fmt.Sprintf("category %s: range [%d, %d] is inverted", name, r[0], r[1]))
		}
		c.ranges[name] = PriorityRange{Min: r[0], Max: r[1]}
	}

	seen := make(map[string]bool, len(doc.Entries))
	for _, e := range doc.Entries {
		if seen[e.ID] {
			return nil, apperrors.NewCatalogInvalidError("faq_catalog", fmt.Sprintf("duplicate id %s", e.ID))
		}
		seen[e.ID] = true

		r, ok := c.ranges[e.Category]
		if !ok {
			return nil, apperrors.NewCatalogInvalidError("faq_catalog", fmt.Sprintf("%s: unknown category %s", e.ID, e.Category))
		}
		if e.Priority < r.Min || e.Priority > r.Max {
			return nil, apperrors.NewCatalogInvalidError("faq_catalog",
				fmt.Sprintf("%s: priority %d outside %s range [%d, %d]", e.ID, e.Priority, e.Category, r.Min, r.Max))
		}
		if e.StatsKey != "" && !knownStat(e.StatsKey) {
			return nil, apperrors.NewCatalogInvalidError("faq_catalog", fmt.Sprintf("%s: unknown stats key %s", e.ID, e.StatsKey))
		}
	}
	for _, l := range legacyEntries {
		if l.StatsKey != "" && !knownStat(l.StatsKey) {
			return nil, apperrors.NewCatalogInvalidError("legacy_faqs", fmt.Sprintf("%s: unknown stats key %s", l.Pattern, l.StatsKey))
		}
	}

	c.entries = append([]models.FAQEntry(nil), doc.Entries...)
	sort.SliceStable(c.entries, func(i, j int) bool {
		return c.entries[i].Priority > c.entries[j].Priority
	})
	c.patterns = make([][]string, len(c.entries))
	for i, e := range c.entries {
		c.byID[e.ID] = i
		ps := []string{Normalize(e.PrimaryQuestion)}
		for _, v := range e.Variants {
			ps = append(ps, Normalize(v))
		}
		c.patterns[i] = ps
	}
	c.legacyN = make([]string, len(legacyEntries))
	for i, l := range legacyEntries {
		c.legacyN[i] = Normalize(l.Pattern)
	}
	return c, nil
}

// Entries returns the curated entries in matching order.
func (c *Catalog) Entries() []models.FAQEntry {
	return append([]models.FAQEntry(nil), c.entries...)
}

func (c *Catalog) Legacy() []LegacyEntry {
	return append([]LegacyEntry(nil), c.legacy...)
}

func (c *Catalog) ByID(id string) (models.FAQEntry, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.FAQEntry{}, false
	}
	return c.entries[i], true
}

// ByCategory returns a category's entries, highest priority first.
func (c *Catalog) ByCategory(category string) []models.FAQEntry {
	var out []models.FAQEntry
	for _, e := range c.entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

func (c *Catalog) Categories() map[string]PriorityRange {
	out := make(map[string]PriorityRange, len(c.ranges))
	for k, v := range c.ranges {
		out[k] = v
	}
	return out
}

// PatternCount is the number of curated patterns, primaries included.
func (c *Catalog) PatternCount() int {
	n := 0
	for _, ps := range c.patterns {
		n += len(ps)
	}
	return n
}

// Normalize lower-cases, drops ?!.,;: and collapses whitespace.
func Normalize(s string) string {
	return textutil.StripPunctuation(textutil.Lower(s))
}
