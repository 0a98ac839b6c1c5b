package models

// FAQEntry is one curated question. Priority runs 5 (low) to 20 (critical).
type FAQEntry struct {
	ID              string   `json:"id" yaml:"id"`
	Category        string   `json:"category" yaml:"category"`
	Priority        int      `json:"priority" yaml:"priority"`
	PrimaryQuestion string   `json:"primaryQuestion" yaml:"primary_question"`
	Variants        []string `json:"variants" yaml:"variants"`
	Response        string   `json:"response,omitempty" yaml:"response"`
	StatsKey        string   `json:"statsKey,omitempty" yaml:"stats_key"`
	RelatedQueries  []string `json:"relatedQueries,omitempty" yaml:"related_queries"`
	Examples        []string `json:"examples,omitempty" yaml:"examples"`
}

// FAQMatch is a successful FAQ lookup.
type FAQMatch struct {
	EntryID        string   `json:"entryId"`
	Pattern        string   `json:"pattern"`
	Category       string   `json:"category"`
	Tier           string   `json:"tier"`
	Answer         string   `json:"answer"`
	Confidence     float64  `json:"confidence"`
	RelatedQueries []string `json:"relatedQueries,omitempty"`
	Examples       []string `json:"examples,omitempty"`
}

type FAQPopularity struct {
	EntryID  string `json:"entryId"`
	Question string `json:"question"`
	Category string `json:"category"`
	Hits     int64  `json:"hits"`
}

// FAQStats summarises the catalog and its hit counters.
type FAQStats struct {
	TotalFAQs      int             `json:"totalFaqs"`
	TotalPatterns  int             `json:"totalPatterns"`
	LegacyPatterns int             `json:"legacyPatterns"`
	ByCategory     map[string]int  `json:"byCategory"`
	TotalHits      int64           `json:"totalHits"`
	FAQsWithHits   int             `json:"faqsWithHits"`
	HitRate        float64         `json:"hitRate"`
	Popular        []FAQPopularity `json:"popular"`
}
