// internal/assistant/entity-extraction/numbers.go
package entityextraction

import (
	"context"
	"regexp"
	"strconv"

	"community-assistant/internal/models"
)

var writtenNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"hundred": 100,
}

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5, "sixth": 6,
	"seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5, "6th": 6, "7th": 7, "8th": 8, "9th": 9, "10th": 10,
}

var (
	reDigits = regexp.MustCompile(`\b\d+\b`)
	reWords  = regexp.MustCompile(`\b[a-z0-9]+\b`)
)

// NumbersResolver collects every number mentioned, in order of appearance
// and without duplicates. Confidence drops to 0.95 once a written or ordinal
// form contributes.
type NumbersResolver struct{}

func (NumbersResolver) Kind() models.EntityKind { return models.KindNumbers }

func (NumbersResolver) Resolve(_ context.Context, q models.NormalizedQuery) (models.Entity, bool, error) {
	text := string(q)
	seen := make(map[int]bool)
	var out []int
	confidence := 1.0

	add := func(n int, c float64) {
		if seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
		if c < confidence {
			confidence = c
		}
	}

	for _, loc := range reDigits.FindAllStringIndex(text, -1) {
		// skip the integer halves of decimals such as 1.5
		if (loc[0] > 0 && text[loc[0]-1] == '.') || (loc[1] < len(text) && text[loc[1]] == '.') {
			continue
		}
		if n, err := strconv.Atoi(text[loc[0]:loc[1]]); err == nil {
			add(n, 1.0)
		}
	}
	for _, w := range reWords.FindAllString(text, -1) {
		if n, ok := writtenNumbers[w]; ok {
			add(n, ConfidenceCanonical)
		} else if n, ok := ordinals[w]; ok {
			add(n, ConfidenceCanonical)
		}
	}

	if len(out) == 0 {
		return nil, false, nil
	}
	return models.NumbersEntity{Numbers: out, Confidence: confidence}, true, nil
}
