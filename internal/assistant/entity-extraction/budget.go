// internal/assistant/entity-extraction/budget.go
package entityextraction

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"community-assistant/internal/models"
)

const (
	units        = `million|billion|thousand|m|b|k`
	amount       = `(\d+(?:\.\d+)?)\s*(` + units + `)`
	amountNoUnit = `(\d+(?:\.\d+)?)\s*(` + units + `)?`
)

// Every form needs a unit somewhere so that "over 100 households" is not
// read as a budget.
var (
	reBudgetBelow   = regexp.MustCompile(`\b(?:under|below|less than)\s+` + amount + `\b`)
	reBudgetAbove   = regexp.MustCompile(`\b(?:over|above|more than|greater than)\s+` + amount + `\b`)
	reBudgetBetween = regexp.MustCompile(`\bbetween\s+` + amountNoUnit + `\s+and\s+` + amount + `\b`)
	reBudgetAround  = regexp.MustCompile(`\b` + amount + `\s+budget\b`)
)

// BudgetRangeResolver reads peso amounts with an explicit unit.
type BudgetRangeResolver struct{}

func (BudgetRangeResolver) Kind() models.EntityKind { return models.KindBudgetRange }

func (BudgetRangeResolver) Resolve(_ context.Context, q models.NormalizedQuery) (models.Entity, bool, error) {
	text := string(q)

	if m := reBudgetBetween.FindStringSubmatch(text); m != nil {
		hiUnit := m[4]
		loUnit := m[2]
		if loUnit == "" {
			loUnit = hiUnit
		}
		lo, err := pesos(m[1], loUnit)
		if err != nil {
			return nil, false, err
		}
		hi, err := pesos(m[3], hiUnit)
		if err != nil {
			return nil, false, err
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return models.BudgetRangeEntity{
			Min: lo, Max: hi,
			Label:      fmt.Sprintf("between %s and %s", formatPesos(lo), formatPesos(hi)),
			Confidence: ConfidenceCanonical,
		}, true, nil
	}
	if m := reBudgetBelow.FindStringSubmatch(text); m != nil {
		v, err := pesos(m[1], m[2])
		if err != nil {
			return nil, false, err
		}
		return models.BudgetRangeEntity{
			Max:        v,
			Label:      "under " + formatPesos(v),
			Confidence: ConfidenceCanonical,
		}, true, nil
	}
	if m := reBudgetAbove.FindStringSubmatch(text); m != nil {
		v, err := pesos(m[1], m[2])
		if err != nil {
			return nil, false, err
		}
		return models.BudgetRangeEntity{
			Min:        v,
			Label:      "over " + formatPesos(v),
			Confidence: ConfidenceCanonical,
		}, true, nil
	}
	if m := reBudgetAround.FindStringSubmatch(text); m != nil {
		v, err := pesos(m[1], m[2])
		if err != nil {
			return nil, false, err
		}
		return models.BudgetRangeEntity{
			Min:        v * 0.9,
			Max:        v * 1.1,
			Label:      "around " + formatPesos(v),
			Confidence: ConfidenceVariant,
		}, true, nil
	}
	return nil, false, nil
}

func pesos(num, unit string) (float64, error) {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse budget amount %q: %w", num, err)
	}
	switch unit {
	case "billion", "b":
		return v * 1e9, nil
	case "thousand", "k":
		return v * 1e3, nil
	default:
		return v * 1e6, nil
	}
}

func formatPesos(v float64) string {
	switch {
	case v >= 1e9:
		return strconv.FormatFloat(v/1e9, 'f', -1, 64) + " billion"
	case v >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', -1, 64) + " million"
	default:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
}
