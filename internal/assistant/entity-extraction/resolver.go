// Package entityextraction turns a normalized query into typed entities. Each
// resolver is independent; the Extractor runs them all and isolates failures.
package entityextraction

import (
	"context"

	"community-assistant/internal/models"
)

const (
	ConfidenceCanonical = 0.95
	ConfidenceVariant   = 0.90
)

// Resolver extracts at most one entity of its kind from a query.
type Resolver interface {
	Kind() models.EntityKind
	Resolve(ctx context.Context, q models.NormalizedQuery) (models.Entity, bool, error)
}

// DictionaryResolver matches a fixed vocabulary: the longest variant wins and
// confidence depends only on whether the canonical spelling was used.
type DictionaryResolver struct {
	kind    models.EntityKind
	matcher *phraseMatcher
}

func newDictionaryResolver(kind models.EntityKind, groups []termGroup) *DictionaryResolver {
	return &DictionaryResolver{kind: kind, matcher: newPhraseMatcher(groups)}
}

func (r *DictionaryResolver) Kind() models.EntityKind { return r.kind }

func (r *DictionaryResolver) Resolve(_ context.Context, q models.NormalizedQuery) (models.Entity, bool, error) {
	hit, ok := r.matcher.best(string(q))
	if !ok {
		return nil, false, nil
	}
	confidence := ConfidenceVariant
	if hit.Canonical {
		confidence = ConfidenceCanonical
	}
	return models.TermEntity{
		EntityKind: r.kind,
		Value:      r.matcher.groups[hit.Group].Canonical,
		Matched:    hit.Variant,
		Confidence: confidence,
	}, true, nil
}

// DictionaryResolvers builds one resolver per built-in vocabulary.
func DictionaryResolvers() []Resolver {
	out := make([]Resolver, 0, len(dictionaryResolvers))
	for _, spec := range dictionaryResolvers {
		out = append(out, newDictionaryResolver(spec.kind, spec.groups))
	}
	return out
}
