// internal/assistant/entity-extraction/extractor.go
package entityextraction

import (
	"context"
	"fmt"
	"strings"

	"community-assistant/internal/common/clock"
	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/common/textutil"
	"community-assistant/internal/models"
)

// Normalize derives the query form every resolver matches against.
func Normalize(message string) models.NormalizedQuery {
	return models.NormalizedQuery(textutil.Normalize(message))
}

// Extractor runs every resolver on a query. One resolver failing, by error or
// panic, never prevents the others from contributing.
type Extractor struct {
	resolvers []Resolver
	logger    logger.Logger
}

// NewExtractor wires the built-in resolvers. directory may be nil.
func NewExtractor(directory LocationDirectory, c clock.Clock, log logger.Logger) *Extractor {
	resolvers := []Resolver{
		NewLocationResolver(directory),
		NewDateRangeResolver(c),
		NumbersResolver{},
		BudgetRangeResolver{},
	}
	resolvers = append(resolvers, DictionaryResolvers()...)
	return NewExtractorWith(log, resolvers...)
}

// NewExtractorWith builds an extractor over an explicit resolver set.
func NewExtractorWith(log logger.Logger, resolvers ...Resolver) *Extractor {
	return &Extractor{
		resolvers: resolvers,
		logger:    logger.ForComponent(log, "entity-extraction"),
	}
}

// Extract returns at most one entity per kind. Later resolvers of the same
// kind do not overwrite earlier ones.
func (e *Extractor) Extract(ctx context.Context, q models.NormalizedQuery) models.Entities {
	out := make(models.Entities)
	for _, r := range e.resolvers {
		if _, taken := out[r.Kind()]; taken {
			continue
		}
		entity, ok, err := e.safeResolve(ctx, r, q)
		if err != nil {
			e.logger.Warn("Resolver failed", map[string]interface{}{
				"resolver": string(r.Kind()),
				"error":    apperrors.NewResolverFailureError(string(r.Kind()), err),
			})
			continue
		}
		if ok && entity != nil {
			out[r.Kind()] = entity
		}
	}

	e.logger.Debug("Entities extracted", map[string]interface{}{
		"query": string(q),
		"kinds": out.Kinds(),
	})
	return out
}

func (e *Extractor) safeResolve(ctx context.Context, r Resolver, q models.NormalizedQuery) (entity models.Entity, ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			entity, ok, err = nil, false, fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.Resolve(ctx, q)
}

// Summary renders entities as "Found: kind: value, ..." in kind order.
func Summary(entities models.Entities) string {
	if len(entities) == 0 {
		return "No entities detected"
	}
	parts := make([]string, 0, len(entities))
	for _, kind := range entities.Kinds() {
		label := strings.ReplaceAll(kind, "_", " ")
		parts = append(parts, fmt.Sprintf("%s: %s", label, entities[models.EntityKind(kind)].Text()))
	}
	return "Found: " + strings.Join(parts, ", ")
}

// Validate lists problems that make an entity bag unreliable: a weak
// location, an inverted date range, or any very low confidence.
func Validate(entities models.Entities) []string {
	var problems []string
	if loc, ok := entities.Location(); ok && loc.Confidence < 0.5 {
		problems = append(problems, fmt.Sprintf("Low confidence location: %s", loc.Value))
	}
	if dr, ok := entities.DateRange(); ok && dr.Start.After(dr.End) {
		problems = append(problems, "Invalid date range: start date after end date")
	}
	for _, kind := range entities.Kinds() {
		if e := entities[models.EntityKind(kind)]; e.Score() < 0.3 {
			problems = append(problems, fmt.Sprintf("Very low confidence for %s", kind))
		}
	}
	return problems
}
