// Package matchtemplate turns a classified question into a query expression.
// Catalog templates are tried in priority order against the sandbox, then
// the rule-based generator gets one shot.
package matchtemplate

import (
	"context"
	"sort"
	"strings"

	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/common/textutil"
	"community-assistant/internal/models"
)

// Executor runs a generated query expression. The sandbox satisfies it.
type Executor interface {
	Execute(ctx context.Context, expr string) models.SandboxResult
}

// Candidate is a template that passed filtering, with its ranking score.
type Candidate struct {
	Template *Template
	Score    float64
}

// Execution is the first expression that ran successfully.
type Execution struct {
	// Template is nil when the rule-based generator answered.
	Template   *Template
	Source     models.ResponseSource
	Expression string
	Result     models.SandboxResult
}

type Matcher struct {
	catalog *Catalog
	exec    Executor
	config  *Config
	logger  logger.Logger
}

func NewMatcher(catalog *Catalog, exec Executor, config *Config, log logger.Logger) *Matcher {
	if config == nil {
		config = LoadConfig()
	}
	return &Matcher{
		catalog: catalog,
		exec:    exec,
		config:  config,
		logger:  logger.ForComponent(log, "match-template"),
	}
}

func (m *Matcher) Catalog() *Catalog { return m.catalog }

// Candidates filters the catalog by intent, required entities and pattern,
// highest priority first, score second. An unknown intent accepts every
// template.
func (m *Matcher) Candidates(query string, entities models.Entities, intent models.IntentType) []Candidate {
	q := textutil.Normalize(query)
	var out []Candidate
	for _, t := range m.catalog.templates {
		if intent != models.IntentUnknown && !t.Accepts(intent) {
			continue
		}
		if len(t.Missing(entities)) > 0 {
			continue
		}
		if !t.Pattern.MatchString(q) {
			continue
		}
		out = append(out, Candidate{Template: t, Score: score(t, entities)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Template.Priority != b.Template.Priority {
			return a.Template.Priority > b.Template.Priority
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Template.ID < b.Template.ID
	})
	return out
}

// score blends the pattern hit, priority and the share of the template's
// entity kinds actually present.
func score(t *Template, entities models.Entities) float64 {
	kinds := t.bindable()
	completeness := 1.0
	if len(kinds) > 0 {
		present := 0
		for _, k := range kinds {
			if entities.Has(k) {
				present++
			}
		}
		completeness = float64(present) / float64(len(kinds))
	}
	return 0.4 + float64(t.Priority)/10*0.3 + completeness*0.3
}

// Run tries up to MaxCandidates templates, then the rule-based generator.
// The first successful execution wins; failures are logged and skipped.
func (m *Matcher) Run(ctx context.Context, query string, entities models.Entities, intent models.IntentType) (*Execution, error) {
	candidates := m.Candidates(query, entities, intent)
	if len(candidates) > m.config.MaxCandidates {
		candidates = candidates[:m.config.MaxCandidates]
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expr, err := c.Template.Generate(Bindings{Entities: entities})
		if err != nil {
			m.logger.Debug("Template generation failed", map[string]interface{}{
				"template_id": c.Template.ID,
				"error":       err.Error(),
			})
			continue
		}
		res := m.exec.Execute(ctx, expr)
		if !res.Success {
			m.logger.Warn("Template execution failed", map[string]interface{}{
				"template_id": c.Template.ID,
				"expression":  expr,
				"reason":      res.Reason,
				"layer":       res.Layer,
			})
			continue
		}
		m.logger.Info("Template matched", map[string]interface{}{
			"template_id":  c.Template.ID,
			"score":        c.Score,
			"result_count": res.ResultCount,
		})
		return &Execution{Template: c.Template, Source: models.SourceTemplate, Expression: expr, Result: res}, nil
	}

	if expr, ok := GenerateLegacy(query, entities); ok {
		res := m.exec.Execute(ctx, expr)
		if res.Success {
			m.logger.Info("Rule-based query matched", map[string]interface{}{
				"expression":   expr,
				"result_count": res.ResultCount,
			})
			return &Execution{Source: models.SourceRuleBased, Expression: expr, Result: res}, nil
		}
		m.logger.Warn("Rule-based query failed", map[string]interface{}{
			"expression": expr,
			"reason":     res.Reason,
		})
	}

	return nil, apperrors.NewNoMatchingTemplateError(query)
}

// Suggest returns template examples containing partial, optionally limited
// to one category. An empty partial returns the category's examples.
func (m *Matcher) Suggest(partial, category string, max int) []string {
	p := textutil.Normalize(partial)
	seen := make(map[string]bool)
	var out []string
	for _, t := range m.catalog.templates {
		if category != "" && t.Category != category {
			continue
		}
		for _, ex := range t.Examples {
			if seen[ex] || !strings.Contains(textutil.Normalize(ex), p) {
				continue
			}
			seen[ex] = true
			out = append(out, ex)
			if max > 0 && len(out) >= max {
				return out
			}
		}
	}
	return out
}
