// internal/assistant/match-template/catalog.go
package matchtemplate

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/common/validation"
	"community-assistant/internal/models"
	"community-assistant/pkg/registry"
)

var (
	//go:embed templates.yaml
	templatesYAML []byte
	//go:embed templates.schema.json
	templatesSchema []byte
)

// Operations a template can perform.
const (
	OpCount     = "count"
	OpList      = "list"
	OpSum       = "sum"
	OpAvg       = "avg"
	OpMax       = "max"
	OpBreakdown = "breakdown"
	OpTop       = "top"
)

// templateSpec is one catalog row as written in templates.yaml.
type templateSpec struct {
	ID          string                 `yaml:"id"`
	Category    string                 `yaml:"category"`
	Priority    int                    `yaml:"priority"`
	Intents     []string               `yaml:"intents"`
	Pattern     string                 `yaml:"pattern"`
	Record      string                 `yaml:"record"`
	Operation   string                 `yaml:"operation"`
	Field       string                 `yaml:"field"`
	Required    []string               `yaml:"required"`
	Optional    []string               `yaml:"optional"`
	AnyOf       []string               `yaml:"any_of"`
	DateField   string                 `yaml:"date_field"`
	OrderBy     string                 `yaml:"order_by"`
	Fields      []string               `yaml:"fields"`
	Limit       int                    `yaml:"limit"`
	Filters     map[string]interface{} `yaml:"filters"`
	ResultType  string                 `yaml:"result_type"`
	Description string                 `yaml:"description"`
	Examples    []string               `yaml:"examples"`
}

// Bindings are the values a generator may place into an expression.
type Bindings struct {
	Entities models.Entities
}

// Template maps an intent and entity combination onto one query expression.
type Template struct {
	ID               string
	Category         string
	Priority         int
	Intents          []models.IntentType
	RequiredEntities []models.EntityKind
	OptionalEntities []models.EntityKind
	// AnyOf, when set, needs at least one of its kinds present.
	AnyOf       []models.EntityKind
	Pattern     *regexp.Regexp
	Generate    func(b Bindings) (string, error)
	ResultType  models.ResultType
	RecordType  string
	Operation   string
	Description string
	Examples    []string
}

// Catalog is the immutable template set, highest priority first.
type Catalog struct {
	templates []*Template
	byID      map[string]*Template
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog parses the embedded templates against the default registry.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		reg, err := registry.Default()
		if err != nil {
			defaultErr = err
			return
		}
		defaultCatalog, defaultErr = ParseCatalog(templatesYAML, reg)
	})
	return defaultCatalog, defaultErr
}

// ParseCatalog validates data against the template schema and every field
// reference against reg, then compiles patterns and generators.
func ParseCatalog(data []byte, reg *registry.RecordRegistry) (*Catalog, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.NewCatalogInvalidError("templates", err.Error())
	}
	if err := validation.ValidateCatalog("templates", templatesSchema, raw); err != nil {
		return nil, err
	}
	var specs []templateSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, apperrors.NewCatalogInvalidError("templates", err.Error())
	}

	c := &Catalog{byID: make(map[string]*Template, len(specs))}
	for _, s := range specs {
		if _, dup := c.byID[s.ID]; dup {
			return nil, apperrors.NewCatalogInvalidError("templates", fmt.Sprintf("duplicate id %s", s.ID))
		}
		t, err := compileTemplate(s, reg)
		if err != nil {
			return nil, apperrors.NewCatalogInvalidError("templates", fmt.Sprintf("%s: %v", s.ID, err))
		}
		c.templates = append(c.templates, t)
		c.byID[t.ID] = t
	}
	sort.SliceStable(c.templates, func(i, j int) bool {
		return c.templates[i].Priority > c.templates[j].Priority
	})
	return c, nil
}

func compileTemplate(s templateSpec, reg *registry.RecordRegistry) (*Template, error) {
	rt, ok := reg.Lookup(s.Record)
	if !ok {
		return nil, fmt.Errorf("unknown record type %s", s.Record)
	}
	pattern, err := regexp.Compile(s.Pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}

	g := &generator{
		record:    rt,
		operation: s.Operation,
		field:     s.Field,
		dateField: s.DateField,
		orderBy:   s.OrderBy,
		fields:    s.Fields,
		limit:     s.Limit,
		filters:   s.Filters,
	}
	if g.dateField == "" {
		if f, ok := rt.Field(rt.DefaultSort); ok && f.Type == registry.FieldDate {
			g.dateField = f.Name
		}
	}
	if err := g.check(); err != nil {
		return nil, err
	}

	t := &Template{
		ID:          s.ID,
		Category:    s.Category,
		Priority:    s.Priority,
		Pattern:     pattern,
		ResultType:  models.ResultType(s.ResultType),
		RecordType:  rt.Name,
		Operation:   s.Operation,
		Description: s.Description,
		Examples:    s.Examples,
	}
	for _, in := range s.Intents {
		t.Intents = append(t.Intents, models.IntentType(in))
	}
	for _, set := range []struct {
		names []string
		dst   *[]models.EntityKind
	}{
		{s.Required, &t.RequiredEntities},
		{s.Optional, &t.OptionalEntities},
		{s.AnyOf, &t.AnyOf},
	} {
		for _, name := range set.names {
			kind := models.EntityKind(name)
			if err := g.canBind(kind); err != nil {
				return nil, err
			}
			*set.dst = append(*set.dst, kind)
		}
	}
	g.kinds = t.bindable()
	t.Generate = g.generate
	return t, nil
}

// bindable lists the kinds a generator reads, required first, without
// duplicates.
func (t *Template) bindable() []models.EntityKind {
	seen := make(map[models.EntityKind]bool)
	var out []models.EntityKind
	for _, set := range [][]models.EntityKind{t.RequiredEntities, t.AnyOf, t.OptionalEntities} {
		for _, k := range set {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// Accepts reports whether the template serves intent.
func (t *Template) Accepts(intent models.IntentType) bool {
	for _, i := range t.Intents {
		if i == intent {
			return true
		}
	}
	return false
}

// Missing lists required kinds absent from entities. An unmet AnyOf is
// reported as its kinds joined with "|".
func (t *Template) Missing(entities models.Entities) []string {
	var out []string
	for _, k := range t.RequiredEntities {
		if !entities.Has(k) {
			out = append(out, string(k))
		}
	}
	if len(t.AnyOf) > 0 {
		found := false
		names := make([]string, len(t.AnyOf))
		for i, k := range t.AnyOf {
			names[i] = string(k)
			found = found || entities.Has(k)
		}
		if !found {
			out = append(out, strings.Join(names, "|"))
		}
	}
	return out
}

// Templates returns the catalog in priority order.
func (c *Catalog) Templates() []*Template {
	return append([]*Template(nil), c.templates...)
}

func (c *Catalog) ByID(id string) (*Template, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// ByCategory returns a category's templates, highest priority first.
func (c *Catalog) ByCategory(category string) []*Template {
	var out []*Template
	for _, t := range c.templates {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range c.templates {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	sort.Strings(out)
	return out
}
