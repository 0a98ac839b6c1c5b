// internal/assistant/match-template/generate.go
package matchtemplate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"community-assistant/internal/models"
	"community-assistant/pkg/registry"
)

// Row limits for list and top operations.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// termFields maps vocabulary entity kinds onto the record field they filter.
var termFields = map[models.EntityKind]string{
	models.KindEthnicGroup:     "ethnolinguistic_group",
	models.KindLivelihood:      "primary_livelihood",
	models.KindStatus:          "status",
	models.KindSector:          "sector",
	models.KindMinistry:        "ministry",
	models.KindPriorityLevel:   "priority",
	models.KindAssessmentType:  "assessment_type",
	models.KindPartnershipType: "partnership_type",
}

// filterOrder fixes the position of each kind's filters in the expression.
var filterOrder = []models.EntityKind{
	models.KindLocation,
	models.KindEthnicGroup,
	models.KindLivelihood,
	models.KindStatus,
	models.KindSector,
	models.KindMinistry,
	models.KindPriorityLevel,
	models.KindAssessmentType,
	models.KindPartnershipType,
	models.KindBudgetRange,
	models.KindDateRange,
}

type generator struct {
	record    *registry.RecordType
	operation string
	field     string
	dateField string
	orderBy   string
	fields    []string
	limit     int
	filters   map[string]interface{}
	kinds     []models.EntityKind
}

// check verifies every field the template names against the record type.
func (g *generator) check() error {
	switch g.operation {
	case OpSum, OpAvg, OpMax:
		f, ok := g.record.Field(g.field)
		if !ok {
			return fmt.Errorf("%s has no field %s", g.record.Name, g.field)
		}
		if f.Type != registry.FieldInteger && f.Type != registry.FieldNumber {
			return fmt.Errorf("%s.%s is not numeric", g.record.Name, g.field)
		}
	case OpBreakdown, OpTop:
		if _, ok := g.record.Field(g.field); !ok {
			return fmt.Errorf("%s has no field %s", g.record.Name, g.field)
		}
	}
	if g.orderBy != "" {
		if _, ok := g.record.Field(strings.TrimPrefix(g.orderBy, "-")); !ok {
			return fmt.Errorf("%s has no order field %s", g.record.Name, g.orderBy)
		}
	}
	for _, name := range g.fields {
		if _, ok := g.record.Field(name); !ok {
			return fmt.Errorf("%s has no field %s", g.record.Name, name)
		}
	}
	if g.dateField != "" {
		f, ok := g.record.Field(g.dateField)
		if !ok || f.Type != registry.FieldDate {
			return fmt.Errorf("%s.%s is not a date field", g.record.Name, g.dateField)
		}
	}
	for name, v := range g.filters {
		f, ok := g.record.Field(name)
		if !ok {
			return fmt.Errorf("%s has no filter field %s", g.record.Name, name)
		}
		if _, err := literal(f, v); err != nil {
			return err
		}
	}
	return nil
}

// canBind reports whether an entity kind maps onto a field of the record.
func (g *generator) canBind(kind models.EntityKind) error {
	var field string
	switch kind {
	case models.KindLocation:
		field = "region"
	case models.KindBudgetRange:
		field = "budget"
	case models.KindDateRange:
		field = g.dateField
	case models.KindNumbers:
		if g.operation != OpList && g.operation != OpTop {
			return fmt.Errorf("numbers bind only to list and top operations")
		}
		return nil
	default:
		field = termFields[kind]
	}
	if field == "" {
		return fmt.Errorf("%s cannot bind to %s", kind, g.record.Name)
	}
	if _, ok := g.record.Field(field); !ok {
		return fmt.Errorf("%s has no field %s for %s", g.record.Name, field, kind)
	}
	return nil
}

func (g *generator) bound(kind models.EntityKind) bool {
	for _, k := range g.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// generate renders the expression for b. It fails when a bound entity needs
// a field the record type lacks, such as a municipality on a region-level
// record.
func (g *generator) generate(b Bindings) (string, error) {
	filters, err := g.filterArgs(b.Entities)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(g.record.Name)
	sb.WriteString(".objects")
	if len(filters) == 0 {
		sb.WriteString(".all()")
	} else {
		sb.WriteString(".filter(")
		sb.WriteString(strings.Join(filters, ", "))
		sb.WriteString(")")
	}

	switch g.operation {
	case OpCount:
		sb.WriteString(".count()")
	case OpList:
		if g.orderBy != "" {
			fmt.Fprintf(&sb, ".order_by(%s)", quote(g.orderBy))
		}
		if len(g.fields) > 0 {
			quoted := make([]string, len(g.fields))
			for i, f := range g.fields {
				quoted[i] = quote(f)
			}
			fmt.Fprintf(&sb, ".values(%s)", strings.Join(quoted, ", "))
		}
		fmt.Fprintf(&sb, "[:%d]", g.rowLimit(b.Entities))
	case OpSum, OpAvg, OpMax:
		fmt.Fprintf(&sb, ".aggregate(%s(%s))", aggregateFunc(g.operation), quote(g.field))
	case OpBreakdown, OpTop:
		fmt.Fprintf(&sb, `.values(%s).annotate(total=Count("id")).order_by("-total")`, quote(g.field))
		if g.operation == OpTop {
			fmt.Fprintf(&sb, "[:%d]", g.rowLimit(b.Entities))
		}
	default:
		return "", fmt.Errorf("unsupported operation %s", g.operation)
	}
	return sb.String(), nil
}

func (g *generator) filterArgs(entities models.Entities) ([]string, error) {
	var out []string

	names := make([]string, 0, len(g.filters))
	for name := range g.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, _ := g.record.Field(name)
		lit, err := literal(f, g.filters[name])
		if err != nil {
			return nil, err
		}
		out = append(out, fmt.Sprintf("%s=%s", name, lit))
	}

	for _, kind := range filterOrder {
		if !g.bound(kind) || !entities.Has(kind) {
			continue
		}
		switch kind {
		case models.KindLocation:
			loc, _ := entities.Location()
			field := loc.LocationType
			if field == "" {
				field = models.LocationRegion
			}
			if _, ok := g.record.Field(field); !ok {
				return nil, fmt.Errorf("%s cannot be filtered by %s", g.record.Name, field)
			}
			out = append(out, fmt.Sprintf("%s__iexact=%s", field, quote(loc.Value)))
		case models.KindDateRange:
			dr, _ := entities.DateRange()
			if !dr.Start.IsZero() {
				out = append(out, fmt.Sprintf("%s__gte=%s", g.dateField, quote(dr.Start.Format("2006-01-02"))))
			}
			if !dr.End.IsZero() {
				out = append(out, fmt.Sprintf("%s__lte=%s", g.dateField, quote(dr.End.Format("2006-01-02"))))
			}
		case models.KindBudgetRange:
			br, _ := entities.BudgetRange()
			if br.Min > 0 {
				out = append(out, "budget__gte="+formatNumber(br.Min))
			}
			if br.Max > 0 {
				out = append(out, "budget__lte="+formatNumber(br.Max))
			}
		default:
			out = append(out, fmt.Sprintf("%s__iexact=%s", termFields[kind], quote(entities.Text(kind))))
		}
	}
	return out, nil
}

// rowLimit is the first extracted number when numbers are bound, else the
// template limit, clamped to [1, MaxLimit].
func (g *generator) rowLimit(entities models.Entities) int {
	n := g.limit
	if g.bound(models.KindNumbers) {
		if nums, ok := entities.Numbers(); ok && len(nums.Numbers) > 0 {
			n = nums.Numbers[0]
		}
	}
	if n <= 0 {
		n = DefaultLimit
	}
	if n > MaxLimit {
		n = MaxLimit
	}
	return n
}

func aggregateFunc(op string) string {
	switch op {
	case OpSum:
		return "Sum"
	case OpAvg:
		return "Avg"
	default:
		return "Max"
	}
}

// literal renders a static filter value for field f.
func literal(f registry.Field, v interface{}) (string, error) {
	switch f.Type {
	case registry.FieldBoolean:
		b, ok := v.(bool)
		if !ok {
			return "", fmt.Errorf("filter %s needs a boolean", f.Name)
		}
		if b {
			return "True", nil
		}
		return "False", nil
	case registry.FieldInteger, registry.FieldNumber:
		switch n := v.(type) {
		case int:
			return strconv.Itoa(n), nil
		case float64:
			return formatNumber(n), nil
		}
		return "", fmt.Errorf("filter %s needs a number", f.Name)
	default:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("filter %s needs a string", f.Name)
		}
		return quote(s), nil
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// quote renders s as a double-quoted expression string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
