// internal/recordstore/sql.go
package recordstore

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"community-assistant/internal/models"
	"community-assistant/pkg/registry"
)

// sqlBuilder renders a plan as one parameterised PostgreSQL statement.
// Identifiers come from the registry and are always quoted; values are
// always bound as $n parameters.
type sqlBuilder struct {
	rt   *registry.RecordType
	args []interface{}
}

func (b *sqlBuilder) param(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func ident(name string) string { return pq.QuoteIdentifier(name) }

// selectSQL renders the row query for plan.
func (b *sqlBuilder) selectSQL(plan models.Plan) string {
	var cols []string
	switch {
	case len(plan.GroupBy) > 0:
		for _, f := range plan.GroupBy {
			cols = append(cols, ident(f))
		}
		for _, a := range plan.Annotations {
			cols = append(cols, aggregateSQL(a)+" AS "+ident(a.Alias))
		}
	default:
		fields := plan.Fields
		if len(fields) == 0 {
			fields = b.rt.FieldNames()
		}
		for _, f := range fields {
			cols = append(cols, ident(f))
		}
	}

	var q strings.Builder
	q.WriteString("SELECT ")
	if plan.Distinct {
		q.WriteString("DISTINCT ")
	}
	q.WriteString(strings.Join(cols, ", "))
	q.WriteString(" FROM ")
	q.WriteString(ident(b.rt.Table))
	q.WriteString(b.whereSQL(plan.Where))

	if len(plan.GroupBy) > 0 {
		groups := make([]string, len(plan.GroupBy))
		for i, f := range plan.GroupBy {
			groups[i] = ident(f)
		}
		q.WriteString(" GROUP BY " + strings.Join(groups, ", "))
	}
	if len(plan.OrderBy) > 0 {
		orders := make([]string, len(plan.OrderBy))
		for i, o := range plan.OrderBy {
			orders[i] = ident(o.Field)
			if o.Desc {
				orders[i] += " DESC"
			}
		}
		q.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}
	if plan.Limit > 0 {
		fmt.Fprintf(&q, " LIMIT %d", plan.Limit)
	}
	if plan.Offset > 0 {
		fmt.Fprintf(&q, " OFFSET %d", plan.Offset)
	}
	return q.String()
}

// countSQL counts directly when the plan is a plain filter and wraps the row
// query otherwise.
func (b *sqlBuilder) countSQL(plan models.Plan) string {
	if len(plan.GroupBy) == 0 && !plan.Distinct && plan.Offset == 0 && plan.Limit == 0 {
		return "SELECT COUNT(*) FROM " + ident(b.rt.Table) + b.whereSQL(plan.Where)
	}
	plan.OrderBy = nil
	return "SELECT COUNT(*) FROM (" + b.selectSQL(plan) + ") AS sub"
}

func (b *sqlBuilder) aggregateSQL(plan models.Plan) string {
	cols := make([]string, len(plan.Aggregates))
	for i, a := range plan.Aggregates {
		cols[i] = aggregateSQL(a) + " AS " + ident(a.Alias)
	}
	from := ident(b.rt.Table) + b.whereSQL(plan.Where)
	if len(plan.GroupBy) > 0 {
		inner := plan
		inner.Aggregates = nil
		inner.OrderBy = nil
		from = "(" + b.selectSQL(inner) + ") AS sub"
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + from
}

func aggregateSQL(a models.Aggregate) string {
	fn := map[models.AggregateFunc]string{
		models.AggCount: "COUNT",
		models.AggSum:   "SUM",
		models.AggAvg:   "AVG",
		models.AggMax:   "MAX",
		models.AggMin:   "MIN",
	}[a.Func]
	if a.Distinct {
		return fn + "(DISTINCT " + ident(a.Field) + ")"
	}
	return fn + "(" + ident(a.Field) + ")"
}

func (b *sqlBuilder) whereSQL(clauses []models.Clause) string {
	if len(clauses) == 0 {
		return ""
	}
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		groups := make([]string, len(c.Groups))
		for j, g := range c.Groups {
			conds := make([]string, len(g))
			for k, cond := range g {
				conds[k] = b.conditionSQL(cond)
			}
			groups[j] = "(" + strings.Join(conds, " AND ") + ")"
		}
		expr := strings.Join(groups, " OR ")
		if c.Exclude {
			expr = "NOT (" + expr + ")"
		} else if len(groups) > 1 {
			expr = "(" + expr + ")"
		}
		parts[i] = expr
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (b *sqlBuilder) conditionSQL(c models.Condition) string {
	col := ident(c.Field)
	switch c.Lookup {
	case models.LookupIExact:
		return "LOWER(" + col + ") = LOWER(" + b.param(c.Value) + ")"
	case models.LookupContains:
		return col + " LIKE " + b.param("%"+likeEscaper.Replace(fmt.Sprint(c.Value))+"%")
	case models.LookupIContains:
		return col + " ILIKE " + b.param("%"+likeEscaper.Replace(fmt.Sprint(c.Value))+"%")
	case models.LookupStartsWith:
		return col + " LIKE " + b.param(likeEscaper.Replace(fmt.Sprint(c.Value))+"%")
	case models.LookupIStartsWith:
		return col + " ILIKE " + b.param(likeEscaper.Replace(fmt.Sprint(c.Value))+"%")
	case models.LookupGT:
		return col + " > " + b.param(c.Value)
	case models.LookupGTE:
		return col + " >= " + b.param(c.Value)
	case models.LookupLT:
		return col + " < " + b.param(c.Value)
	case models.LookupLTE:
		return col + " <= " + b.param(c.Value)
	case models.LookupIsNull:
		if want, _ := c.Value.(bool); want {
			return col + " IS NULL"
		}
		return col + " IS NOT NULL"
	case models.LookupYear:
		return "EXTRACT(YEAR FROM " + col + ") = " + b.param(c.Value)
	case models.LookupIn:
		return b.inSQL(col, c.Value)
	}
	return col + " = " + b.param(c.Value)
}

// inSQL binds homogeneous lists as one typed array parameter. Dates and mixed
// lists fall back to an expanded IN list.
func (b *sqlBuilder) inSQL(col string, value interface{}) string {
	values, _ := value.([]interface{})
	if arr, ok := typedArray(values); ok {
		return col + " = ANY(" + b.param(arr) + ")"
	}
	params := make([]string, len(values))
	for i, v := range values {
		params[i] = b.param(v)
	}
	return col + " IN (" + strings.Join(params, ", ") + ")"
}

func typedArray(values []interface{}) (interface{}, bool) {
	if len(values) == 0 {
		return nil, false
	}
	switch values[0].(type) {
	case string:
		out := make(pq.StringArray, len(values))
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	case int64:
		out := make(pq.Int64Array, len(values))
		for i, v := range values {
			n, ok := v.(int64)
			if !ok {
				return nil, false
			}
			out[i] = n
		}
		return out, true
	case float64:
		out := make(pq.Float64Array, len(values))
		for i, v := range values {
			f, ok := toFloat(v)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	case bool:
		out := make(pq.BoolArray, len(values))
		for i, v := range values {
			x, ok := v.(bool)
			if !ok {
				return nil, false
			}
			out[i] = x
		}
		return out, true
	}
	return nil, false
}
