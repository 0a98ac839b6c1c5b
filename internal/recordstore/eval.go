// internal/recordstore/eval.go
package recordstore

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"community-assistant/internal/models"
)

// evaluate applies a plan to records in the same order a SQL engine would:
// where, group, project, distinct, order, offset, limit.
func evaluate(records []models.Record, plan models.Plan) []models.Record {
	rows := make([]models.Record, 0, len(records))
	for _, r := range records {
		if matchesAll(r, plan.Where) {
			rows = append(rows, r)
		}
	}

	if len(plan.GroupBy) > 0 {
		rows = group(rows, plan.GroupBy, plan.Annotations)
	}
	if len(plan.Fields) > 0 {
		rows = project(rows, plan.Fields)
	}
	if plan.Distinct {
		rows = distinct(rows)
	}
	if len(plan.OrderBy) > 0 {
		sortRows(rows, plan.OrderBy)
	}

	if plan.Offset >= len(rows) {
		return []models.Record{}
	}
	rows = rows[plan.Offset:]
	if plan.Limit > 0 && len(rows) > plan.Limit {
		rows = rows[:plan.Limit]
	}
	return rows
}

func matchesAll(r models.Record, clauses []models.Clause) bool {
	for _, c := range clauses {
		if matchesClause(r, c) == c.Exclude {
			return false
		}
	}
	return true
}

func matchesClause(r models.Record, c models.Clause) bool {
	for _, g := range c.Groups {
		ok := true
		for _, cond := range g {
			if !matches(r[cond.Field], cond) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func matches(v interface{}, c models.Condition) bool {
	if c.Lookup == models.LookupIsNull {
		want, _ := c.Value.(bool)
		return (v == nil) == want
	}
	if v == nil {
		return false
	}

	switch c.Lookup {
	case models.LookupExact:
		n, ok := compare(v, c.Value)
		return ok && n == 0
	case models.LookupIExact:
		return strings.EqualFold(fmt.Sprint(v), fmt.Sprint(c.Value))
	case models.LookupContains:
		return strings.Contains(fmt.Sprint(v), fmt.Sprint(c.Value))
	case models.LookupIContains:
		return strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(fmt.Sprint(c.Value)))
	case models.LookupStartsWith:
		return strings.HasPrefix(fmt.Sprint(v), fmt.Sprint(c.Value))
	case models.LookupIStartsWith:
		return strings.HasPrefix(strings.ToLower(fmt.Sprint(v)), strings.ToLower(fmt.Sprint(c.Value)))
	case models.LookupGT, models.LookupGTE, models.LookupLT, models.LookupLTE:
		n, ok := compare(v, c.Value)
		if !ok {
			return false
		}
		switch c.Lookup {
		case models.LookupGT:
			return n > 0
		case models.LookupGTE:
			return n >= 0
		case models.LookupLT:
			return n < 0
		}
		return n <= 0
	case models.LookupIn:
		values, _ := c.Value.([]interface{})
		for _, want := range values {
			if n, ok := compare(v, want); ok && n == 0 {
				return true
			}
		}
		return false
	case models.LookupYear:
		t, ok := v.(time.Time)
		want, _ := toFloat(c.Value)
		return ok && float64(t.Year()) == want
	}
	return false
}

// compare orders two non-nil values of compatible types. ok is false when the
// types cannot be compared.
func compare(a, b interface{}) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// sortRows orders nulls last ascending and first descending, as PostgreSQL does.
func sortRows(rows []models.Record, orders []models.Order) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range orders {
			a, b := rows[i][o.Field], rows[j][o.Field]
			var n int
			switch {
			case a == nil && b == nil:
				continue
			case a == nil:
				n = 1
			case b == nil:
				n = -1
			default:
				n, _ = compare(a, b)
			}
			if n == 0 {
				continue
			}
			if o.Desc {
				return n > 0
			}
			return n < 0
		}
		return false
	})
}

func rowKey(r models.Record, fields []string) string {
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%T:%v\x00", r[f], r[f])
	}
	return b.String()
}

// group collapses rows by the grouping fields in first-seen order and
// computes each annotation per group.
func group(rows []models.Record, by []string, annotations []models.Aggregate) []models.Record {
	var keys []string
	members := make(map[string][]models.Record)
	for _, r := range rows {
		k := rowKey(r, by)
		if _, seen := members[k]; !seen {
			keys = append(keys, k)
		}
		members[k] = append(members[k], r)
	}

	out := make([]models.Record, 0, len(keys))
	for _, k := range keys {
		first := members[k][0]
		g := make(models.Record, len(by)+len(annotations))
		for _, f := range by {
			g[f] = first[f]
		}
		for _, a := range annotations {
			g[a.Alias] = aggregate(members[k], a)
		}
		out = append(out, g)
	}
	return out
}

func project(rows []models.Record, fields []string) []models.Record {
	out := make([]models.Record, len(rows))
	for i, r := range rows {
		p := make(models.Record, len(fields))
		for _, f := range fields {
			p[f] = r[f]
		}
		out[i] = p
	}
	return out
}

func distinct(rows []models.Record) []models.Record {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		keys := make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		k := rowKey(r, keys)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// aggregate computes one aggregate over rows, ignoring nulls. Empty inputs
// give 0 for Count and nil otherwise.
func aggregate(rows []models.Record, a models.Aggregate) interface{} {
	var values []interface{}
	seen := make(map[string]bool)
	for _, r := range rows {
		v := r[a.Field]
		if v == nil {
			continue
		}
		if a.Distinct {
			k := fmt.Sprintf("%T:%v", v, v)
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		values = append(values, v)
	}

	switch a.Func {
	case models.AggCount:
		return int64(len(values))
	case models.AggSum, models.AggAvg:
		if len(values) == 0 {
			return nil
		}
		var sum float64
		allInts := true
		for _, v := range values {
			f, _ := toFloat(v)
			sum += f
			if _, ok := v.(int64); !ok {
				allInts = false
			}
		}
		if a.Func == models.AggAvg {
			return sum / float64(len(values))
		}
		if allInts {
			return int64(sum)
		}
		return sum
	case models.AggMax, models.AggMin:
		var best interface{}
		for _, v := range values {
			if best == nil {
				best = v
				continue
			}
			n, ok := compare(v, best)
			if ok && ((a.Func == models.AggMax && n > 0) || (a.Func == models.AggMin && n < 0)) {
				best = v
			}
		}
		return best
	}
	return nil
}
