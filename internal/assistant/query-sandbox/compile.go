// internal/assistant/query-sandbox/compile.go
package querysandbox

import (
	"math"
	"strings"
	"time"

	"community-assistant/internal/models"
	"community-assistant/pkg/registry"
)

const (
	maxGroups  = 32
	dateLayout = "2006-01-02"
)

// terminal is the operation that ends a query chain.
type terminal int

const (
	opRows terminal = iota
	opCount
	opExists
	opFirst
	opLast
	opGet
	opIndex
	opAggregate
)

var terminalMethods = map[string]terminal{
	"count":     opCount,
	"exists":    opExists,
	"first":     opFirst,
	"last":      opLast,
	"get":       opGet,
	"aggregate": opAggregate,
}

// program is a compiled expression: the plan plus how to run and shape it.
type program struct {
	plan models.Plan
	op   terminal
	flat bool
}

type step struct {
	method string
	node   *Node
}

// decompose flattens Root.objects.m1(...).m2(...)[...] into its root name and
// the ordered steps applied to it.
func decompose(n *Node) (string, []step, *rejection) {
	var steps []step
	cur := n
	for {
		switch cur.Kind {
		case NodeCall:
			if cur.X.Kind != NodeAttribute {
				return "", nil, reject(LayerStructural, "expression must be a query on a record type")
			}
			steps = append(steps, step{method: cur.X.Ident, node: cur})
			cur = cur.X.X
		case NodeIndex, NodeSlice:
			steps = append(steps, step{node: cur})
			cur = cur.X
		case NodeAttribute:
			if cur.Ident != "objects" || cur.X.Kind != NodeName {
				return "", nil, reject(LayerStructural, "expression must start with <RecordType>.objects")
			}
			for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
				steps[i], steps[j] = steps[j], steps[i]
			}
			if len(steps) == 0 {
				return "", nil, reject(LayerStructural, "query has no operation")
			}
			return cur.X.Ident, steps, nil
		default:
			return "", nil, reject(LayerStructural, "expression must be a query on a record type")
		}
	}
}

type compiler struct {
	rt      *registry.RecordType
	maxRows int
	plan    models.Plan
	aliases map[string]bool
	sliced  bool
	done    bool
	op      terminal
	flat    bool
}

// compile builds an immutable plan for one expression. Shape errors are
// structural; anything about names, fields, lookups or value types is schema.
func compile(root *Node, reg *registry.RecordRegistry, maxRows int) (*program, *rejection) {
	name, steps, rej := decompose(root)
	if rej != nil {
		return nil, rej
	}
	rt, ok := reg.Lookup(name)
	if !ok {
		return nil, reject(LayerSchema, "unknown record type %s", name)
	}

	c := &compiler{
		rt:      rt,
		maxRows: maxRows,
		plan:    models.Plan{RecordType: rt.Name},
		aliases: make(map[string]bool),
	}
	for _, s := range steps {
		if c.done {
			return nil, reject(LayerStructural, "nothing may follow a terminal operation")
		}
		if rej := c.apply(s); rej != nil {
			return nil, rej
		}
	}
	c.finish()
	return &program{plan: c.plan, op: c.op, flat: c.flat}, nil
}

func (c *compiler) apply(s step) *rejection {
	if s.method == "" {
		return c.subscript(s.node)
	}
	call := s.node
	if c.sliced && s.method != "count" && s.method != "exists" {
		return reject(LayerStructural, "%s cannot follow a slice", s.method)
	}
	if op, ok := terminalMethods[s.method]; ok {
		c.op = op
		c.done = true
	}

	switch s.method {
	case "all":
		return noArgs(call, "all")
	case "count", "exists", "first", "last", "distinct":
		if rej := noArgs(call, s.method); rej != nil {
			return rej
		}
		if s.method == "distinct" {
			c.plan.Distinct = true
		}
		return nil
	case "filter", "exclude", "get":
		if len(call.Args) == 0 {
			if s.method == "get" {
				return nil
			}
			return reject(LayerStructural, "%s needs at least one condition", s.method)
		}
		groups, rej := c.conjunction(call.Args)
		if rej != nil {
			return rej
		}
		c.plan.Where = append(c.plan.Where, models.Clause{Exclude: s.method == "exclude", Groups: groups})
		return nil
	case "order_by":
		return c.orderBy(call)
	case "values", "values_list":
		return c.values(call, s.method == "values_list")
	case "annotate":
		return c.annotate(call)
	case "aggregate":
		return c.aggregate(call)
	}
	return reject(LayerStructural, "method %s is not allowed", s.method)
}

func noArgs(call *Node, method string) *rejection {
	if len(call.Args) > 0 {
		return reject(LayerStructural, "%s takes no arguments", method)
	}
	return nil
}

func (c *compiler) subscript(n *Node) *rejection {
	if c.sliced {
		return reject(LayerStructural, "a query may be sliced only once")
	}
	if n.Kind == NodeIndex {
		i, rej := nonNegativeInt(n.Low)
		if rej != nil {
			return rej
		}
		c.plan.Offset = i
		c.plan.Limit = 1
		c.op = opIndex
		c.done = true
		return nil
	}

	lo, hi := 0, -1
	var rej *rejection
	if n.Low != nil {
		if lo, rej = nonNegativeInt(n.Low); rej != nil {
			return rej
		}
	}
	if n.High != nil {
		if hi, rej = nonNegativeInt(n.High); rej != nil {
			return rej
		}
		if hi <= lo {
			return reject(LayerStructural, "slice [%d:%d] selects nothing", lo, hi)
		}
	}
	c.plan.Offset = lo
	if hi >= 0 {
		c.plan.Limit = hi - lo
	}
	c.sliced = true
	return nil
}

func nonNegativeInt(n *Node) (int, *rejection) {
	if n == nil || n.Kind != NodeNumberLit || !n.IsInt || n.Num < 0 {
		return 0, reject(LayerStructural, "subscripts must be non-negative integer literals")
	}
	if n.Num > math.MaxInt32 {
		return 0, reject(LayerStructural, "subscript %.0f exceeds %d", n.Num, math.MaxInt32)
	}
	return int(n.Num), nil
}

// maxExactInt is the largest integer a float64 literal holds exactly.
const maxExactInt = 1 << 53

func isExactInt(n *Node) bool {
	return n.Kind == NodeNumberLit && n.IsInt && math.Abs(n.Num) <= maxExactInt
}

// conjunction ANDs every argument of a filter call into disjunctive normal
// form: keyword arguments form one group, Q expressions contribute theirs.
func (c *compiler) conjunction(args []*Node) ([][]models.Condition, *rejection) {
	groups := [][]models.Condition{{}}
	var kw []models.Condition
	for _, a := range args {
		if a.Kind == NodeKeyword {
			cond, rej := c.condition(a.Ident, a.Value)
			if rej != nil {
				return nil, rej
			}
			kw = append(kw, cond)
			continue
		}
		qg, rej := c.qExpr(a)
		if rej != nil {
			return nil, rej
		}
		if groups, rej = cross(groups, qg); rej != nil {
			return nil, rej
		}
	}
	if len(kw) > 0 {
		var rej *rejection
		if groups, rej = cross(groups, [][]models.Condition{kw}); rej != nil {
			return nil, rej
		}
	}
	return groups, nil
}

// qExpr compiles Q(...) and Q(...) | Q(...) into groups.
func (c *compiler) qExpr(n *Node) ([][]models.Condition, *rejection) {
	switch {
	case n.Kind == NodeBinaryOr:
		left, rej := c.qExpr(n.Left)
		if rej != nil {
			return nil, rej
		}
		right, rej := c.qExpr(n.Right)
		if rej != nil {
			return nil, rej
		}
		out := append(append([][]models.Condition{}, left...), right...)
		if len(out) > maxGroups {
			return nil, reject(LayerStructural, "condition has more than %d alternatives", maxGroups)
		}
		return out, nil
	case n.Kind == NodeCall && n.X.Kind == NodeName && n.X.Ident == "Q":
		if len(n.Args) == 0 {
			return nil, reject(LayerStructural, "Q needs at least one condition")
		}
		return c.conjunction(n.Args)
	}
	return nil, reject(LayerStructural, "positional filter arguments must be Q expressions")
}

func cross(a, b [][]models.Condition) ([][]models.Condition, *rejection) {
	if len(a)*len(b) > maxGroups {
		return nil, reject(LayerStructural, "condition has more than %d alternatives", maxGroups)
	}
	out := make([][]models.Condition, 0, len(a)*len(b))
	for _, x := range a {
		for _, y := range b {
			g := make([]models.Condition, 0, len(x)+len(y))
			g = append(append(g, x...), y...)
			out = append(out, g)
		}
	}
	return out, nil
}

func (c *compiler) condition(key string, valueNode *Node) (models.Condition, *rejection) {
	fieldName, lookupName, _ := strings.Cut(key, "__")
	lookup := models.LookupExact
	if lookupName != "" {
		lookup = models.Lookup(lookupName)
	}
	field, ok := c.rt.Field(fieldName)
	if !ok {
		return models.Condition{}, reject(LayerSchema, "%s has no field %s", c.rt.Name, fieldName)
	}
	if !lookupAllowed(field.Type, lookup) {
		return models.Condition{}, reject(LayerSchema, "lookup %s is not supported on %s field %s", lookupName, field.Type, fieldName)
	}

	value, rej := conditionValue(field, lookup, valueNode)
	if rej != nil {
		return models.Condition{}, rej
	}
	return models.Condition{Field: fieldName, Lookup: lookup, Value: value}, nil
}

var lookupsByType = map[string][]models.Lookup{
	registry.FieldString: {
		models.LookupExact, models.LookupIExact, models.LookupContains, models.LookupIContains,
		models.LookupStartsWith, models.LookupIStartsWith, models.LookupIn, models.LookupIsNull,
		models.LookupGT, models.LookupGTE, models.LookupLT, models.LookupLTE,
	},
	registry.FieldInteger: {
		models.LookupExact, models.LookupGT, models.LookupGTE, models.LookupLT, models.LookupLTE,
		models.LookupIn, models.LookupIsNull,
	},
	registry.FieldDate: {
		models.LookupExact, models.LookupGT, models.LookupGTE, models.LookupLT, models.LookupLTE,
		models.LookupYear, models.LookupIn, models.LookupIsNull,
	},
	registry.FieldBoolean: {models.LookupExact, models.LookupIsNull},
}

func lookupAllowed(fieldType string, l models.Lookup) bool {
	if fieldType == registry.FieldNumber {
		fieldType = registry.FieldInteger
	}
	for _, a := range lookupsByType[fieldType] {
		if a == l {
			return true
		}
	}
	return false
}

// conditionValue converts a literal to the Go type the stores compare with.
func conditionValue(field registry.Field, lookup models.Lookup, n *Node) (interface{}, *rejection) {
	switch lookup {
	case models.LookupIsNull:
		if n.Kind != NodeBoolLit {
			return nil, reject(LayerSchema, "%s__isnull needs True or False", field.Name)
		}
		return n.Bool, nil
	case models.LookupYear:
		if !isExactInt(n) {
			return nil, reject(LayerSchema, "%s__year needs an integer", field.Name)
		}
		return int64(n.Num), nil
	case models.LookupIn:
		if n.Kind != NodeList || len(n.Args) == 0 {
			return nil, reject(LayerSchema, "%s__in needs a non-empty list", field.Name)
		}
		out := make([]interface{}, 0, len(n.Args))
		for _, e := range n.Args {
			v, rej := scalarValue(field, e)
			if rej != nil {
				return nil, rej
			}
			out = append(out, v)
		}
		return out, nil
	case models.LookupContains, models.LookupIContains, models.LookupStartsWith, models.LookupIStartsWith, models.LookupIExact:
		if n.Kind != NodeStringLit {
			return nil, reject(LayerSchema, "%s__%s needs a string", field.Name, lookup)
		}
		return n.Str, nil
	}
	return scalarValue(field, n)
}

func scalarValue(field registry.Field, n *Node) (interface{}, *rejection) {
	switch field.Type {
	case registry.FieldString:
		if n.Kind == NodeStringLit {
			return n.Str, nil
		}
	case registry.FieldInteger:
		if isExactInt(n) {
			return int64(n.Num), nil
		}
	case registry.FieldNumber:
		if n.Kind == NodeNumberLit {
			return n.Num, nil
		}
	case registry.FieldBoolean:
		if n.Kind == NodeBoolLit {
			return n.Bool, nil
		}
	case registry.FieldDate:
		if n.Kind == NodeStringLit {
			t, err := time.Parse(dateLayout, n.Str)
			if err != nil {
				return nil, reject(LayerSchema, "%s needs a YYYY-MM-DD date, got %q", field.Name, n.Str)
			}
			return t, nil
		}
	}
	return nil, reject(LayerSchema, "value %s does not fit %s field %s", n, field.Type, field.Name)
}

func (c *compiler) stringArgs(call *Node, method string) ([]string, *rejection) {
	var out []string
	for _, a := range call.Args {
		if a.Kind == NodeKeyword {
			continue
		}
		if a.Kind != NodeStringLit {
			return nil, reject(LayerStructural, "%s arguments must be string literals", method)
		}
		out = append(out, a.Str)
	}
	return out, nil
}

// known reports whether name is a declared field or an annotation alias.
func (c *compiler) known(name string) bool {
	if c.aliases[name] {
		return true
	}
	_, ok := c.rt.Field(name)
	return ok
}

func (c *compiler) orderBy(call *Node) *rejection {
	names, rej := c.stringArgs(call, "order_by")
	if rej != nil {
		return rej
	}
	if len(names) != len(call.Args) {
		return reject(LayerStructural, "order_by takes no keyword arguments")
	}
	orders := make([]models.Order, 0, len(names))
	for _, name := range names {
		desc := strings.HasPrefix(name, "-")
		field := strings.TrimPrefix(name, "-")
		if !c.known(field) {
			return reject(LayerSchema, "cannot order %s by unknown field %s", c.rt.Name, field)
		}
		orders = append(orders, models.Order{Field: field, Desc: desc})
	}
	c.plan.OrderBy = orders
	return nil
}

func (c *compiler) values(call *Node, list bool) *rejection {
	names, rej := c.stringArgs(call, "values")
	if rej != nil {
		return rej
	}
	for _, a := range call.Args {
		if a.Kind != NodeKeyword {
			continue
		}
		if !list || a.Ident != "flat" || a.Value.Kind != NodeBoolLit {
			return reject(LayerStructural, "unsupported keyword %s", a.Ident)
		}
		c.flat = a.Value.Bool
	}
	if c.flat && len(names) != 1 {
		return reject(LayerStructural, "flat values_list needs exactly one field")
	}
	if len(names) == 0 {
		names = c.rt.FieldNames()
	}
	for _, name := range names {
		if !c.known(name) {
			return reject(LayerSchema, "%s has no field %s", c.rt.Name, name)
		}
		if len(c.plan.GroupBy) > 0 && !c.aliases[name] && !contains(c.plan.GroupBy, name) {
			return reject(LayerSchema, "field %s is not part of the grouping", name)
		}
	}
	c.plan.Fields = names
	return nil
}

func (c *compiler) annotate(call *Node) *rejection {
	if len(c.plan.Fields) == 0 {
		return reject(LayerStructural, "annotate needs values() to name the grouping fields")
	}
	if len(c.plan.GroupBy) > 0 {
		return reject(LayerStructural, "annotate may be applied only once")
	}
	aggs, rej := c.aggregateArgs(call, false)
	if rej != nil {
		return rej
	}
	c.plan.GroupBy = append([]string(nil), c.plan.Fields...)
	c.plan.Annotations = aggs
	for _, a := range aggs {
		c.aliases[a.Alias] = true
		c.plan.Fields = append(c.plan.Fields, a.Alias)
	}
	return nil
}

func (c *compiler) aggregate(call *Node) *rejection {
	aggs, rej := c.aggregateArgs(call, true)
	if rej != nil {
		return rej
	}
	c.plan.Aggregates = aggs
	return nil
}

func (c *compiler) aggregateArgs(call *Node, positional bool) ([]models.Aggregate, *rejection) {
	if len(call.Args) == 0 {
		return nil, reject(LayerStructural, "at least one aggregate is required")
	}
	var out []models.Aggregate
	seen := make(map[string]bool)
	for _, a := range call.Args {
		alias := ""
		fn := a
		if a.Kind == NodeKeyword {
			alias, fn = a.Ident, a.Value
		} else if !positional {
			return nil, reject(LayerStructural, "annotations must be named")
		}
		agg, rej := c.aggregateFunc(fn)
		if rej != nil {
			return nil, rej
		}
		if alias == "" {
			alias = agg.Field + "__" + strings.ToLower(string(agg.Func))
		}
		if _, clash := c.rt.Field(alias); clash || seen[alias] {
			return nil, reject(LayerSchema, "alias %s conflicts with a field or another alias", alias)
		}
		seen[alias] = true
		agg.Alias = alias
		out = append(out, agg)
	}
	return out, nil
}

func (c *compiler) aggregateFunc(n *Node) (models.Aggregate, *rejection) {
	if n.Kind != NodeCall || n.X.Kind != NodeName || n.X.Ident == "Q" || !allowedFunctions[n.X.Ident] {
		return models.Aggregate{}, reject(LayerStructural, "expected Count, Sum, Avg, Max or Min")
	}
	agg := models.Aggregate{Func: models.AggregateFunc(n.X.Ident)}
	var fields int
	for _, a := range n.Args {
		switch {
		case a.Kind == NodeStringLit:
			agg.Field = a.Str
			fields++
		case a.Kind == NodeKeyword && a.Ident == "distinct" && a.Value.Kind == NodeBoolLit:
			agg.Distinct = a.Value.Bool
		default:
			return models.Aggregate{}, reject(LayerStructural, "unsupported argument %s to %s", a, agg.Func)
		}
	}
	if fields != 1 {
		return models.Aggregate{}, reject(LayerStructural, "%s needs exactly one field name", agg.Func)
	}
	field, ok := c.rt.Field(agg.Field)
	if !ok {
		return models.Aggregate{}, reject(LayerSchema, "%s has no field %s", c.rt.Name, agg.Field)
	}
	switch agg.Func {
	case models.AggSum, models.AggAvg:
		if field.Type != registry.FieldInteger && field.Type != registry.FieldNumber {
			return models.Aggregate{}, reject(LayerSchema, "%s needs a numeric field, %s is %s", agg.Func, field.Name, field.Type)
		}
	case models.AggMax, models.AggMin:
		if field.Type == registry.FieldBoolean {
			return models.Aggregate{}, reject(LayerSchema, "%s is not defined on boolean field %s", agg.Func, field.Name)
		}
	}
	return agg, nil
}

// finish applies default ordering and the row cap for the chosen terminal.
func (c *compiler) finish() {
	p := &c.plan
	switch c.op {
	case opFirst, opLast, opGet, opIndex:
		if len(p.OrderBy) == 0 {
			p.OrderBy = c.defaultOrder()
		}
	}
	switch c.op {
	case opFirst:
		p.Limit = 1
	case opLast:
		for i := range p.OrderBy {
			p.OrderBy[i].Desc = !p.OrderBy[i].Desc
		}
		p.Limit = 1
	case opGet:
		p.Limit = 2
	case opExists:
		p.Limit = 1
	case opRows:
		if p.Limit == 0 || p.Limit > c.maxRows {
			p.Limit = c.maxRows + 1
		}
	}
}

func (c *compiler) defaultOrder() []models.Order {
	if len(c.plan.GroupBy) > 0 {
		return []models.Order{{Field: c.plan.GroupBy[0]}}
	}
	if _, ok := c.rt.Field("id"); ok {
		return []models.Order{{Field: "id"}}
	}
	if c.rt.DefaultSort != "" {
		return []models.Order{{Field: c.rt.DefaultSort}}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
