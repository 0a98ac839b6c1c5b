package models

// Lookup is the comparison applied by one filter condition.
type Lookup string

const (
	LookupExact       Lookup = "exact"
	LookupIExact      Lookup = "iexact"
	LookupContains    Lookup = "contains"
	LookupIContains   Lookup = "icontains"
	LookupStartsWith  Lookup = "startswith"
	LookupIStartsWith Lookup = "istartswith"
	LookupGT          Lookup = "gt"
	LookupGTE         Lookup = "gte"
	LookupLT          Lookup = "lt"
	LookupLTE         Lookup = "lte"
	LookupIn          Lookup = "in"
	LookupIsNull      Lookup = "isnull"
	LookupYear        Lookup = "year"
)

// Condition compares one declared field with a typed value. Value is a
// string, int64, float64, bool, time.Time or, for LookupIn, a []interface{}
// of those.
type Condition struct {
	Field  string      `json:"field"`
	Lookup Lookup      `json:"lookup"`
	Value  interface{} `json:"value"`
}

// Clause matches a record when every condition of at least one group holds.
// An Exclude clause matches the complement.
type Clause struct {
	Exclude bool          `json:"exclude,omitempty"`
	Groups  [][]Condition `json:"groups"`
}

type Order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// AggregateFunc names one of the supported aggregate functions.
type AggregateFunc string

const (
	AggCount AggregateFunc = "Count"
	AggSum   AggregateFunc = "Sum"
	AggAvg   AggregateFunc = "Avg"
	AggMax   AggregateFunc = "Max"
	AggMin   AggregateFunc = "Min"
)

type Aggregate struct {
	Alias    string        `json:"alias"`
	Func     AggregateFunc `json:"func"`
	Field    string        `json:"field"`
	Distinct bool          `json:"distinct,omitempty"`
}

// Plan is the immutable, fully validated description of one read against a
// single record type. Clauses are ANDed. When GroupBy is set each returned
// row is one group carrying the GroupBy fields plus its Annotations.
type Plan struct {
	RecordType  string      `json:"recordType"`
	Where       []Clause    `json:"where,omitempty"`
	GroupBy     []string    `json:"groupBy,omitempty"`
	Annotations []Aggregate `json:"annotations,omitempty"`
	Fields      []string    `json:"fields,omitempty"`
	Distinct    bool        `json:"distinct,omitempty"`
	OrderBy     []Order     `json:"orderBy,omitempty"`
	Offset      int         `json:"offset,omitempty"`
	// Limit 0 means unbounded.
	Limit      int         `json:"limit,omitempty"`
	Aggregates []Aggregate `json:"aggregates,omitempty"`
}
