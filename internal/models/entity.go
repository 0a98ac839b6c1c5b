package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// NormalizedQuery is lower-cased, punctuation-stripped, whitespace-collapsed
// message text. Build it with textutil.Normalize.
type NormalizedQuery string

func (q NormalizedQuery) String() string { return string(q) }

type EntityKind string

const (
	KindLocation        EntityKind = "location"
	KindEthnicGroup     EntityKind = "ethnolinguistic_group"
	KindLivelihood      EntityKind = "livelihood"
	KindDateRange       EntityKind = "date_range"
	KindStatus          EntityKind = "status"
	KindNumbers         EntityKind = "numbers"
	KindSector          EntityKind = "sector"
	KindPriorityLevel   EntityKind = "priority_level"
	KindUrgencyLevel    EntityKind = "urgency_level"
	KindNeedStatus      EntityKind = "need_status"
	KindMinistry        EntityKind = "ministry"
	KindBudgetRange     EntityKind = "budget_range"
	KindAssessmentType  EntityKind = "assessment_type"
	KindPartnershipType EntityKind = "partnership_type"
)

// Location types carried by LocationEntity.
const (
	LocationRegion       = "region"
	LocationProvince     = "province"
	LocationMunicipality = "municipality"
)

// Entity is one typed value pulled out of a query.
type Entity interface {
	Kind() EntityKind
	// Text is the canonical value as used in generated queries and messages.
	Text() string
	Score() float64
}

type LocationEntity struct {
	Value        string  `json:"value"`
	LocationType string  `json:"locationType"`
	Code         string  `json:"code,omitempty"`
	Confidence   float64 `json:"confidence"`
	Validated    bool    `json:"validated,omitempty"`
}

func (e LocationEntity) Kind() EntityKind { return KindLocation }
func (e LocationEntity) Text() string     { return e.Value }
func (e LocationEntity) Score() float64   { return e.Confidence }

type DateRangeEntity struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
}

func (e DateRangeEntity) Kind() EntityKind { return KindDateRange }
func (e DateRangeEntity) Text() string     { return e.Label }
func (e DateRangeEntity) Score() float64   { return e.Confidence }

type NumbersEntity struct {
	Numbers    []int   `json:"numbers"`
	Confidence float64 `json:"confidence"`
}

func (e NumbersEntity) Kind() EntityKind { return KindNumbers }
func (e NumbersEntity) Score() float64   { return e.Confidence }

func (e NumbersEntity) Text() string {
	parts := make([]string, len(e.Numbers))
	for i, n := range e.Numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// BudgetRangeEntity bounds are in pesos. A zero Max means unbounded above.
type BudgetRangeEntity struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (e BudgetRangeEntity) Kind() EntityKind { return KindBudgetRange }
func (e BudgetRangeEntity) Text() string     { return e.Label }
func (e BudgetRangeEntity) Score() float64   { return e.Confidence }

// TermEntity is a dictionary match: ethnic group, livelihood, status, sector
// and the other vocabulary-driven kinds.
type TermEntity struct {
	EntityKind EntityKind `json:"kind"`
	Value      string     `json:"value"`
	Matched    string     `json:"matched,omitempty"`
	Confidence float64    `json:"confidence"`
}

func (e TermEntity) Kind() EntityKind { return e.EntityKind }
func (e TermEntity) Text() string     { return e.Value }
func (e TermEntity) Score() float64   { return e.Confidence }

// Entities holds at most one entity per kind.
type Entities map[EntityKind]Entity

func (es Entities) Has(kind EntityKind) bool {
	_, ok := es[kind]
	return ok
}

// Text returns the canonical text of kind, or "" when absent.
func (es Entities) Text(kind EntityKind) string {
	if e, ok := es[kind]; ok && e != nil {
		return e.Text()
	}
	return ""
}

func (es Entities) Location() (LocationEntity, bool) {
	e, ok := es[KindLocation].(LocationEntity)
	return e, ok
}

func (es Entities) DateRange() (DateRangeEntity, bool) {
	e, ok := es[KindDateRange].(DateRangeEntity)
	return e, ok
}

func (es Entities) Numbers() (NumbersEntity, bool) {
	e, ok := es[KindNumbers].(NumbersEntity)
	return e, ok
}

func (es Entities) BudgetRange() (BudgetRangeEntity, bool) {
	e, ok := es[KindBudgetRange].(BudgetRangeEntity)
	return e, ok
}

// Kinds returns the present kinds in sorted order.
func (es Entities) Kinds() []string {
	out := make([]string, 0, len(es))
	for k := range es {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// Clone returns a shallow copy; entity values are immutable.
func (es Entities) Clone() Entities {
	out := make(Entities, len(es))
	for k, v := range es {
		out[k] = v
	}
	return out
}

// Values flattens the bag to kind -> canonical text.
func (es Entities) Values() map[string]string {
	out := make(map[string]string, len(es))
	for k, v := range es {
		out[string(k)] = v.Text()
	}
	return out
}

// entityJSON is the wire form shared by every entity kind.
type entityJSON struct {
	Value        string     `json:"value"`
	Confidence   float64    `json:"confidence"`
	LocationType string     `json:"locationType,omitempty"`
	Code         string     `json:"code,omitempty"`
	Validated    bool       `json:"validated,omitempty"`
	Matched      string     `json:"matched,omitempty"`
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
	Numbers      []int      `json:"numbers,omitempty"`
	Min          *float64   `json:"min,omitempty"`
	Max          *float64   `json:"max,omitempty"`
}

func (es Entities) MarshalJSON() ([]byte, error) {
	wire := make(map[string]entityJSON, len(es))
	for kind, e := range es {
		w := entityJSON{Value: e.Text(), Confidence: e.Score()}
		switch v := e.(type) {
		case LocationEntity:
			w.LocationType, w.Code, w.Validated = v.LocationType, v.Code, v.Validated
		case DateRangeEntity:
			start, end := v.Start, v.End
			w.Start, w.End = &start, &end
		case NumbersEntity:
			w.Numbers = v.Numbers
		case BudgetRangeEntity:
			lo, hi := v.Min, v.Max
			w.Min, w.Max = &lo, &hi
		case TermEntity:
			w.Matched = v.Matched
		}
		wire[string(kind)] = w
	}
	return json.Marshal(wire)
}

func (es *Entities) UnmarshalJSON(data []byte) error {
	var wire map[string]entityJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := make(Entities, len(wire))
	for k, w := range wire {
		kind := EntityKind(k)
		switch kind {
		case KindLocation:
			out[kind] = LocationEntity{Value: w.Value, LocationType: w.LocationType, Code: w.Code, Confidence: w.Confidence, Validated: w.Validated}
		case KindDateRange:
			if w.Start == nil || w.End == nil {
				return fmt.Errorf("date_range entity missing bounds")
			}
			out[kind] = DateRangeEntity{Start: *w.Start, End: *w.End, Label: w.Value, Confidence: w.Confidence}
		case KindNumbers:
			out[kind] = NumbersEntity{Numbers: w.Numbers, Confidence: w.Confidence}
		case KindBudgetRange:
			b := BudgetRangeEntity{Label: w.Value, Confidence: w.Confidence}
			if w.Min != nil {
				b.Min = *w.Min
			}
			if w.Max != nil {
				b.Max = *w.Max
			}
			out[kind] = b
		default:
			out[kind] = TermEntity{EntityKind: kind, Value: w.Value, Matched: w.Matched, Confidence: w.Confidence}
		}
	}
	*es = out
	return nil
}

// Municipality is a directory row used to resolve town and city names.
type Municipality struct {
	Name     string `json:"name"`
	Province string `json:"province"`
	Region   string `json:"region"`
}
