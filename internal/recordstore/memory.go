// Package recordstore holds the read-only record store, location directory
// and query log adapters used by the assistant: an in-memory implementation
// seeded from embedded YAML, PostgreSQL (lib/pq) and Elasticsearch.
package recordstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"community-assistant/internal/models"
	"community-assistant/pkg/registry"
)

//go:embed seed.yaml
var seedYAML []byte

var (
	ErrUnknownRecordType = errors.New("UNKNOWN_RECORD_TYPE")
	ErrQueryFailed       = errors.New("QUERY_EXECUTION_FAILED")
)

// MemoryStore evaluates plans over records held in memory. It is safe for
// concurrent reads and is never mutated after construction.
type MemoryStore struct {
	registry *registry.RecordRegistry
	data     map[string][]models.Record
}

// NewMemoryStore loads the embedded seed records.
func NewMemoryStore(reg *registry.RecordRegistry) (*MemoryStore, error) {
	return LoadMemoryStore(reg, seedYAML)
}

// LoadMemoryStore parses YAML keyed by record type name. Every value is
// converted to its declared field type; unknown types or fields are errors.
func LoadMemoryStore(reg *registry.RecordRegistry, doc []byte) (*MemoryStore, error) {
	var raw map[string][]map[string]interface{}
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("parse seed records: %w", err)
	}

	data := make(map[string][]models.Record, len(raw))
	for typeName, rows := range raw {
		rt, ok := reg.Lookup(typeName)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRecordType, typeName)
		}
		records := make([]models.Record, 0, len(rows))
		for i, row := range rows {
			rec, err := typedRecord(rt, row)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", typeName, i+1, err)
			}
			records = append(records, rec)
		}
		data[typeName] = records
	}
	return &MemoryStore{registry: reg, data: data}, nil
}

// NewMemoryStoreFrom wraps already typed records, mainly for tests.
func NewMemoryStoreFrom(reg *registry.RecordRegistry, data map[string][]models.Record) *MemoryStore {
	return &MemoryStore{registry: reg, data: data}
}

func typedRecord(rt *registry.RecordType, row map[string]interface{}) (models.Record, error) {
	rec := make(models.Record, len(rt.Fields))
	for _, f := range rt.Fields {
		rec[f.Name] = nil
	}
	for name, v := range row {
		f, ok := rt.Field(name)
		if !ok {
			return nil, fmt.Errorf("unknown field %s", name)
		}
		typed, err := convertField(f, v)
		if err != nil {
			return nil, err
		}
		rec[name] = typed
	}
	return rec, nil
}

func convertField(f registry.Field, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case registry.FieldString:
		return fmt.Sprint(v), nil
	case registry.FieldInteger:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case registry.FieldNumber:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		}
	case registry.FieldBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case registry.FieldDate:
		switch d := v.(type) {
		case string:
			t, err := time.Parse("2006-01-02", d)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return t, nil
		case time.Time:
			return d, nil
		}
	}
	return nil, fmt.Errorf("field %s: cannot use %T as %s", f.Name, v, f.Type)
}

// Types returns the record type names that hold data, sorted.
func (s *MemoryStore) Types() []string {
	out := make([]string, 0, len(s.data))
	for name := range s.data {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *MemoryStore) Rows(ctx context.Context, plan models.Plan) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := s.records(plan.RecordType)
	if err != nil {
		return nil, err
	}
	return evaluate(records, plan), nil
}

func (s *MemoryStore) Count(ctx context.Context, plan models.Plan) (int64, error) {
	rows, err := s.Rows(ctx, plan)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (s *MemoryStore) Aggregate(ctx context.Context, plan models.Plan) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := s.records(plan.RecordType)
	if err != nil {
		return nil, err
	}
	base := plan
	base.Aggregates = nil
	base.OrderBy = nil
	if len(base.GroupBy) == 0 {
		base.Fields = nil
		base.Distinct = false
	}
	rows := evaluate(records, base)

	out := make(map[string]interface{}, len(plan.Aggregates))
	for _, a := range plan.Aggregates {
		out[a.Alias] = aggregate(rows, a)
	}
	return out, nil
}

func (s *MemoryStore) records(recordType string) ([]models.Record, error) {
	if _, ok := s.registry.Lookup(recordType); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecordType, recordType)
	}
	return s.data[recordType], nil
}
