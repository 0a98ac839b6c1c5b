package recordstore

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-assistant/internal/models"
)

func newBuilder(t *testing.T, recordType string) *sqlBuilder {
	t.Helper()
	rt, ok := testRegistry(t).Lookup(recordType)
	require.True(t, ok)
	return &sqlBuilder{rt: rt}
}

// ==========================
// Statement Rendering
// ==========================

func TestSQLBuilder_Select(t *testing.T) {
	tests := []struct {
		name     string
		plan     models.Plan
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:    "all fields",
			plan:    models.Plan{RecordType: "Region"},
			wantSQL: `SELECT "id", "code", "name", "label" FROM "regions"`,
		},
		{
			name: "projection order and paging",
			plan: models.Plan{
				RecordType: "Community",
				Fields:     []string{"name"},
				Distinct:   true,
				Where:      where(models.Condition{Field: "households", Lookup: models.LookupGT, Value: int64(100)}),
				OrderBy:    []models.Order{{Field: "name", Desc: true}},
				Offset:     10,
				Limit:      5,
			},
			wantSQL:  `SELECT DISTINCT "name" FROM "communities" WHERE ("households" > $1) ORDER BY "name" DESC LIMIT 5 OFFSET 10`,
			wantArgs: []interface{}{int64(100)},
		},
		{
			name: "grouped breakdown",
			plan: models.Plan{
				RecordType:  "Community",
				GroupBy:     []string{"region"},
				Annotations: []models.Aggregate{{Alias: "total", Func: models.AggCount, Field: "id"}},
				Fields:      []string{"region", "total"},
				OrderBy:     []models.Order{{Field: "total", Desc: true}},
				Limit:       1001,
			},
			wantSQL: `SELECT "region", COUNT("id") AS "total" FROM "communities" GROUP BY "region" ORDER BY "total" DESC LIMIT 1001`,
		},
		{
			name: "alternatives and exclude",
			plan: models.Plan{RecordType: "Community", Where: []models.Clause{
				{Groups: [][]models.Condition{
					{{Field: "region", Lookup: models.LookupExact, Value: "Region IX"}, {Field: "coastal", Lookup: models.LookupExact, Value: true}},
					{{Field: "region", Lookup: models.LookupExact, Value: "Region X"}, {Field: "coastal", Lookup: models.LookupExact, Value: false}},
				}},
				{Exclude: true, Groups: [][]models.Condition{{{Field: "id", Lookup: models.LookupIn, Value: []interface{}{int64(1), int64(2)}}}}},
			}, Fields: []string{"id"}},
			wantSQL:  `SELECT "id" FROM "communities" WHERE (("region" = $1 AND "coastal" = $2) OR ("region" = $3 AND "coastal" = $4)) AND NOT (("id" = ANY($5)))`,
			wantArgs: []interface{}{"Region IX", true, "Region X", false, pq.Int64Array{1, 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t, tt.plan.RecordType)
			assert.Equal(t, tt.wantSQL, b.selectSQL(tt.plan))
			assert.Equal(t, tt.wantArgs, b.args)
		})
	}
}

func TestSQLBuilder_Conditions(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		cond     models.Condition
		wantSQL  string
		wantArgs []interface{}
	}{
		{"iexact", models.Condition{Field: "region", Lookup: models.LookupIExact, Value: "region ix"}, `LOWER("region") = LOWER($1)`, []interface{}{"region ix"}},
		{"contains escapes wildcards", models.Condition{Field: "name", Lookup: models.LookupContains, Value: "50%_off"}, `"name" LIKE $1`, []interface{}{`%50\%\_off%`}},
		{"icontains", models.Condition{Field: "name", Lookup: models.LookupIContains, Value: "sasa"}, `"name" ILIKE $1`, []interface{}{"%sasa%"}},
		{"startswith", models.Condition{Field: "name", Lookup: models.LookupStartsWith, Value: "Ta"}, `"name" LIKE $1`, []interface{}{"Ta%"}},
		{"istartswith", models.Condition{Field: "name", Lookup: models.LookupIStartsWith, Value: "ta"}, `"name" ILIKE $1`, []interface{}{"ta%"}},
		{"gte", models.Condition{Field: "households", Lookup: models.LookupGTE, Value: int64(5)}, `"households" >= $1`, []interface{}{int64(5)}},
		{"lt date", models.Condition{Field: "registered_at", Lookup: models.LookupLT, Value: day}, `"registered_at" < $1`, []interface{}{day}},
		{"lte", models.Condition{Field: "population", Lookup: models.LookupLTE, Value: int64(900)}, `"population" <= $1`, []interface{}{int64(900)}},
		{"isnull true", models.Condition{Field: "barangay", Lookup: models.LookupIsNull, Value: true}, `"barangay" IS NULL`, nil},
		{"isnull false", models.Condition{Field: "barangay", Lookup: models.LookupIsNull, Value: false}, `"barangay" IS NOT NULL`, nil},
		{"year", models.Condition{Field: "registered_at", Lookup: models.LookupYear, Value: int64(2024)}, `EXTRACT(YEAR FROM "registered_at") = $1`, []interface{}{int64(2024)}},
		{"in strings", models.Condition{Field: "region", Lookup: models.LookupIn, Value: []interface{}{"Region IX", "Region X"}}, `"region" = ANY($1)`, []interface{}{pq.StringArray{"Region IX", "Region X"}}},
		{"in dates", models.Condition{Field: "registered_at", Lookup: models.LookupIn, Value: []interface{}{day, day}}, `"registered_at" IN ($1, $2)`, []interface{}{day, day}},
		{"in mixed", models.Condition{Field: "name", Lookup: models.LookupIn, Value: []interface{}{"a", int64(1)}}, `"name" IN ($1, $2)`, []interface{}{"a", int64(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t, "Community")
			assert.Equal(t, tt.wantSQL, b.conditionSQL(tt.cond))
			assert.Equal(t, tt.wantArgs, b.args)
		})
	}
}

func TestSQLBuilder_Count(t *testing.T) {
	regionIX := where(models.Condition{Field: "region", Lookup: models.LookupIExact, Value: "Region IX"})

	b := newBuilder(t, "Community")
	assert.Equal(t,
		`SELECT COUNT(*) FROM "communities" WHERE (LOWER("region") = LOWER($1))`,
		b.countSQL(models.Plan{RecordType: "Community", Where: regionIX}))

	b = newBuilder(t, "Community")
	assert.Equal(t,
		`SELECT COUNT(*) FROM (SELECT DISTINCT "region" FROM "communities") AS sub`,
		b.countSQL(models.Plan{RecordType: "Community", Fields: []string{"region"}, Distinct: true, OrderBy: []models.Order{{Field: "region"}}}))

	b = newBuilder(t, "Community")
	assert.Equal(t,
		`SELECT COUNT(*) FROM (SELECT "id" FROM "communities" LIMIT 3 OFFSET 2) AS sub`,
		b.countSQL(models.Plan{RecordType: "Community", Fields: []string{"id"}, Offset: 2, Limit: 3}))
}

func TestSQLBuilder_Aggregate(t *testing.T) {
	b := newBuilder(t, "Community")
	got := b.aggregateSQL(models.Plan{
		RecordType: "Community",
		Where:      where(models.Condition{Field: "coastal", Lookup: models.LookupExact, Value: true}),
		Aggregates: []models.Aggregate{
			{Alias: "households__sum", Func: models.AggSum, Field: "households"},
			{Alias: "groups", Func: models.AggCount, Field: "ethnolinguistic_group", Distinct: true},
		},
	})
	assert.Equal(t, `SELECT SUM("households") AS "households__sum", COUNT(DISTINCT "ethnolinguistic_group") AS "groups" FROM "communities" WHERE ("coastal" = $1)`, got)
	assert.Equal(t, []interface{}{true}, b.args)

	b = newBuilder(t, "Community")
	got = b.aggregateSQL(models.Plan{
		RecordType:  "Community",
		GroupBy:     []string{"region"},
		Annotations: []models.Aggregate{{Alias: "total", Func: models.AggCount, Field: "id"}},
		Fields:      []string{"region", "total"},
		Aggregates:  []models.Aggregate{{Alias: "total__max", Func: models.AggMax, Field: "total"}},
	})
	assert.Equal(t, `SELECT MAX("total") AS "total__max" FROM (SELECT "region", COUNT("id") AS "total" FROM "communities" GROUP BY "region") AS sub`, got)
}
