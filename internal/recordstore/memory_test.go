// internal/recordstore/memory_test.go
package recordstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	querysandbox "community-assistant/internal/assistant/query-sandbox"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/models"
	"community-assistant/pkg/registry"
)

// ==========================
// Test Helper Functions
// ==========================

func testRegistry(t *testing.T) *registry.RecordRegistry {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return reg
}

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore(testRegistry(t))
	require.NoError(t, err)
	return store
}

func where(conds ...models.Condition) []models.Clause {
	return []models.Clause{{Groups: [][]models.Condition{conds}}}
}

// ==========================
// Seed Loading
// ==========================

func TestNewMemoryStore_Seed(t *testing.T) {
	store := seededStore(t)

	assert.Contains(t, store.Types(), "Community")
	assert.Len(t, store.data["Community"], 18)
	assert.Len(t, store.data["Region"], 4)

	first := store.data["Community"][0]
	assert.Equal(t, int64(1), first["id"])
	assert.Equal(t, "Region IX", first["region"])
	assert.Equal(t, true, first["coastal"])
	assert.Equal(t, time.Date(2023, 2, 14, 0, 0, 0, 0, time.UTC), first["registered_at"])

	policy := store.data["PolicyRecommendation"][0]
	assert.Equal(t, 12500000.0, policy["budget"])
}

func TestLoadMemoryStore_Errors(t *testing.T) {
	reg := testRegistry(t)
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown type", "Secret:\n  - {id: 1}\n"},
		{"unknown field", "Community:\n  - {id: 1, password: x}\n"},
		{"wrong type", "Community:\n  - {id: one}\n"},
		{"bad date", "Community:\n  - {id: 1, registered_at: \"14/02/2023\"}\n"},
		{"not yaml", "Community: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMemoryStore(reg, []byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

// ==========================
// Plan Evaluation
// ==========================

func TestMemoryStore_Rows(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		plan    models.Plan
		wantIDs []int64
	}{
		{
			name:    "iexact",
			plan:    models.Plan{RecordType: "Community", Where: where(models.Condition{Field: "region", Lookup: models.LookupIExact, Value: "region xi"})},
			wantIDs: []int64{11, 12, 13},
		},
		{
			name: "or groups and exclude",
			plan: models.Plan{RecordType: "Community", Where: []models.Clause{
				{Groups: [][]models.Condition{
					{{Field: "region", Lookup: models.LookupExact, Value: "Region X"}},
					{{Field: "region", Lookup: models.LookupExact, Value: "Region XI"}},
				}},
				{Exclude: true, Groups: [][]models.Condition{{{Field: "coastal", Lookup: models.LookupExact, Value: true}}}},
			}},
			wantIDs: []int64{8, 9, 10, 13},
		},
		{
			name:    "in and gte",
			plan:    models.Plan{RecordType: "Community", Where: where(models.Condition{Field: "ethnolinguistic_group", Lookup: models.LookupIn, Value: []interface{}{"Sangil", "Sama"}}, models.Condition{Field: "households", Lookup: models.LookupGTE, Value: int64(300)})},
			wantIDs: []int64{2, 11, 14},
		},
		{
			name:    "icontains",
			plan:    models.Plan{RecordType: "Community", Where: where(models.Condition{Field: "name", Lookup: models.LookupIContains, Value: "POBLACION"})},
			wantIDs: []int64{10, 17},
		},
		{
			name:    "year",
			plan:    models.Plan{RecordType: "Community", Where: where(models.Condition{Field: "registered_at", Lookup: models.LookupYear, Value: int64(2025)})},
			wantIDs: []int64{10, 13, 18},
		},
		{
			name:    "date range",
			plan:    models.Plan{RecordType: "Community", Where: where(models.Condition{Field: "registered_at", Lookup: models.LookupLT, Value: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)})},
			wantIDs: []int64{1, 2},
		},
		{
			name:    "order desc with offset and limit",
			plan:    models.Plan{RecordType: "Community", OrderBy: []models.Order{{Field: "households", Desc: true}}, Offset: 1, Limit: 2},
			wantIDs: []int64{14, 11},
		},
		{
			name:    "offset past end",
			plan:    models.Plan{RecordType: "Community", Offset: 100},
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := store.Rows(ctx, tt.plan)
			require.NoError(t, err)
			var ids []int64
			for _, r := range rows {
				ids = append(ids, r["id"].(int64))
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestMemoryStore_GroupAndProject(t *testing.T) {
	store := seededStore(t)

	rows, err := store.Rows(context.Background(), models.Plan{
		RecordType:  "Community",
		GroupBy:     []string{"region"},
		Annotations: []models.Aggregate{{Alias: "total", Func: models.AggCount, Field: "id"}},
		Fields:      []string{"region", "total"},
		OrderBy:     []models.Order{{Field: "total", Desc: true}, {Field: "region"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Record{
		{"region": "Region IX", "total": int64(6)},
		{"region": "Region XII", "total": int64(5)},
		{"region": "Region X", "total": int64(4)},
		{"region": "Region XI", "total": int64(3)},
	}, rows)

	rows, err = store.Rows(context.Background(), models.Plan{
		RecordType: "Community",
		Fields:     []string{"primary_livelihood"},
		Distinct:   true,
		OrderBy:    []models.Order{{Field: "primary_livelihood"}},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 5)
	assert.Equal(t, models.Record{"primary_livelihood": "farming"}, rows[0])
}

func TestMemoryStore_CountAndAggregate(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	n, err := store.Count(ctx, models.Plan{RecordType: "Municipality", Where: where(models.Condition{Field: "municipality_type", Lookup: models.LookupExact, Value: "city"})})
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	agg, err := store.Aggregate(ctx, models.Plan{
		RecordType: "Community",
		Where:      where(models.Condition{Field: "region", Lookup: models.LookupExact, Value: "Region XI"}),
		Aggregates: []models.Aggregate{
			{Alias: "households__sum", Func: models.AggSum, Field: "households"},
			{Alias: "avg", Func: models.AggAvg, Field: "population"},
			{Alias: "groups", Func: models.AggCount, Field: "ethnolinguistic_group", Distinct: true},
			{Alias: "latest", Func: models.AggMax, Field: "registered_at"},
			{Alias: "smallest", Func: models.AggMin, Field: "name"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(695), agg["households__sum"])
	assert.InDelta(t, 1190.0, agg["avg"], 1e-9)
	assert.Equal(t, int64(3), agg["groups"])
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), agg["latest"])
	assert.Equal(t, "Bucana", agg["smallest"])

	empty, err := store.Aggregate(ctx, models.Plan{
		RecordType: "Community",
		Where:      where(models.Condition{Field: "region", Lookup: models.LookupExact, Value: "Region I"}),
		Aggregates: []models.Aggregate{{Alias: "n", Func: models.AggCount, Field: "id"}, {Alias: "s", Func: models.AggSum, Field: "households"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty["n"])
	assert.Nil(t, empty["s"])
}

func TestMemoryStore_Errors(t *testing.T) {
	store := seededStore(t)

	_, err := store.Rows(context.Background(), models.Plan{RecordType: "Secret"})
	assert.ErrorIs(t, err, ErrUnknownRecordType)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Count(ctx, models.Plan{RecordType: "Community"})
	assert.ErrorIs(t, err, context.Canceled)
}

// ==========================
// Sandbox Integration
// ==========================

func TestMemoryStore_ThroughSandbox(t *testing.T) {
	reg := testRegistry(t)
	store := seededStore(t)
	sb := querysandbox.New(reg, store, nil, logger.NewTestLogger(t))
	ctx := context.Background()

	tests := []struct {
		expr string
		want interface{}
	}{
		{`Community.objects.filter(region__iexact="Region IX").count()`, int64(6)},
		{`Community.objects.count()`, int64(18)},
		{`Community.objects.filter(Q(primary_livelihood="fishing") | Q(primary_livelihood="weaving")).count()`, int64(6)},
		{`Municipality.objects.filter(municipality_type="municipality").count()`, int64(5)},
		{`Partnership.objects.filter(status="ongoing").exists()`, true},
		{`Community.objects.filter(province="Davao del Sur").values_list("name", flat=True)`, []interface{}{"Bucana", "Sasa"}},
		{`Community.objects.order_by("-population").values_list("name", flat=True)[0]`, []interface{}{"Talon-Talon"}},
		{`Community.objects.filter(region="Region X").aggregate(total=Sum("households"))`, map[string]interface{}{"total": int64(695)}},
		{`WorkItem.objects.filter(status="ongoing").aggregate(Sum("budget"))`, map[string]interface{}{"budget__sum": 20400000.0}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			res := sb.Execute(ctx, tt.expr)
			require.True(t, res.Success, "reason: %s", res.Reason)
			assert.Equal(t, tt.want, res.Value)
		})
	}

	res := sb.Execute(ctx, `Community.objects.filter(region="Region XI").first()`)
	require.True(t, res.Success)
	records := res.Value.([]models.Record)
	require.Len(t, records, 1)
	assert.Equal(t, "Bucana", records[0]["name"])
	assert.Equal(t, "2023-07-07", records[0]["registered_at"])
}
