package querysandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/models"
	"community-assistant/pkg/registry"
)

// spyStore records every plan it receives and answers with canned values.
type spyStore struct {
	plans   []models.Plan
	methods []string

	rows  []models.Record
	count int64
	agg   map[string]interface{}
	err   error
	panic bool
}

func (s *spyStore) record(method string, plan models.Plan) error {
	s.methods = append(s.methods, method)
	s.plans = append(s.plans, plan)
	if s.panic {
		panic("store exploded")
	}
	return s.err
}

func (s *spyStore) Rows(_ context.Context, plan models.Plan) ([]models.Record, error) {
	if err := s.record("rows", plan); err != nil {
		return nil, err
	}
	rows := s.rows
	if plan.Limit > 0 && len(rows) > plan.Limit {
		rows = rows[:plan.Limit]
	}
	return rows, nil
}

func (s *spyStore) Count(_ context.Context, plan models.Plan) (int64, error) {
	if err := s.record("count", plan); err != nil {
		return 0, err
	}
	return s.count, nil
}

func (s *spyStore) Aggregate(_ context.Context, plan models.Plan) (map[string]interface{}, error) {
	if err := s.record("aggregate", plan); err != nil {
		return nil, err
	}
	return s.agg, nil
}

func newTestSandbox(t *testing.T, store Store, cfg *Config) *Sandbox {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return New(reg, store, cfg, logger.NewTestLogger(t))
}

// ==========================
// Default deny
// ==========================

func TestExecute_RejectsWithoutTouchingStore(t *testing.T) {
	tests := []struct {
		name      string
		expr      string
		wantLayer string
	}{
		{"empty", "   ", LayerLexical},
		{"delete call", `Community.objects.filter(region="Region IX").delete()`, LayerLexical},
		{"update call", `Community.objects.update(region="x")`, LayerLexical},
		{"raw sql", `Community.objects.raw("SELECT 1")`, LayerLexical},
		{"dunder import", `__import__("os")`, LayerLexical},
		{"os system", `os.system("ls")`, LayerLexical},
		{"blacklist inside string", `Community.objects.filter(name="eval")`, LayerLexical},
		{"blacklist any case", `Community.objects.filter(name="OPEN")`, LayerLexical},
		{"lambda", `Community.objects.filter(lambda_x=1)`, LayerLexical},
		{"assignment", `x = Community.objects.all()`, LayerStructural},
		{"del statement", `del Community`, LayerStructural},
		{"multiple statements", `Community.objects.count(); Community.objects.all()`, LayerStructural},
		{"private attribute", `Community._meta`, LayerStructural},
		{"dunder attribute", `Community.objects.__class__`, LayerStructural},
		{"method not whitelisted", `Community.objects.using("other")`, LayerStructural},
		{"free function", `print("x")`, LayerStructural},
		{"attribute on result", `Community.objects.first().name`, LayerStructural},
		{"private keyword", `Community.objects.filter(_state=1)`, LayerStructural},
		{"operator", `Community.objects.count() * 2`, LayerStructural},
		{"negative index", `Community.objects.all()[-1]`, LayerStructural},
		{"index beyond int range", `Community.objects.all()[100000000000000000000]`, LayerStructural},
		{"slice bound beyond int range", `Community.objects.all()[0:100000000000000000000]`, LayerStructural},
		{"filter after slice", `Community.objects.all()[0:5].filter(region="Region IX")`, LayerStructural},
		{"call after terminal", `Community.objects.count().count()`, LayerStructural},
		{"no operation", `Community.objects`, LayerStructural},
		{"flat with two fields", `Community.objects.values_list("name", "region", flat=True)`, LayerStructural},
		{"positional filter", `Community.objects.filter("Region IX")`, LayerStructural},
		{"annotate without values", `Community.objects.annotate(total=Count("id"))`, LayerStructural},
		{"unknown record type", `User.objects.all()`, LayerSchema},
		{"mixed record types", `Community.objects.filter(region=Secret.objects.first())`, LayerSchema},
		{"no record type", `Q(region="Region IX")`, LayerSchema},
		{"unknown field", `Community.objects.filter(password="x")`, LayerSchema},
		{"unknown lookup", `Community.objects.filter(region__regex="^R")`, LayerSchema},
		{"nested lookup", `Community.objects.filter(region__name__iexact="x")`, LayerSchema},
		{"wrong value type", `Community.objects.filter(households="many")`, LayerSchema},
		{"integer beyond exact range", `Community.objects.filter(households=100000000000000000000)`, LayerSchema},
		{"bad date", `Community.objects.filter(registered_at__gte="last week")`, LayerSchema},
		{"year lookup on string", `Community.objects.filter(region__year=2024)`, LayerSchema},
		{"sum of text", `Community.objects.aggregate(Sum("region"))`, LayerSchema},
		{"order by unknown", `Community.objects.order_by("-secret")`, LayerSchema},
		{"alias collides", `Community.objects.values("region").annotate(region=Count("id"))`, LayerSchema},
		{"values outside grouping", `Community.objects.values("region").annotate(total=Count("id")).values("name")`, LayerSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &spyStore{}
			sb := newTestSandbox(t, store, nil)

			res := sb.Execute(context.Background(), tt.expr)

			assert.False(t, res.Success)
			assert.Equal(t, tt.wantLayer, res.Layer, "reason: %s", res.Reason)
			assert.NotEmpty(t, res.Reason)
			assert.Empty(t, store.methods, "store must not be reached")
		})
	}
}

func TestExecute_RejectsOverlongExpression(t *testing.T) {
	store := &spyStore{}
	cfg := LoadConfig()
	cfg.MaxExpressionLength = 40
	sb := newTestSandbox(t, store, cfg)

	expr := `Community.objects.filter(name="` + strings.Repeat("a", 40) + `").count()`
	res := sb.Execute(context.Background(), expr)

	assert.False(t, res.Success)
	assert.Equal(t, LayerLexical, res.Layer)
	assert.Empty(t, store.methods)
}

func TestValidate(t *testing.T) {
	sb := newTestSandbox(t, &spyStore{}, nil)

	require.NoError(t, sb.Validate(`Community.objects.filter(region__iexact="Region IX").count()`))

	err := sb.Validate(`Community.objects.all().delete()`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnsafeQuery))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnsafeQuery))
}

// ==========================
// Plans
// ==========================

func TestExecute_Plans(t *testing.T) {
	tests := []struct {
		name       string
		expr       string
		wantMethod string
		wantPlan   models.Plan
	}{
		{
			name:       "count by region",
			expr:       `Community.objects.filter(region__iexact="Region IX").count()`,
			wantMethod: "count",
			wantPlan: models.Plan{
				RecordType: "Community",
				Where: []models.Clause{{Groups: [][]models.Condition{
					{{Field: "region", Lookup: models.LookupIExact, Value: "Region IX"}},
				}}},
			},
		},
		{
			name:       "Q alternatives distribute over keywords",
			expr:       `Community.objects.filter(Q(region="Region IX") | Q(region="Region X"), coastal=True).count()`,
			wantMethod: "count",
			wantPlan: models.Plan{
				RecordType: "Community",
				Where: []models.Clause{{Groups: [][]models.Condition{
					{
						{Field: "region", Lookup: models.LookupExact, Value: "Region IX"},
						{Field: "coastal", Lookup: models.LookupExact, Value: true},
					},
					{
						{Field: "region", Lookup: models.LookupExact, Value: "Region X"},
						{Field: "coastal", Lookup: models.LookupExact, Value: true},
					},
				}}},
			},
		},
		{
			name:       "exclude with list",
			expr:       `Community.objects.exclude(id__in=[1, 2]).exists()`,
			wantMethod: "rows",
			wantPlan: models.Plan{
				RecordType: "Community",
				Where: []models.Clause{{Exclude: true, Groups: [][]models.Condition{
					{{Field: "id", Lookup: models.LookupIn, Value: []interface{}{int64(1), int64(2)}}},
				}}},
				Limit: 1,
			},
		},
		{
			name:       "grouped breakdown",
			expr:       `Community.objects.values("region").annotate(total=Count("id")).order_by("-total")`,
			wantMethod: "rows",
			wantPlan: models.Plan{
				RecordType:  "Community",
				GroupBy:     []string{"region"},
				Annotations: []models.Aggregate{{Alias: "total", Func: models.AggCount, Field: "id"}},
				Fields:      []string{"region", "total"},
				OrderBy:     []models.Order{{Field: "total", Desc: true}},
				Limit:       1001,
			},
		},
		{
			name:       "first uses id order",
			expr:       `Community.objects.filter(province="Zamboanga del Sur").first()`,
			wantMethod: "rows",
			wantPlan: models.Plan{
				RecordType: "Community",
				Where: []models.Clause{{Groups: [][]models.Condition{
					{{Field: "province", Lookup: models.LookupExact, Value: "Zamboanga del Sur"}},
				}}},
				OrderBy: []models.Order{{Field: "id"}},
				Limit:   1,
			},
		},
		{
			name:       "last reverses order",
			expr:       `Community.objects.order_by("name", "-households").last()`,
			wantMethod: "rows",
			wantPlan: models.Plan{
				RecordType: "Community",
				OrderBy:    []models.Order{{Field: "name", Desc: true}, {Field: "households"}},
				Limit:      1,
			},
		},
		{
			name:       "index",
			expr:       `Community.objects.order_by("name")[4]`,
			wantMethod: "rows",
			wantPlan: models.Plan{
				RecordType: "Community",
				OrderBy:    []models.Order{{Field: "name"}},
				Offset:     4,
				Limit:      1,
			},
		},
		{
			name:       "slice",
			expr:       `Community.objects.all()[10:20]`,
			wantMethod: "rows",
			wantPlan:   models.Plan{RecordType: "Community", Offset: 10, Limit: 10},
		},
		{
			name:       "count after slice",
			expr:       `Community.objects.all()[:5].count()`,
			wantMethod: "count",
			wantPlan:   models.Plan{RecordType: "Community", Limit: 5},
		},
		{
			name:       "date and year lookups",
			expr:       `Assessment.objects.filter(held_on__gte="2025-01-01", held_on__year=2025).count()`,
			wantMethod: "count",
			wantPlan: models.Plan{
				RecordType: "Assessment",
				Where: []models.Clause{{Groups: [][]models.Condition{{
					{Field: "held_on", Lookup: models.LookupGTE, Value: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
					{Field: "held_on", Lookup: models.LookupYear, Value: int64(2025)},
				}}}},
			},
		},
		{
			name:       "aggregate aliases",
			expr:       `WorkItem.objects.filter(status="ongoing").aggregate(Sum("budget"), n=Count("id", distinct=True))`,
			wantMethod: "aggregate",
			wantPlan: models.Plan{
				RecordType: "WorkItem",
				Where: []models.Clause{{Groups: [][]models.Condition{
					{{Field: "status", Lookup: models.LookupExact, Value: "ongoing"}},
				}}},
				Aggregates: []models.Aggregate{
					{Alias: "budget__sum", Func: models.AggSum, Field: "budget"},
					{Alias: "n", Func: models.AggCount, Field: "id", Distinct: true},
				},
			},
		},
		{
			name:       "distinct values",
			expr:       `Community.objects.values("province").distinct()`,
			wantMethod: "rows",
			wantPlan: models.Plan{
				RecordType: "Community",
				Fields:     []string{"province"},
				Distinct:   true,
				Limit:      1001,
			},
		},
		{
			name:       "number field accepts integers",
			expr:       `PolicyRecommendation.objects.filter(budget__lt=5000000).count()`,
			wantMethod: "count",
			wantPlan: models.Plan{
				RecordType: "PolicyRecommendation",
				Where: []models.Clause{{Groups: [][]models.Condition{
					{{Field: "budget", Lookup: models.LookupLT, Value: 5000000.0}},
				}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &spyStore{
				count: 3,
				rows:  []models.Record{{"id": 1}},
				agg:   map[string]interface{}{},
			}
			sb := newTestSandbox(t, store, nil)

			res := sb.Execute(context.Background(), tt.expr)
			require.True(t, res.Success, "reason: %s", res.Reason)
			require.Equal(t, []string{tt.wantMethod}, store.methods)
			assert.Equal(t, tt.wantPlan, store.plans[0])
		})
	}
}

func TestExecute_TooManyAlternatives(t *testing.T) {
	var qs []string
	for i := 0; i < 6; i++ {
		qs = append(qs, `Q(id=`+string(rune('1'+i))+`) | Q(households=0)`)
	}
	expr := `Community.objects.filter(` + strings.Join(qs, ", ") + `).count()`

	store := &spyStore{}
	res := newTestSandbox(t, store, nil).Execute(context.Background(), expr)
	assert.False(t, res.Success)
	assert.Equal(t, LayerStructural, res.Layer)
	assert.Empty(t, store.methods)
}

// ==========================
// Results
// ==========================

func TestExecute_ScenarioCount(t *testing.T) {
	store := &spyStore{count: 42}
	sb := newTestSandbox(t, store, nil)

	res := sb.Execute(context.Background(), `Community.objects.filter(region__iexact="Region IX").count()`)

	require.True(t, res.Success)
	assert.Equal(t, int64(42), res.Value)
	assert.Equal(t, models.ResultScalar, res.ResultType)
	assert.Equal(t, 1, res.ResultCount)
}

func TestExecute_RowResults(t *testing.T) {
	registered := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	store := &spyStore{rows: []models.Record{
		{"id": 1, "name": "Talon-Talon", "registered_at": registered, "households": int32(120)},
		{"id": 2, "name": "Rio Hondo", "registered_at": nil, "households": []byte("80")},
	}}
	sb := newTestSandbox(t, store, nil)

	res := sb.Execute(context.Background(), `Community.objects.filter(region="Region IX")`)
	require.True(t, res.Success)
	assert.Equal(t, models.ResultRecords, res.ResultType)
	assert.Equal(t, 2, res.ResultCount)
	assert.False(t, res.Truncated)

	records := res.Value.([]models.Record)
	assert.Equal(t, int64(1), records[0]["id"])
	assert.Equal(t, "2024-03-09", records[0]["registered_at"])
	assert.Equal(t, int64(120), records[0]["households"])
	assert.Nil(t, records[1]["registered_at"])
	assert.Equal(t, 80.0, records[1]["households"])
}

func TestExecute_Truncates(t *testing.T) {
	cfg := LoadConfig()
	cfg.MaxRows = 3
	var rows []models.Record
	for i := 0; i < 10; i++ {
		rows = append(rows, models.Record{"id": i})
	}
	store := &spyStore{rows: rows}
	sb := newTestSandbox(t, store, cfg)

	res := sb.Execute(context.Background(), `Community.objects.all()`)
	require.True(t, res.Success)
	assert.True(t, res.Truncated)
	assert.Equal(t, 3, res.ResultCount)
	assert.Equal(t, 4, store.plans[0].Limit)
}

func TestExecute_FlatValuesList(t *testing.T) {
	store := &spyStore{rows: []models.Record{{"name": "Talon-Talon"}, {"name": "Rio Hondo"}}}
	sb := newTestSandbox(t, store, nil)

	res := sb.Execute(context.Background(), `Community.objects.values_list("name", flat=True)`)
	require.True(t, res.Success)
	assert.Equal(t, []interface{}{"Talon-Talon", "Rio Hondo"}, res.Value)
	assert.Equal(t, []string{"name"}, store.plans[0].Fields)
}

func TestExecute_Get(t *testing.T) {
	tests := []struct {
		name        string
		rows        []models.Record
		wantSuccess bool
		wantReason  string
	}{
		{"exactly one", []models.Record{{"id": 7}}, true, ""},
		{"none", nil, false, "no Community matches"},
		{"several", []models.Record{{"id": 7}, {"id": 8}, {"id": 9}}, false, "more than one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &spyStore{rows: tt.rows}
			res := newTestSandbox(t, store, nil).Execute(context.Background(), `Community.objects.get(id=7)`)

			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, 2, store.plans[0].Limit)
			if !tt.wantSuccess {
				assert.Equal(t, LayerExecution, res.Layer)
				assert.Contains(t, res.Reason, tt.wantReason)
			}
		})
	}
}

func TestExecute_IndexOutOfRange(t *testing.T) {
	res := newTestSandbox(t, &spyStore{}, nil).Execute(context.Background(), `Community.objects.all()[50]`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "out of range")
}

func TestExecute_HugeSubscriptRejected(t *testing.T) {
	store := &spyStore{}
	res := newTestSandbox(t, store, nil).Execute(context.Background(), `Community.objects.all()[100000000000000000000]`)

	assert.False(t, res.Success)
	assert.Equal(t, LayerStructural, res.Layer)
	assert.Contains(t, res.Reason, "exceeds")
	assert.Empty(t, store.methods)
}

func TestExecute_Exists(t *testing.T) {
	res := newTestSandbox(t, &spyStore{}, nil).Execute(context.Background(), `Community.objects.filter(coastal=True).exists()`)
	require.True(t, res.Success)
	assert.Equal(t, false, res.Value)
	assert.Equal(t, models.ResultScalar, res.ResultType)
}

func TestExecute_Aggregate(t *testing.T) {
	store := &spyStore{agg: map[string]interface{}{"households__sum": int64(900), "avg": []byte("12.5"), "odd": struct{}{}}}
	res := newTestSandbox(t, store, nil).Execute(context.Background(),
		`Community.objects.aggregate(Sum("households"), avg=Avg("population"), odd=Max("name"))`)

	require.True(t, res.Success)
	assert.Equal(t, models.ResultAggregate, res.ResultType)
	assert.Equal(t, map[string]interface{}{"households__sum": int64(900), "avg": 12.5, "odd": "{}"}, res.Value)
	assert.Equal(t, 3, res.ResultCount)
}

func TestExecute_StoreFailure(t *testing.T) {
	store := &spyStore{err: errors.New("connection reset")}
	res := newTestSandbox(t, store, nil).Execute(context.Background(), `Community.objects.count()`)

	assert.False(t, res.Success)
	assert.Equal(t, LayerExecution, res.Layer)
	assert.Contains(t, res.Reason, "STORE_FAILURE")
}

func TestExecute_RecoversPanics(t *testing.T) {
	store := &spyStore{panic: true}
	res := newTestSandbox(t, store, nil).Execute(context.Background(), `Community.objects.count()`)

	assert.False(t, res.Success)
	assert.Equal(t, LayerExecution, res.Layer)
	assert.Len(t, store.methods, 1)
}

func TestNormalizeValue(t *testing.T) {
	day := time.Date(2025, 6, 15, 8, 30, 0, 0, time.UTC)
	tests := []struct {
		in   interface{}
		want interface{}
	}{
		{nil, nil},
		{"x", "x"},
		{true, true},
		{7, int64(7)},
		{int32(7), int64(7)},
		{uint8(7), int64(7)},
		{float32(1.5), 1.5},
		{day, "2025-06-15"},
		{&day, "2025-06-15"},
		{[]byte("Region IX"), "Region IX"},
		{[]byte("3.25"), 3.25},
		{[]int{1}, "[1]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeValue(tt.in), "%#v", tt.in)
	}
}
