package entityextraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-assistant/internal/common/clock"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/models"
)

// ==========================
// Test doubles
// ==========================

type stubDirectory struct {
	provinces      map[string]string
	municipalities map[string]models.Municipality
	err            error
}

func (d *stubDirectory) FindProvince(_ context.Context, name string) (string, bool, error) {
	if d.err != nil {
		return "", false, d.err
	}
	v, ok := d.provinces[name]
	return v, ok, nil
}

func (d *stubDirectory) FindMunicipality(_ context.Context, phrase string) (models.Municipality, bool, error) {
	if d.err != nil {
		return models.Municipality{}, false, d.err
	}
	m, ok := d.municipalities[phrase]
	return m, ok, nil
}

type panicResolver struct{}

func (panicResolver) Kind() models.EntityKind { return models.KindStatus }
func (panicResolver) Resolve(context.Context, models.NormalizedQuery) (models.Entity, bool, error) {
	panic("boom")
}

type failingResolver struct{}

func (failingResolver) Kind() models.EntityKind { return models.KindSector }
func (failingResolver) Resolve(context.Context, models.NormalizedQuery) (models.Entity, bool, error) {
	return nil, false, errors.New("lookup failed")
}

var fixedNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func resolve(t *testing.T, r Resolver, message string) (models.Entity, bool) {
	t.Helper()
	e, ok, err := r.Resolve(context.Background(), Normalize(message))
	require.NoError(t, err)
	return e, ok
}

// ==========================
// Location
// ==========================

func TestLocationResolver(t *testing.T) {
	dir := &stubDirectory{
		provinces: map[string]string{"zamboanga del sur": "Zamboanga del Sur"},
		municipalities: map[string]models.Municipality{
			"pagadian city": {Name: "Pagadian City", Province: "Zamboanga del Sur", Region: "Region IX"},
		},
	}

	tests := []struct {
		name       string
		directory  LocationDirectory
		message    string
		wantValue  string
		wantType   string
		wantCode   string
		confidence float64
		validated  bool
	}{
		{"official region name", nil, "How many communities in Region IX?", "Region IX", models.LocationRegion, "IX", 0.95, true},
		{"numeric region", nil, "workshops in region 9", "Region IX", models.LocationRegion, "IX", 0.95, true},
		{"short code", nil, "r10 communities", "Region X", models.LocationRegion, "X", 0.85, true},
		{"longer region wins", nil, "projects in region xii", "Region XII", models.LocationRegion, "XII", 0.95, true},
		{"province beats region prefix", dir, "communities in zamboanga del sur", "Zamboanga del Sur", models.LocationProvince, "", 0.92, true},
		{"unvalidated province", nil, "communities in davao del sur", "Davao Del Sur", models.LocationProvince, "", 0.92 * 0.9, false},
		{"municipality from directory", dir, "workshops in Pagadian City", "Pagadian City", models.LocationMunicipality, "", 0.90, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := resolve(t, NewLocationResolver(tt.directory), tt.message)
			require.True(t, ok)
			loc, isLoc := e.(models.LocationEntity)
			require.True(t, isLoc)
			assert.Equal(t, tt.wantValue, loc.Value)
			assert.Equal(t, tt.wantType, loc.LocationType)
			assert.Equal(t, tt.wantCode, loc.Code)
			assert.InDelta(t, tt.confidence, loc.Confidence, 1e-9)
			assert.Equal(t, tt.validated, loc.Validated)
		})
	}
}

func TestLocationResolver_NoMatch(t *testing.T) {
	_, ok := resolve(t, NewLocationResolver(&stubDirectory{}), "show me communities")
	assert.False(t, ok)

	_, ok = resolve(t, NewLocationResolver(nil), "comunitys in regon 9")
	assert.False(t, ok)
}

func TestLocationResolver_DirectoryError(t *testing.T) {
	r := NewLocationResolver(&stubDirectory{err: errors.New("connection refused")})

	e, ok := resolve(t, r, "communities in zamboanga del sur")
	require.True(t, ok, "province still resolves without validation")
	assert.False(t, e.(models.LocationEntity).Validated)

	_, _, err := r.Resolve(context.Background(), Normalize("workshops in pagadian city"))
	assert.Error(t, err)
}

// ==========================
// Date range
// ==========================

func TestDateRangeResolver(t *testing.T) {
	r := NewDateRangeResolver(clock.Fixed(fixedNow))
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		message    string
		start, end time.Time
		confidence float64
	}{
		{"workshops in the last 30 days", day(2025, time.May, 16), fixedNow, 1.0},
		{"projects from the past 2 weeks", day(2025, time.June, 1), fixedNow, 1.0},
		{"last 3 months", fixedNow.AddDate(0, 0, -90).Truncate(24 * time.Hour), fixedNow, 1.0},
		{"assessments this year", day(2025, time.January, 1), fixedNow, 1.0},
		{"policies from last year", day(2024, time.January, 1), time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC), 1.0},
		{"recent workshops", day(2025, time.May, 16), fixedNow, 0.85},
		{"from january to march 2024", day(2024, time.January, 1), time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC), 0.95},
		{"events in march 2024", day(2024, time.March, 1), time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC), 0.95},
		{"projects in 2023", day(2023, time.January, 1), time.Date(2023, time.December, 31, 23, 59, 59, 0, time.UTC), 0.90},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			e, ok := resolve(t, r, tt.message)
			require.True(t, ok)
			dr := e.(models.DateRangeEntity)
			assert.True(t, tt.start.Equal(dr.Start), "start %s", dr.Start)
			assert.True(t, tt.end.Equal(dr.End), "end %s", dr.End)
			assert.Equal(t, tt.confidence, dr.Confidence)
			assert.False(t, dr.Start.After(dr.End))
		})
	}

	_, ok := resolve(t, r, "how many communities")
	assert.False(t, ok)
}

// ==========================
// Numbers and budget
// ==========================

func TestNumbersResolver(t *testing.T) {
	tests := []struct {
		message    string
		want       []int
		confidence float64
	}{
		{"top 5 communities with 3 projects", []int{5, 3}, 1.0},
		{"the first two workshops", []int{1, 2}, 0.95},
		{"5 or five", []int{5}, 1.0},
		{"3rd quarter", []int{3}, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			e, ok := resolve(t, NumbersResolver{}, tt.message)
			require.True(t, ok)
			n := e.(models.NumbersEntity)
			assert.Equal(t, tt.want, n.Numbers)
			assert.Equal(t, tt.confidence, n.Confidence)
		})
	}

	_, ok := resolve(t, NumbersResolver{}, "budget of 1.5 million")
	assert.False(t, ok, "decimals are not whole numbers")
}

func TestBudgetRangeResolver(t *testing.T) {
	tests := []struct {
		message    string
		min, max   float64
		confidence float64
	}{
		{"projects under 5 million", 0, 5e6, 0.95},
		{"programs above 2.5 million", 2.5e6, 0, 0.95},
		{"between 2 and 4 million", 2e6, 4e6, 0.95},
		{"a 10 million budget", 9e6, 11e6, 0.90},
		{"less than 500k", 0, 5e5, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			e, ok := resolve(t, BudgetRangeResolver{}, tt.message)
			require.True(t, ok)
			b := e.(models.BudgetRangeEntity)
			assert.InDelta(t, tt.min, b.Min, 1e-6)
			assert.InDelta(t, tt.max, b.Max, 1e-6)
			assert.Equal(t, tt.confidence, b.Confidence)
		})
	}

	_, ok := resolve(t, BudgetRangeResolver{}, "communities with over 100 households")
	assert.False(t, ok)
}

// ==========================
// Dictionaries
// ==========================

func TestDictionaryResolvers(t *testing.T) {
	byKind := make(map[models.EntityKind]Resolver)
	for _, r := range DictionaryResolvers() {
		byKind[r.Kind()] = r
	}

	tests := []struct {
		kind       models.EntityKind
		message    string
		want       string
		confidence float64
	}{
		{models.KindLivelihood, "fishing communities", "fishing", 0.95},
		{models.KindLivelihood, "fisherfolk in zamboanga", "fishing", 0.90},
		{models.KindEthnicGroup, "maranao communities", "Meranaw", 0.90},
		{models.KindStatus, "completed projects", "completed", 0.95},
		{models.KindStatus, "active projects", "ongoing", 0.90},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.message, func(t *testing.T) {
			e, ok := resolve(t, byKind[tt.kind], tt.message)
			require.True(t, ok)
			assert.Equal(t, tt.want, e.Text())
			assert.Equal(t, tt.confidence, e.Score())
		})
	}

	_, ok := resolve(t, byKind[models.KindLivelihood], "selfish requests")
	assert.False(t, ok, "variants only match on word boundaries")
}

// ==========================
// Extractor
// ==========================

func TestExtractor_ScenarioA(t *testing.T) {
	x := NewExtractor(nil, clock.Fixed(fixedNow), logger.NewTestLogger(t))

	entities := x.Extract(context.Background(), Normalize("how many communities in Region IX"))

	loc, ok := entities.Location()
	require.True(t, ok)
	assert.Equal(t, "Region IX", loc.Value)
	assert.False(t, entities.Has(models.KindDateRange))
}

func TestExtractor_IsolatesFailures(t *testing.T) {
	x := NewExtractorWith(logger.NewNoOpLogger(),
		panicResolver{},
		failingResolver{},
		NewLocationResolver(nil),
		NumbersResolver{},
	)

	entities := x.Extract(context.Background(), Normalize("top 3 communities in region x"))

	assert.False(t, entities.Has(models.KindStatus))
	assert.False(t, entities.Has(models.KindSector))
	assert.Equal(t, "Region X", entities.Text(models.KindLocation))
	assert.Equal(t, "3", entities.Text(models.KindNumbers))
}

func TestExtractor_ConfidenceBounds(t *testing.T) {
	x := NewExtractor(nil, clock.Fixed(fixedNow), logger.NewNoOpLogger())
	messages := []string{
		"fishing communities in zamboanga del norte from the last 6 months",
		"completed projects under 5 million in region xi",
		"maranao weavers in the first quarter of 2024",
		"",
	}
	for _, m := range messages {
		for kind, e := range x.Extract(context.Background(), Normalize(m)) {
			assert.GreaterOrEqual(t, e.Score(), 0.0, kind)
			assert.LessOrEqual(t, e.Score(), 1.0, kind)
		}
	}
}

func TestSummaryAndValidate(t *testing.T) {
	assert.Equal(t, "No entities detected", Summary(nil))

	entities := models.Entities{
		models.KindLocation:   models.LocationEntity{Value: "Region IX", Confidence: 0.4},
		models.KindLivelihood: models.TermEntity{EntityKind: models.KindLivelihood, Value: "fishing", Confidence: 0.2},
		models.KindDateRange: models.DateRangeEntity{
			Start: fixedNow, End: fixedNow.AddDate(0, 0, -1), Label: "bad", Confidence: 0.9,
		},
	}
	assert.Equal(t, "Found: date range: bad, livelihood: fishing, location: Region IX", Summary(entities))

	problems := Validate(entities)
	assert.Contains(t, problems, "Low confidence location: Region IX")
	assert.Contains(t, problems, "Invalid date range: start date after end date")
	assert.Contains(t, problems, "Very low confidence for livelihood")
	assert.Len(t, problems, 3)
}
