package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-assistant/internal/common/logger"
	"community-assistant/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, testRegistry(t), 5*time.Second, logger.NewTestLogger(t)), mock
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// ==========================
// Record Store
// ==========================

func TestPostgresStore_Count(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "communities" WHERE (LOWER("region") = LOWER($1))`)).
		WithArgs("Region IX").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(6)))

	n, err := store.Count(context.Background(), models.Plan{
		RecordType: "Community",
		Where:      where(models.Condition{Field: "region", Lookup: models.LookupIExact, Value: "Region IX"}),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Rows(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"name", "households"}).
		AddRow([]byte("Talon-Talon"), int64(420)).
		AddRow([]byte("Rio Hondo"), int64(310))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "name", "households" FROM "communities" WHERE ("coastal" = $1) ORDER BY "households" DESC LIMIT 2`)).
		WithArgs(true).
		WillReturnRows(rows)

	got, err := store.Rows(context.Background(), models.Plan{
		RecordType: "Community",
		Fields:     []string{"name", "households"},
		Where:      where(models.Condition{Field: "coastal", Lookup: models.LookupExact, Value: true}),
		OrderBy:    []models.Order{{Field: "households", Desc: true}},
		Limit:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Record{
		{"name": "Talon-Talon", "households": int64(420)},
		{"name": "Rio Hondo", "households": int64(310)},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Aggregate(t *testing.T) {
	t.Run("single row", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT SUM("households") AS "total" FROM "communities"`)).
			WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(int64(4290)))

		got, err := store.Aggregate(context.Background(), models.Plan{
			RecordType: "Community",
			Aggregates: []models.Aggregate{{Alias: "total", Func: models.AggSum, Field: "households"}},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"total": int64(4290)}, got)
	})

	t.Run("no rows", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT AVG`).WillReturnRows(sqlmock.NewRows([]string{"avg"}))

		got, err := store.Aggregate(context.Background(), models.Plan{
			RecordType: "Community",
			Aggregates: []models.Aggregate{{Alias: "avg", Func: models.AggAvg, Field: "population"}},
		})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestPostgresStore_Errors(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.Rows(context.Background(), models.Plan{RecordType: "Secret"})
	assert.ErrorIs(t, err, ErrUnknownRecordType)

	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("connection reset"))
	_, err = store.Count(context.Background(), models.Plan{RecordType: "Community"})
	assert.ErrorIs(t, err, ErrQueryFailed)
	assert.Contains(t, err.Error(), "connection reset")

	mock.ExpectQuery(`SELECT`).WillReturnError(sql.ErrConnDone)
	_, err = store.Rows(context.Background(), models.Plan{RecordType: "Region"})
	assert.ErrorIs(t, err, ErrQueryFailed)
}

func TestColumnValue(t *testing.T) {
	tests := []struct {
		name   string
		dbType string
		in     interface{}
		want   interface{}
	}{
		{"numeric bytes", "NUMERIC", []byte("12500000.00"), 12500000.0},
		{"decimal bytes", "DECIMAL", []byte("1.5"), 1.5},
		{"text bytes", "TEXT", []byte("Sasa"), "Sasa"},
		{"unparseable numeric", "NUMERIC", []byte("NaN?"), "NaN?"},
		{"int passthrough", "INT8", int64(3), int64(3)},
		{"nil passthrough", "TEXT", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, columnValue(tt.dbType, tt.in))
		})
	}
}

// ==========================
// Location Directory
// ==========================

func TestPostgresDirectory(t *testing.T) {
	db, mock := newMockDB(t)
	dir := NewPostgresDirectory(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT name FROM provinces`).
		WithArgs("davao del sur").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Davao del Sur"))
	name, ok, err := dir.FindProvince(ctx, "davao del sur")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Davao del Sur", name)

	mock.ExpectQuery(`SELECT name FROM provinces`).
		WithArgs("atlantis").
		WillReturnError(sql.ErrNoRows)
	_, ok, err = dir.FindProvince(ctx, "atlantis")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery(`SELECT name, province, region FROM municipalities`).
		WithArgs("iligan").
		WillReturnRows(sqlmock.NewRows([]string{"name", "province", "region"}).AddRow("Iligan City", "Lanao del Norte", "Region X"))
	m, ok, err := dir.FindMunicipality(ctx, "iligan")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.Municipality{Name: "Iligan City", Province: "Lanao del Norte", Region: "Region X"}, m)

	mock.ExpectQuery(`SELECT name, province, region FROM municipalities`).
		WillReturnError(errors.New("timeout"))
	_, _, err = dir.FindMunicipality(ctx, "glan")
	assert.ErrorIs(t, err, ErrQueryFailed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Query Log
// ==========================

func TestPostgresQueryLog(t *testing.T) {
	db, mock := newMockDB(t)
	qlog := NewPostgresQueryLog(db)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	since := now.AddDate(0, 0, -30)

	entry := models.QueryLogEntry{
		UserID: "u1", Message: "how many communities in Region IX", Response: "There are 6 communities in Region IX.",
		Intent: models.IntentDataQuery, Confidence: 1.0, Source: models.SourceTemplate,
		GeneratedQuery: `Community.objects.filter(region__iexact="Region IX").count()`, Timestamp: now,
	}
	mock.ExpectExec(`INSERT INTO chat_messages`).
		WithArgs("u1", entry.Message, entry.Response, "data_query", 1.0, "template", entry.GeneratedQuery, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, qlog.Append(ctx, entry))

	mock.ExpectQuery(`FROM chat_messages`).
		WithArgs(since, 0.7, "fallback", 10).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "message", "response", "intent", "confidence", "source", "generated_query", "created_at"}).
			AddRow("u1", entry.Message, entry.Response, "data_query", 1.0, "template", entry.GeneratedQuery, now))
	recent, err := qlog.RecentSuccessful(ctx, since, 0.7, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, entry, recent[0])

	mock.ExpectQuery(`COUNT\(\*\) FILTER`).
		WithArgs(since, 0.5).
		WillReturnRows(sqlmock.NewRows([]string{"count", "count"}).AddRow(int64(40), int64(9)))
	st, err := qlog.Stats(ctx, since, 0.5)
	require.NoError(t, err)
	assert.Equal(t, models.QueryStats{Total: 40, Failed: 9}, st)

	mock.ExpectExec(`INSERT INTO chat_messages`).WillReturnError(errors.New("read-only transaction"))
	assert.ErrorIs(t, qlog.Append(ctx, entry), ErrQueryFailed)

	assert.NoError(t, mock.ExpectationsWereMet())
}
