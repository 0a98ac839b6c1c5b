// internal/recordstore/postgres.go
package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"community-assistant/internal/common/logger"
	"community-assistant/internal/models"
	"community-assistant/pkg/registry"
)

// PostgresStore runs plans against the host system's tables through a
// read-only connection pool.
type PostgresStore struct {
	db       *sql.DB
	registry *registry.RecordRegistry
	timeout  time.Duration
	logger   logger.Logger
}

func NewPostgresStore(db *sql.DB, reg *registry.RecordRegistry, timeout time.Duration, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:       db,
		registry: reg,
		timeout:  timeout,
		logger:   logger.ForComponent(log, "postgres-store"),
	}
}

func (s *PostgresStore) builder(recordType string) (*sqlBuilder, error) {
	rt, ok := s.registry.Lookup(recordType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecordType, recordType)
	}
	return &sqlBuilder{rt: rt}, nil
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresStore) Rows(ctx context.Context, plan models.Plan) ([]models.Record, error) {
	b, err := s.builder(plan.RecordType)
	if err != nil {
		return nil, err
	}
	query := b.selectSQL(plan)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	s.logger.Debug("Rows query executed", map[string]interface{}{
		"record_type": plan.RecordType,
		"rows":        len(records),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return records, nil
}

func (s *PostgresStore) Count(ctx context.Context, plan models.Plan) (int64, error) {
	b, err := s.builder(plan.RecordType)
	if err != nil {
		return 0, err
	}
	query := b.countSQL(plan)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return n, nil
}

func (s *PostgresStore) Aggregate(ctx context.Context, plan models.Plan) (map[string]interface{}, error) {
	b, err := s.builder(plan.RecordType)
	if err != nil {
		return nil, err
	}
	query := b.aggregateSQL(plan)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	if len(records) == 0 {
		return map[string]interface{}{}, nil
	}
	return records[0], nil
}

// scanRecords reads every row into a column-keyed record. lib/pq returns
// text and numeric columns as []byte; numerics become float64.
func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	var out []models.Record
	for rows.Next() {
		values := make([]interface{}, len(types))
		ptrs := make([]interface{}, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(models.Record, len(types))
		for i, ct := range types {
			rec[ct.Name()] = columnValue(ct.DatabaseTypeName(), values[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func columnValue(dbType string, v interface{}) interface{} {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if dbType == "NUMERIC" || dbType == "DECIMAL" {
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	}
	return string(b)
}

// PostgresDirectory looks up provinces and municipalities for the location
// resolver.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) FindProvince(ctx context.Context, name string) (string, bool, error) {
	var official string
	err := d.db.QueryRowContext(ctx,
		`SELECT name FROM provinces WHERE LOWER(name) = LOWER($1) LIMIT 1`, name).Scan(&official)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return official, true, nil
}

func (d *PostgresDirectory) FindMunicipality(ctx context.Context, phrase string) (models.Municipality, bool, error) {
	var m models.Municipality
	err := d.db.QueryRowContext(ctx,
		`SELECT name, province, region FROM municipalities
		WHERE LOWER(name) = LOWER($1) OR LOWER(name) = LOWER($1) || ' city'
		ORDER BY LENGTH(name) LIMIT 1`, phrase).Scan(&m.Name, &m.Province, &m.Region)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Municipality{}, false, nil
	}
	if err != nil {
		return models.Municipality{}, false, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return m, true, nil
}

// PostgresQueryLog keeps answered exchanges in the chat_messages table.
type PostgresQueryLog struct {
	db *sql.DB
}

func NewPostgresQueryLog(db *sql.DB) *PostgresQueryLog {
	return &PostgresQueryLog{db: db}
}

func (l *PostgresQueryLog) Append(ctx context.Context, e models.QueryLogEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO chat_messages (user_id, message, response, intent, confidence, source, generated_query, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.UserID, e.Message, e.Response, string(e.Intent), e.Confidence, string(e.Source), e.GeneratedQuery, e.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return nil
}

func (l *PostgresQueryLog) RecentSuccessful(ctx context.Context, since time.Time, minConfidence float64, limit int) ([]models.QueryLogEntry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT user_id, message, response, intent, confidence, source, generated_query, created_at
		FROM chat_messages
		WHERE created_at >= $1 AND confidence >= $2 AND source <> $3
		ORDER BY created_at DESC
		LIMIT $4`, since, minConfidence, string(models.SourceFallback), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []models.QueryLogEntry
	for rows.Next() {
		var e models.QueryLogEntry
		var intent, source string
		if err := rows.Scan(&e.UserID, &e.Message, &e.Response, &intent, &e.Confidence, &source, &e.GeneratedQuery, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		e.Intent = models.IntentType(intent)
		e.Source = models.ResponseSource(source)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *PostgresQueryLog) Stats(ctx context.Context, since time.Time, failBelow float64) (models.QueryStats, error) {
	var st models.QueryStats
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE confidence < $2)
		FROM chat_messages
		WHERE created_at >= $1`, since, failBelow).Scan(&st.Total, &st.Failed)
	if err != nil {
		return models.QueryStats{}, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return st, nil
}
