// Package querysandbox executes generated query expressions against the
// record store after four layers of validation. Nothing reaches the store
// unless every layer accepts the expression.
package querysandbox

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/common/metrics"
	"community-assistant/internal/models"
	"community-assistant/pkg/registry"
)

// Store runs validated plans. Implementations bind every value as a parameter.
type Store interface {
	Rows(ctx context.Context, plan models.Plan) ([]models.Record, error)
	Count(ctx context.Context, plan models.Plan) (int64, error)
	Aggregate(ctx context.Context, plan models.Plan) (map[string]interface{}, error)
}

type Sandbox struct {
	registry *registry.RecordRegistry
	store    Store
	config   *Config
	logger   logger.Logger
}

func New(reg *registry.RecordRegistry, store Store, config *Config, log logger.Logger) *Sandbox {
	if config == nil {
		config = LoadConfig()
	}
	return &Sandbox{
		registry: reg,
		store:    store,
		config:   config,
		logger:   logger.ForComponent(log, "query-sandbox"),
	}
}

// Validate runs every check short of touching the store.
func (s *Sandbox) Validate(expr string) error {
	_, rej := s.prepare(expr)
	if rej != nil {
		return apperrors.NewUnsafeQueryError(rej.layer, rej.reason)
	}
	return nil
}

// Execute validates and runs expr. Failures never escape as errors or panics;
// they come back as an unsuccessful result.
func (s *Sandbox) Execute(ctx context.Context, expr string) (result models.SandboxResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Sandbox panic recovered", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			result = models.SandboxResult{Reason: "internal error while evaluating query", Layer: LayerExecution}
		}
	}()

	prog, rej := s.prepare(expr)
	if rej != nil {
		metrics.SandboxRejections.WithLabelValues(rej.layer).Inc()
		s.logger.Warn("Query rejected", map[string]interface{}{
			"layer":  rej.layer,
			"reason": rej.reason,
		})
		return models.SandboxResult{Reason: rej.reason, Layer: rej.layer}
	}

	res, err := s.run(ctx, prog)
	if err != nil {
		s.logger.Warn("Query execution failed", map[string]interface{}{
			"record_type": prog.plan.RecordType,
			"error":       err,
		})
		return models.SandboxResult{Reason: err.Error(), Layer: LayerExecution}
	}
	res.Success = true
	s.logger.Debug("Query executed", map[string]interface{}{
		"record_type":  prog.plan.RecordType,
		"result_type":  res.ResultType,
		"result_count": res.ResultCount,
	})
	return res
}

func (s *Sandbox) prepare(expr string) (*program, *rejection) {
	if rej := checkLexical(expr, s.config); rej != nil {
		return nil, rej
	}
	root, err := Parse(expr)
	if err != nil {
		return nil, reject(LayerStructural, "%v", err)
	}
	if rej := checkStructural(root); rej != nil {
		return nil, rej
	}
	if rej := checkRootNames(root, s.registry); rej != nil {
		return nil, rej
	}
	return compile(root, s.registry, s.config.MaxRows)
}

func (s *Sandbox) run(ctx context.Context, p *program) (models.SandboxResult, error) {
	switch p.op {
	case opCount:
		n, err := s.store.Count(ctx, p.plan)
		if err != nil {
			return models.SandboxResult{}, apperrors.NewStoreFailureError("count", err)
		}
		return models.SandboxResult{Value: n, ResultType: models.ResultScalar, ResultCount: 1}, nil

	case opAggregate:
		agg, err := s.store.Aggregate(ctx, p.plan)
		if err != nil {
			return models.SandboxResult{}, apperrors.NewStoreFailureError("aggregate", err)
		}
		out := make(map[string]interface{}, len(agg))
		for k, v := range agg {
			out[k] = normalizeValue(v)
		}
		return models.SandboxResult{Value: out, ResultType: models.ResultAggregate, ResultCount: len(out)}, nil
	}

	rows, err := s.store.Rows(ctx, p.plan)
	if err != nil {
		return models.SandboxResult{}, apperrors.NewStoreFailureError("rows", err)
	}

	switch p.op {
	case opExists:
		return models.SandboxResult{Value: len(rows) > 0, ResultType: models.ResultScalar, ResultCount: 1}, nil
	case opGet:
		switch len(rows) {
		case 0:
			return models.SandboxResult{}, fmt.Errorf("no %s matches the given conditions", p.plan.RecordType)
		case 1:
		default:
			return models.SandboxResult{}, fmt.Errorf("get returned more than one %s", p.plan.RecordType)
		}
	case opIndex:
		if len(rows) == 0 {
			return models.SandboxResult{}, fmt.Errorf("index %d is out of range", p.plan.Offset)
		}
	}

	var truncated bool
	if p.op == opRows && len(rows) > s.config.MaxRows {
		rows = rows[:s.config.MaxRows]
		truncated = true
	}
	records := normalizeRecords(rows)

	if p.flat {
		field := p.plan.Fields[0]
		values := make([]interface{}, len(records))
		for i, r := range records {
			values[i] = r[field]
		}
		return models.SandboxResult{Value: values, ResultType: models.ResultRecords, ResultCount: len(values), Truncated: truncated}, nil
	}
	return models.SandboxResult{Value: records, ResultType: models.ResultRecords, ResultCount: len(records), Truncated: truncated}, nil
}

func normalizeRecords(rows []models.Record) []models.Record {
	out := make([]models.Record, len(rows))
	for i, row := range rows {
		rec := make(models.Record, len(row))
		for k, v := range row {
			rec[k] = normalizeValue(v)
		}
		out[i] = rec
	}
	return out
}

// normalizeValue reduces store values to JSON primitives. Anything unknown is
// stringified.
func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil, string, bool, int64, float64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return strconv.FormatUint(x, 10)
		}
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.Format(dateLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(dateLayout)
	case []byte:
		if f, err := strconv.ParseFloat(string(x), 64); err == nil {
			return f
		}
		return string(x)
	}
	return fmt.Sprint(v)
}
