// internal/common/errors/handler.go
package errors

import (
	"fmt"
	"time"
)

// StageHandler converts stage-local failures into StandardErrors and logs them
// with pipeline context. It never re-raises.
type StageHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewStageHandler(logger Logger) *StageHandler {
	return &StageHandler{logger: logger}
}

// Handle normalizes err, logs it against the stage and returns the normalized form.
// Expected outcomes (ambiguity, no template, unknown intent) log at warn level.
func (h *StageHandler) Handle(stage string, err error, fields map[string]interface{}) *StandardError {
	if err == nil {
		return nil
	}
	stdErr := h.normalizeError(err)

	logFields := map[string]interface{}{
		"stage":     stage,
		"errorCode": string(stdErr.Code),
		"category":  GetErrorCategory(stdErr.Code),
		"retryable": stdErr.Retryable,
		"details":   stdErr.Details,
	}
	for k, v := range fields {
		logFields[k] = v
	}

	if h.logger == nil {
		return stdErr
	}
	if isExpected(stdErr.Code) {
		h.logger.Warn("stage fell through", logFields)
	} else {
		h.logger.Error("stage failed", logFields)
	}
	return stdErr
}

// Recovered turns a recovered panic value into a StandardError.
func (h *StageHandler) Recovered(stage string, r interface{}) *StandardError {
	var err error
	switch v := r.(type) {
	case error:
		err = v
	default:
		err = &StandardError{Code: ErrCodeInternal, Message: "panic", Details: toString(v), Timestamp: time.Now().UTC()}
	}
	return h.Handle(stage, err, map[string]interface{}{"panic": true})
}

// normalizeError ensures we always have a StandardError
func (h *StageHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	code := CodeOf(err)
	return &StandardError{
		Code:      code,
		Message:   err.Error(),
		Details:   err.Error(),
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func isExpected(code ErrorCode) bool {
	switch code {
	case ErrCodeAmbiguousQuery, ErrCodeNoMatchingTemplate, ErrCodeUnknownIntent, ErrCodeUnsafeQuery, ErrCodeSessionNotFound:
		return true
	default:
		return false
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
