// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"community-assistant/internal/assistant/pipeline"
	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/models"
)

const (
	maxBodyBytes        = 64 << 10
	defaultPopularLimit = 5
	maxPopularLimit     = 50
	probeTimeout        = 2 * time.Second
)

// Probe checks one backing service for the readiness endpoint.
type Probe func(ctx context.Context) error

// Server exposes the chat pipeline over HTTP.
type Server struct {
	pipeline *pipeline.Pipeline
	probes   map[string]Probe
	logger   logger.Logger
}

func NewServer(p *pipeline.Pipeline, probes map[string]Probe, log logger.Logger) *Server {
	if probes == nil {
		probes = map[string]Probe{}
	}
	return &Server{
		pipeline: p,
		probes:   probes,
		logger:   logger.ForComponent(log, "api"),
	}
}

// Routes returns the full handler tree, including health and metrics.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/chat/clarify", s.handleClarify)
	mux.HandleFunc("GET /api/chat/capabilities", s.handleCapabilities)
	mux.HandleFunc("GET /api/faqs/popular", s.handlePopularFAQs)
	mux.HandleFunc("GET /api/faqs/stats", s.handleFAQStats)
	mux.HandleFunc("GET /api/fallback/stats", s.handleFallbackStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.logRequests(mux)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.pipeline.Chat(r.Context(), req.UserID, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClarify(w http.ResponseWriter, r *http.Request) {
	var req models.ClarificationRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	outcome, err := s.pipeline.ApplyClarification(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Capabilities())
}

func (s *Server) handlePopularFAQs(w http.ResponseWriter, r *http.Request) {
	limit := defaultPopularLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, apperrors.NewInvalidInputError("limit must be a positive integer"))
			return
		}
		limit = min(n, maxPopularLimit)
	}

	popular, err := s.pipeline.FAQ.PopularFAQs(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"faqs": popular})
}

func (s *Server) handleFAQStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipeline.FAQ.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleFallbackStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Fallback.Stats(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports ready only when every probe passes.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	checks := make(map[string]string, len(s.probes))
	status := http.StatusOK
	for name, probe := range s.probes {
		if err := probe(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{"status": state, "checks": checks})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var stdErr *apperrors.StandardError
	if !errors.As(err, &stdErr) {
		stdErr = apperrors.NewInternalError(err)
	}

	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", map[string]interface{}{
			"code":  string(stdErr.Code),
			"error": err.Error(),
		})
	}
	writeJSON(w, status, map[string]interface{}{"error": stdErr})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeRoundLimit:
		return http.StatusConflict
	case apperrors.ErrCodeCacheUnavailable, apperrors.ErrCodeStoreFailure, apperrors.ErrCodeConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewInvalidInputError("malformed request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("HTTP request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"durationMs": time.Since(start).Milliseconds(),
		})
	})
}
