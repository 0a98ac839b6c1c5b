// Package pipeline answers one chat message end to end: FAQ short-circuit,
// entity extraction, intent classification, the clarification gate, template
// execution, formatting and the fallback composer. A run is sequential on the
// calling goroutine and never surfaces a stage failure to the user.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	classifyintent "community-assistant/internal/assistant/classify-intent"
	composefallback "community-assistant/internal/assistant/compose-fallback"
	entityextraction "community-assistant/internal/assistant/entity-extraction"
	formatresponse "community-assistant/internal/assistant/format-response"
	manageconversation "community-assistant/internal/assistant/manage-conversation"
	matchfaq "community-assistant/internal/assistant/match-faq"
	matchtemplate "community-assistant/internal/assistant/match-template"
	requestclarification "community-assistant/internal/assistant/request-clarification"
	"community-assistant/internal/common/clock"
	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/common/metrics"
	"community-assistant/internal/common/observability"
	"community-assistant/internal/models"
	"community-assistant/pkg/registry"
)

// Stage names used in spans, logs and failure metrics.
const (
	StageFAQ           = "faq"
	StageEntities      = "entities"
	StageIntent        = "intent"
	StageClarification = "clarification"
	StageTemplates     = "templates"
	StageFallback      = "fallback"
	StageConversation  = "conversation"
	StageQueryLog      = "query_log"
)

// QueryLog records answered exchanges and serves them back to the fallback
// composer.
type QueryLog interface {
	Append(ctx context.Context, e models.QueryLogEntry) error
	composefallback.History
}

// Components are the stages a pipeline runs. QueryLog and Observability may
// be nil.
type Components struct {
	Registry      *registry.RecordRegistry
	FAQ           *matchfaq.Matcher
	Extractor     *entityextraction.Extractor
	Classifier    *classifyintent.Classifier
	Clarifier     *requestclarification.Engine
	Templates     *matchtemplate.Matcher
	Fallback      *composefallback.Composer
	Conversation  *manageconversation.Manager
	Formatter     *formatresponse.Formatter
	QueryLog      QueryLog
	Observability *observability.Observability
	Clock         clock.Clock
}

type Pipeline struct {
	Components
	config *Config
	stages *apperrors.StageHandler
	logger logger.Logger
}

func New(c Components, config *Config, log logger.Logger) *Pipeline {
	if config == nil {
		config = LoadConfig()
	}
	c.Clock = clock.OrSystem(c.Clock)
	log = logger.ForComponent(log, "pipeline")
	return &Pipeline{
		Components: c,
		config:     config,
		stages:     apperrors.NewStageHandler(log),
		logger:     log,
	}
}

// turn is what one run learned about a message.
type turn struct {
	message  string
	query    models.NormalizedQuery
	entities models.Entities
	intent   models.IntentResult
}

// Chat answers message for userID. The only error is invalid input; every
// other failure becomes a clarification, a fallback or an apology.
func (p *Pipeline) Chat(ctx context.Context, userID, message string) (resp models.ChatResponse, err error) {
	message = strings.TrimSpace(message)
	if userID == "" {
		return models.ChatResponse{}, apperrors.NewInvalidInputError("userId is required")
	}
	if message == "" {
		return models.ChatResponse{}, apperrors.NewInvalidInputError("message is required")
	}

	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "pipeline.Chat",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			stdErr := p.stages.Recovered("pipeline", r)
			metrics.StageFailures.WithLabelValues("pipeline", string(stdErr.Code)).Inc()
			span.RecordError(stdErr)
			span.SetStatus(codes.Error, "panic")
			resp = p.Formatter.Apology()
			resp.Intent = models.IntentUnknown
			resp.Source = models.SourceFallback
			err = nil
		}
		p.observe(span, resp, time.Since(start))
	}()

	t := &turn{message: message}
	resp = p.answer(ctx, t)
	p.remember(ctx, userID, t, &resp)
	return resp, nil
}

func (p *Pipeline) answer(ctx context.Context, t *turn) models.ChatResponse {
	t.query = entityextraction.Normalize(t.message)

	if resp, ok := p.matchFAQ(ctx, t); ok {
		return resp
	}

	t.entities = p.extract(ctx, t.query)
	t.intent = p.classify(ctx, t.query, t.entities)

	if !t.intent.IsDataIntent() {
		return p.finish(p.conversational(t), t, models.SourceRuleBased)
	}

	if dialog, ok := p.clarify(ctx, t); ok {
		return p.finish(p.Formatter.Clarification(dialog), t, models.SourceClarification)
	}
	return p.query(ctx, t)
}

// query runs the template stage and formats its result, or falls back.
func (p *Pipeline) query(ctx context.Context, t *turn) models.ChatResponse {
	sctx, done := p.stage(ctx, StageTemplates)
	exec, err := p.Templates.Run(sctx, t.message, t.entities, t.intent.Type)
	if err != nil {
		done("miss")
		p.fail(ctx, StageTemplates, err, map[string]interface{}{"query": t.message})
		return p.fallback(ctx, t)
	}
	done("hit")

	resp := p.Formatter.Result(exec.Result, formatresponse.Query{
		Question: t.message,
		Subject:  p.subject(exec),
		Topics:   t.intent.MatchedEntities,
		Entities: t.entities,
	})
	resp.GeneratedQuery = exec.Expression
	return p.finish(resp, t, exec.Source)
}

func (p *Pipeline) fallback(ctx context.Context, t *turn) models.ChatResponse {
	if t.intent.Type == models.IntentAnalysis {
		return p.finish(p.Formatter.AnalysisGuidance(), t, models.SourceFallback)
	}
	sctx, done := p.stage(ctx, StageFallback)
	fr := p.Fallback.Compose(sctx, composefallback.Request{
		Query:    t.message,
		Intent:   t.intent,
		Entities: t.entities,
	})
	done(fr.Analysis.LikelyIssue)
	return p.finish(p.Formatter.Fallback(fr), t, models.SourceFallback)
}

func (p *Pipeline) matchFAQ(ctx context.Context, t *turn) (models.ChatResponse, bool) {
	if p.FAQ == nil {
		return models.ChatResponse{}, false
	}
	sctx, done := p.stage(ctx, StageFAQ)
	m, ok := p.FAQ.Match(sctx, t.message)
	if !ok {
		done("miss")
		return models.ChatResponse{}, false
	}
	done(m.Tier)

	// The intent only labels the answer; entities are not extracted.
	t.intent, _ = p.Classifier.Classify(t.query, nil)
	t.entities = models.Entities{}
	resp := p.finish(p.Formatter.FAQ(m), t, models.SourceFAQ)
	resp.Confidence = m.Confidence
	return resp, true
}

func (p *Pipeline) extract(ctx context.Context, q models.NormalizedQuery) models.Entities {
	sctx, done := p.stage(ctx, StageEntities)
	entities := p.Extractor.Extract(sctx, q)
	done(fmt.Sprintf("%d", len(entities)))
	return entities
}

func (p *Pipeline) classify(ctx context.Context, q models.NormalizedQuery, entities models.Entities) models.IntentResult {
	_, done := p.stage(ctx, StageIntent)
	intent, err := p.Classifier.Classify(q, entities)
	done(string(intent.Type))
	if err != nil {
		p.fail(ctx, StageIntent, err, nil)
	}
	return intent
}

// clarify opens a dialog when the question is ambiguous. A failing session
// store lets the query proceed unclarified.
func (p *Pipeline) clarify(ctx context.Context, t *turn) (*models.ClarificationDialog, bool) {
	sctx, done := p.stage(ctx, StageClarification)
	dialog, err := p.Clarifier.Check(sctx, requestclarification.Input{
		Query:    t.message,
		Entities: t.entities,
		Intent:   t.intent,
	})
	if err != nil {
		done("error")
		p.fail(ctx, StageClarification, err, nil)
		return nil, false
	}
	if dialog == nil {
		done("clear")
		return nil, false
	}
	done(dialog.IssueType)
	return dialog, true
}

// ApplyClarification resolves a dialog. Once no further question is needed
// the refined query is answered without passing the clarification gate
// again, so a catch-all choice is not asked twice.
func (p *Pipeline) ApplyClarification(ctx context.Context, req models.ClarificationRequest) (models.ClarificationOutcome, error) {
	ctx, span := observability.Tracer().Start(ctx, "pipeline.ApplyClarification",
		trace.WithAttributes(attribute.String("session.id", req.SessionID)))
	defer span.End()

	outcome, err := p.Clarifier.Apply(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.ClarificationOutcome{}, err
	}
	if outcome.NeedsMoreClarification || outcome.RefinedQuery == "" {
		return outcome, nil
	}

	if outcome.Abandoned {
		if req.UserID == "" {
			return outcome, nil
		}
		resp, err := p.Chat(ctx, req.UserID, outcome.RefinedQuery)
		if err != nil {
			return models.ClarificationOutcome{}, err
		}
		outcome.Answer = &resp
		return outcome, nil
	}

	resp := p.answerRefined(ctx, req.UserID, outcome)
	outcome.Answer = &resp
	return outcome, nil
}

func (p *Pipeline) answerRefined(ctx context.Context, userID string, outcome models.ClarificationOutcome) (resp models.ChatResponse) {
	start := time.Now()
	span := trace.SpanFromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			stdErr := p.stages.Recovered("pipeline", r)
			span.RecordError(stdErr)
			resp = p.Formatter.Apology()
			resp.Intent = models.IntentUnknown
			resp.Source = models.SourceFallback
		}
		p.observe(span, resp, time.Since(start))
	}()

	t := &turn{message: outcome.RefinedQuery}
	t.query = entityextraction.Normalize(t.message)
	t.entities = p.extract(ctx, t.query)
	for kind, e := range outcome.Entities {
		t.entities[kind] = e
	}
	t.intent = p.classify(ctx, t.query, t.entities)

	resp = p.query(ctx, t)
	if userID != "" {
		p.remember(ctx, userID, t, &resp)
	}
	return resp
}

// Capabilities lists the intents the assistant understands and the record
// types it can query.
func (p *Pipeline) Capabilities() models.Capabilities {
	return models.Capabilities{
		Intents:              p.Classifier.Capabilities(),
		AvailableRecordTypes: p.Registry.Names(),
	}
}

// finish stamps the classification onto a formatted response.
func (p *Pipeline) finish(resp models.ChatResponse, t *turn, source models.ResponseSource) models.ChatResponse {
	resp.Source = source
	resp.Intent = t.intent.Type
	resp.Confidence = t.intent.Confidence
	if len(t.entities) > 0 {
		resp.Entities = t.entities
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []string{}
	}
	return resp
}

// remember updates the conversation and the query log. Neither failure
// affects the answer.
func (p *Pipeline) remember(ctx context.Context, userID string, t *turn, resp *models.ChatResponse) {
	if p.Conversation != nil {
		sctx, done := p.stage(ctx, StageConversation)
		cc, err := p.Conversation.AddExchange(sctx, userID, manageconversation.Turn{
			UserMessage:       t.message,
			AssistantResponse: resp.Response,
			Intent:            t.intent,
			Entities:          t.entities,
		})
		if err != nil {
			done("error")
			p.fail(ctx, StageConversation, err, map[string]interface{}{"userId": userID})
		} else {
			done("ok")
			if answeredFromData(resp.Source, t.intent) {
				resp.Suggestions = p.merge(resp.Suggestions, manageconversation.FollowUps(cc.LastTopic))
			}
		}
	}

	if p.QueryLog != nil {
		err := p.QueryLog.Append(ctx, models.QueryLogEntry{
			UserID:         userID,
			Message:        t.message,
			Response:       resp.Response,
			Intent:         resp.Intent,
			Confidence:     resp.Confidence,
			Source:         resp.Source,
			GeneratedQuery: resp.GeneratedQuery,
			Timestamp:      p.Clock.Now().UTC(),
		})
		if err != nil {
			p.fail(ctx, StageQueryLog, apperrors.NewStoreFailureError("query log append", err), nil)
		}
	}
}

func answeredFromData(source models.ResponseSource, intent models.IntentResult) bool {
	return intent.IsDataIntent() && (source == models.SourceTemplate || source == models.SourceRuleBased)
}

func (p *Pipeline) merge(base, extra []string) []string {
	out := append([]string(nil), base...)
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if len(out) >= p.config.MaxSuggestions {
			break
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// subject is the display name of the record type an execution queried.
func (p *Pipeline) subject(exec *matchtemplate.Execution) string {
	name := ""
	if exec.Template != nil {
		name = exec.Template.RecordType
	} else if root, _, ok := strings.Cut(exec.Expression, "."); ok {
		name = root
	}
	if rt, ok := p.Registry.Lookup(name); ok {
		return rt.DisplayName
	}
	return ""
}

// stage opens a child span for one pipeline stage. The returned func ends
// it with an outcome label and records the stage duration.
func (p *Pipeline) stage(ctx context.Context, name string) (context.Context, func(outcome string)) {
	sctx, span := observability.Tracer().Start(ctx, "pipeline."+name)
	start := time.Now()
	return sctx, func(outcome string) {
		span.SetAttributes(attribute.String("stage.outcome", outcome))
		span.End()
		p.Observability.RecordStage(ctx, name, outcome, time.Since(start))
	}
}

func (p *Pipeline) fail(ctx context.Context, stage string, err error, fields map[string]interface{}) {
	stdErr := p.stages.Handle(stage, err, fields)
	metrics.StageFailures.WithLabelValues(stage, string(stdErr.Code)).Inc()
	trace.SpanFromContext(ctx).AddEvent("stage.failed", trace.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("error.code", string(stdErr.Code)),
	))
}

func (p *Pipeline) observe(span trace.Span, resp models.ChatResponse, elapsed time.Duration) {
	metrics.RequestsTotal.WithLabelValues(string(resp.Source), string(resp.Intent)).Inc()
	metrics.RequestDuration.WithLabelValues(string(resp.Source)).Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.String("response.source", string(resp.Source)),
		attribute.String("intent.type", string(resp.Intent)),
		attribute.Float64("intent.confidence", resp.Confidence),
	)
	p.logger.Info("Message answered", map[string]interface{}{
		"source":     string(resp.Source),
		"intent":     string(resp.Intent),
		"confidence": resp.Confidence,
		"durationMs": elapsed.Milliseconds(),
	})
}
