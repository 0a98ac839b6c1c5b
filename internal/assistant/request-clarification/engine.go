// Package requestclarification detects ambiguous data questions and runs the
// multiple-choice dialog that resolves them. Dialog state lives in the cache
// store under an opaque session id.
package requestclarification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"community-assistant/internal/common/cache"
	"community-assistant/internal/common/clock"
	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/common/metrics"
	"community-assistant/internal/models"
)

type Engine struct {
	rules  []Rule
	store  cache.Store
	clock  clock.Clock
	config *Config
	logger logger.Logger
}

func NewEngine(store cache.Store, clk clock.Clock, config *Config, log logger.Logger) *Engine {
	if config == nil {
		config = LoadConfig()
	}
	return &Engine{
		rules:  Rules(),
		store:  store,
		clock:  clock.OrSystem(clk),
		config: config,
		logger: logger.ForComponent(log, "request-clarification"),
	}
}

func sessionKey(id string) string { return cache.Key("clarification", id) }

// Evaluate returns the highest-priority rule that fires for in, ignoring
// issues listed in answered.
func (e *Engine) Evaluate(in Input, answered []string) (Rule, bool) {
	for _, r := range e.rules {
		if contains(answered, r.ID) {
			continue
		}
		if r.Predicate(in) {
			return r, true
		}
	}
	return Rule{}, false
}

// Check opens a clarification session when in is ambiguous. A nil dialog
// means the query can proceed.
func (e *Engine) Check(ctx context.Context, in Input) (*models.ClarificationDialog, error) {
	rule, ok := e.Evaluate(in, nil)
	if !ok {
		return nil, nil
	}
	return e.open(ctx, rule, in, 1, nil)
}

func (e *Engine) open(ctx context.Context, rule Rule, in Input, round int, answered []string) (*models.ClarificationDialog, error) {
	id := uuid.New().String()
	session := models.ClarificationSession{
		SessionID:     id,
		IssueType:     rule.ID,
		OriginalQuery: in.Query,
		Entities:      in.Entities,
		Intent:        in.Intent,
		Round:         round,
		Answered:      answered,
		CreatedAt:     e.clock.Now().UTC(),
	}
	if session.Entities == nil {
		session.Entities = models.Entities{}
	}
	if err := cache.SetJSON(ctx, e.store, sessionKey(id), session, e.config.SessionTTL); err != nil {
		return nil, apperrors.NewCacheUnavailableError("clarification session set", err)
	}
	metrics.ClarificationsActive.Inc()

	e.logger.Info("Clarification requested", map[string]interface{}{
		"sessionId": id,
		"issueType": rule.ID,
		"round":     round,
	})

	return &models.ClarificationDialog{
		ClarificationID: fmt.Sprintf("%s_%s", rule.ID, id[:8]),
		SessionID:       id,
		IssueType:       rule.ID,
		Question:        rule.Question,
		Options:         append([]models.ClarificationOption(nil), rule.Options...),
		Priority:        rule.priorityLabel(),
		Round:           round,
	}, nil
}

// Apply refines the session's query with the chosen option and re-checks
// it. A follow-up dialog is opened while rules keep firing, up to
// MaxRounds. A missing session yields req.OriginalQuery unchanged with
// Abandoned set.
func (e *Engine) Apply(ctx context.Context, req models.ClarificationRequest) (models.ClarificationOutcome, error) {
	if req.SessionID == "" {
		return models.ClarificationOutcome{}, apperrors.NewInvalidInputError("sessionId is required")
	}
	if req.Choice == "" {
		return models.ClarificationOutcome{}, apperrors.NewInvalidInputError("choice is required")
	}

	var session models.ClarificationSession
	err := cache.GetJSON(ctx, e.store, sessionKey(req.SessionID), &session)
	switch {
	case errors.Is(err, cache.ErrMiss):
		e.logger.Warn("Clarification session abandoned", map[string]interface{}{
			"sessionId": req.SessionID,
			"error":     apperrors.NewSessionNotFoundError(req.SessionID),
		})
		return models.ClarificationOutcome{
			RefinedQuery: req.OriginalQuery,
			Entities:     models.Entities{},
			Abandoned:    true,
		}, nil
	case err != nil:
		return models.ClarificationOutcome{}, apperrors.NewCacheUnavailableError("clarification session get", err)
	}

	rule, ok := ruleByID(session.IssueType)
	if !ok {
		return models.ClarificationOutcome{}, apperrors.NewInternalError(fmt.Errorf("session %s has unknown issue type %q", session.SessionID, session.IssueType))
	}
	if !rule.hasOption(req.Choice) {
		return models.ClarificationOutcome{}, apperrors.NewInvalidInputError(
			fmt.Sprintf("%q is not an option for %s", req.Choice, rule.ID))
	}

	entities := session.Entities.Clone()
	refined := refine(rule.ID, req.Choice, session.OriginalQuery, entities, e.clock.Now())
	answered := append(append([]string(nil), session.Answered...), rule.ID)

	e.close(ctx, session.SessionID)

	outcome := models.ClarificationOutcome{RefinedQuery: refined, Entities: entities}
	e.logger.Info("Clarification applied", map[string]interface{}{
		"sessionId":    session.SessionID,
		"issueType":    rule.ID,
		"choice":       req.Choice,
		"refinedQuery": refined,
	})

	in := Input{Query: refined, Entities: entities, Intent: session.Intent}
	next, more := e.Evaluate(in, answered)
	if !more {
		return outcome, nil
	}
	if session.Round >= e.config.MaxRounds {
		e.logger.WithError(apperrors.NewRoundLimitError(session.Round)).Warn("Clarification chain stopped", map[string]interface{}{
			"sessionId": session.SessionID,
			"pending":   next.ID,
		})
		return outcome, nil
	}

	dialog, err := e.open(ctx, next, in, session.Round+1, answered)
	if err != nil {
		return models.ClarificationOutcome{}, err
	}
	outcome.NeedsMoreClarification = true
	outcome.Next = dialog
	return outcome, nil
}

// Session returns the stored state behind a dialog.
func (e *Engine) Session(ctx context.Context, sessionID string) (*models.ClarificationSession, error) {
	var session models.ClarificationSession
	err := cache.GetJSON(ctx, e.store, sessionKey(sessionID), &session)
	switch {
	case errors.Is(err, cache.ErrMiss):
		return nil, apperrors.NewSessionNotFoundError(sessionID)
	case err != nil:
		return nil, apperrors.NewCacheUnavailableError("clarification session get", err)
	}
	return &session, nil
}

// close drops a resolved session. Failures only leave it to expire.
func (e *Engine) close(ctx context.Context, sessionID string) {
	if err := e.store.Delete(ctx, sessionKey(sessionID)); err != nil {
		e.logger.WithError(err).Warn("Failed to delete clarification session", map[string]interface{}{
			"sessionId": sessionID,
		})
		return
	}
	metrics.ClarificationsActive.Dec()
}
