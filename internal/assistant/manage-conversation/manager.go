// Package manageconversation keeps the rolling per-user conversation
// context: the last few exchanges, the current topic, the entities seen so
// far and a session id that lapses after inactivity.
package manageconversation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"community-assistant/internal/common/cache"
	"community-assistant/internal/common/clock"
	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/models"
)

// Turn is one answered message as recorded by the pipeline.
type Turn struct {
	UserMessage       string
	AssistantResponse string
	Intent            models.IntentResult
	Entities          models.Entities
}

type Manager struct {
	store  cache.Store
	clock  clock.Clock
	config *Config
	logger logger.Logger
}

func NewManager(store cache.Store, clk clock.Clock, config *Config, log logger.Logger) *Manager {
	if config == nil {
		config = LoadConfig()
	}
	return &Manager{
		store:  store,
		clock:  clock.OrSystem(clk),
		config: config,
		logger: logger.ForComponent(log, "manage-conversation"),
	}
}

func contextKey(userID string) string { return cache.Key("conversation", "context", userID) }
func sessionKey(userID string) string { return cache.Key("conversation", "session", userID) }

// Context returns the user's context, empty but with a live session id when
// nothing is cached.
func (m *Manager) Context(ctx context.Context, userID string) (*models.ConversationContext, error) {
	if userID == "" {
		return nil, apperrors.NewInvalidInputError("user id is required")
	}
	var cc models.ConversationContext
	err := cache.GetJSON(ctx, m.store, contextKey(userID), &cc)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrMiss):
		cc = models.ConversationContext{UserID: userID}
	default:
		return nil, apperrors.NewCacheUnavailableError("conversation context get", err)
	}
	if cc.EntitiesMentioned == nil {
		cc.EntitiesMentioned = make(map[string]bool)
	}

	sid, err := m.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	cc.SessionID = sid
	return &cc, nil
}

// session returns the live session id, minting one when it has lapsed.
func (m *Manager) session(ctx context.Context, userID string) (string, error) {
	sid, err := m.store.Get(ctx, sessionKey(userID))
	if err == nil {
		return sid, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		return "", apperrors.NewCacheUnavailableError("conversation session get", err)
	}
	sid = uuid.New().String()
	if err := m.store.Set(ctx, sessionKey(userID), sid, m.config.SessionTTL); err != nil {
		return "", apperrors.NewCacheUnavailableError("conversation session set", err)
	}
	m.logger.Debug("Conversation session started", map[string]interface{}{
		"user_id":    userID,
		"session_id": sid,
	})
	return sid, nil
}

// AddExchange appends a turn, keeping the newest MaxHistory, and refreshes
// both TTLs.
func (m *Manager) AddExchange(ctx context.Context, userID string, turn Turn) (*models.ConversationContext, error) {
	cc, err := m.Context(ctx, userID)
	if err != nil {
		return nil, err
	}

	mentioned := append(turn.Entities.Kinds(), turn.Intent.MatchedEntities...)
	topic := ClassifyTopic(turn.UserMessage, turn.Intent.MatchedEntities)
	now := m.clock.Now().UTC()

	cc.History = append(cc.History, models.Exchange{
		UserMessage:       turn.UserMessage,
		AssistantResponse: turn.AssistantResponse,
		Intent:            turn.Intent.Type,
		Confidence:        turn.Intent.Confidence,
		Topic:             topic,
		Timestamp:         now,
	})
	if n := len(cc.History); n > m.config.MaxHistory {
		cc.History = cc.History[n-m.config.MaxHistory:]
	}
	for _, e := range mentioned {
		cc.EntitiesMentioned[e] = true
	}
	cc.LastTopic = topic
	cc.UpdatedAt = now

	if err := cache.SetJSON(ctx, m.store, contextKey(userID), cc, m.config.ContextTTL); err != nil {
		return nil, apperrors.NewCacheUnavailableError("conversation context set", err)
	}
	if err := m.store.Set(ctx, sessionKey(userID), cc.SessionID, m.config.SessionTTL); err != nil {
		m.logger.Warn("Failed to refresh conversation session", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	return cc, nil
}

// ClearContext forgets the cached exchanges but keeps the session.
func (m *Manager) ClearContext(ctx context.Context, userID string) error {
	if err := m.store.Delete(ctx, contextKey(userID)); err != nil {
		return apperrors.NewCacheUnavailableError("conversation context delete", err)
	}
	return nil
}

// EndSession drops the session id and the context.
func (m *Manager) EndSession(ctx context.Context, userID string) error {
	if err := m.store.Delete(ctx, sessionKey(userID)); err != nil {
		return apperrors.NewCacheUnavailableError("conversation session delete", err)
	}
	return m.ClearContext(ctx, userID)
}

// Summary describes the cached exchanges in one sentence.
func (m *Manager) Summary(ctx context.Context, userID string) (string, error) {
	cc, err := m.Context(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(cc.History) == 0 {
		return "No conversation history available.", nil
	}
	counts := make(map[string]int)
	for _, ex := range cc.History {
		counts[ex.Topic]++
	}
	topics := make([]string, 0, len(counts))
	for t := range counts {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	return fmt.Sprintf("Conversation with %d exchanges, primarily about %s.", len(cc.History), topics[0]), nil
}

// SuggestFollowUps returns follow-ups for the user's current topic.
func (m *Manager) SuggestFollowUps(ctx context.Context, userID string) ([]string, error) {
	cc, err := m.Context(ctx, userID)
	if err != nil {
		return nil, err
	}
	topic := cc.LastTopic
	if topic == "" {
		topic = TopicGeneral
	}
	return FollowUps(topic), nil
}
