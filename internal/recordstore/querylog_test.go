// internal/recordstore/querylog_test.go
package recordstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-assistant/internal/models"
)

func TestMemoryQueryLog(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	since := now.AddDate(0, 0, -30)

	qlog := NewMemoryQueryLog()
	entries := []models.QueryLogEntry{
		{Message: "too old", Confidence: 0.9, Source: models.SourceTemplate, Timestamp: since.Add(-time.Hour)},
		{Message: "count communities", Confidence: 0.9, Source: models.SourceTemplate, Timestamp: now.Add(-3 * time.Hour)},
		{Message: "asdf", Confidence: 0.2, Source: models.SourceFallback, Timestamp: now.Add(-2 * time.Hour)},
		{Message: "maybe", Confidence: 0.6, Source: models.SourceRuleBased, Timestamp: now.Add(-90 * time.Minute)},
		{Message: "what is obcms", Confidence: 1.0, Source: models.SourceFAQ, Timestamp: now.Add(-time.Hour)},
		{Message: "list provinces", Confidence: 0.8, Source: models.SourceRuleBased, Timestamp: now},
	}
	for _, e := range entries {
		require.NoError(t, qlog.Append(ctx, e))
	}

	t.Run("recent successful newest first", func(t *testing.T) {
		got, err := qlog.RecentSuccessful(ctx, since, 0.7, 0)
		require.NoError(t, err)
		var messages []string
		for _, e := range got {
			messages = append(messages, e.Message)
		}
		assert.Equal(t, []string{"list provinces", "what is obcms", "count communities"}, messages)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := qlog.RecentSuccessful(ctx, since, 0.7, 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("stats", func(t *testing.T) {
		st, err := qlog.Stats(ctx, since, 0.5)
		require.NoError(t, err)
		assert.Equal(t, models.QueryStats{Total: 5, Failed: 1}, st)
	})
}
