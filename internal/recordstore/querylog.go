// internal/recordstore/querylog.go
package recordstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"community-assistant/internal/models"
)

// MemoryQueryLog keeps exchanges in process, newest last.
type MemoryQueryLog struct {
	mu      sync.RWMutex
	entries []models.QueryLogEntry
}

func NewMemoryQueryLog() *MemoryQueryLog {
	return &MemoryQueryLog{}
}

func (l *MemoryQueryLog) Append(_ context.Context, e models.QueryLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

// RecentSuccessful returns non-fallback exchanges at or above minConfidence
// since the given time, newest first.
func (l *MemoryQueryLog) RecentSuccessful(_ context.Context, since time.Time, minConfidence float64, limit int) ([]models.QueryLogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.QueryLogEntry
	for _, e := range l.entries {
		if e.Timestamp.Before(since) || !e.Successful(minConfidence) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *MemoryQueryLog) Stats(_ context.Context, since time.Time, failBelow float64) (models.QueryStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var st models.QueryStats
	for _, e := range l.entries {
		if e.Timestamp.Before(since) {
			continue
		}
		st.Total++
		if e.Confidence < failBelow {
			st.Failed++
		}
	}
	return st, nil
}
