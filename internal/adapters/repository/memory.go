package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// MemoryStore implements Store in memory. Used in tests and as a
// fallback when no database is configured; commits are atomic under
// the store mutex.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  uint64
	alerts  []model.Alert
	cycles  []string
	scores  map[string][]model.CompositeScore // cycleID -> scores
	failing error                             // when set, CommitCycle fails with it
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		scores: make(map[string][]model.CompositeScore),
	}
}

// FailCommits makes subsequent CommitCycle calls fail with err.
// Passing nil restores normal behavior. Test hook.
func (s *MemoryStore) FailCommits(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = err
}

// CommitCycle stores one cycle's output atomically.
func (s *MemoryStore) CommitCycle(_ context.Context, cycleID string, scores []model.CompositeScore, alerts []model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing != nil {
		return fmt.Errorf("commit cycle %s: %w", cycleID, s.failing)
	}

	s.cycles = append(s.cycles, cycleID)
	s.scores[cycleID] = append([]model.CompositeScore(nil), scores...)
	for _, a := range alerts {
		a.ID = s.nextID
		s.nextID++
		s.alerts = append(s.alerts, a)
	}
	return nil
}

// OpenAlertExists checks for an unacknowledged alert with the identity.
func (s *MemoryStore) OpenAlertExists(_ context.Context, id model.AlertIdentity) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.alerts {
		if !a.Acknowledged && a.Identity() == id {
			return true, nil
		}
	}
	return false, nil
}

// GetAlert returns one alert by id.
func (s *MemoryStore) GetAlert(_ context.Context, id uint64) (model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Alert{}, fmt.Errorf("alert %d: %w", id, ErrNotFound)
}

// Acknowledge marks an alert acknowledged; idempotent.
func (s *MemoryStore) Acknowledge(_ context.Context, id uint64, by string, at time.Time) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID != id {
			continue
		}
		if s.alerts[i].Acknowledged {
			return s.alerts[i], nil
		}
		s.alerts[i].Acknowledged = true
		s.alerts[i].AcknowledgedBy = by
		ackAt := at
		s.alerts[i].AcknowledgedAt = &ackAt
		return s.alerts[i], nil
	}
	return model.Alert{}, fmt.Errorf("alert %d: %w", id, ErrNotFound)
}

// ListAlerts returns alerts newest first.
func (s *MemoryStore) ListAlerts(_ context.Context, onlyOpen bool, limit int) ([]model.Alert, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Alert
	for i := len(s.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		if onlyOpen && s.alerts[i].Acknowledged {
			continue
		}
		out = append(out, s.alerts[i])
	}
	return out, nil
}

// CountOpenAlerts returns the number of unacknowledged alerts.
func (s *MemoryStore) CountOpenAlerts(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, a := range s.alerts {
		if !a.Acknowledged {
			count++
		}
	}
	return count, nil
}

// ListScores returns the latest cycle's scores, highest first.
func (s *MemoryStore) ListScores(_ context.Context, limit int) ([]model.CompositeScore, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.cycles) == 0 {
		return nil, nil
	}
	latest := s.cycles[len(s.cycles)-1]
	scores := append([]model.CompositeScore(nil), s.scores[latest]...)
	sort.Slice(scores, func(i, j int) bool { return scores[i].Composite > scores[j].Composite })
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

// GetScore returns the latest score for one subject.
func (s *MemoryStore) GetScore(_ context.Context, subjectID string) (model.CompositeScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.cycles) - 1; i >= 0; i-- {
		for _, score := range s.scores[s.cycles[i]] {
			if score.SubjectID == subjectID {
				return score, nil
			}
		}
	}
	return model.CompositeScore{}, fmt.Errorf("subject %s: %w", subjectID, ErrNotFound)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
