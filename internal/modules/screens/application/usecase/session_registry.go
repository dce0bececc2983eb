package usecase

import (
	"context"
	"log/slog"
	"sync"

	"tripDeskWs/internal/shared/normalization"
)

// SessionRegistry tracks the live screen sessions so upstream change events can reach them.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*ScreenSession
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*ScreenSession)}
}

func (r *SessionRegistry) Register(s *ScreenSession) {
	if s == nil {
		return
	}
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
}

func (r *SessionRegistry) Unregister(s *ScreenSession) {
	if s == nil {
		return
	}
	r.mu.Lock()
	if current, ok := r.sessions[s.ID()]; ok && current == s {
		delete(r.sessions, s.ID())
	}
	r.mu.Unlock()
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ByEntity returns the live sessions whose screen shows records of entity.
func (r *SessionRegistry) ByEntity(entity string) []*ScreenSession {
	canonical := normalization.NormalizeEntity(entity)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ScreenSession, 0)
	for _, s := range r.sessions {
		if s.Screen().Entity == canonical {
			out = append(out, s)
		}
	}
	return out
}

// RefreshEntity reloads every live session bound to entity and returns how many were
// refreshed. Reloads run concurrently; failures are logged and reported to each screen.
func (r *SessionRegistry) RefreshEntity(ctx context.Context, entity string) int {
	sessions := r.ByEntity(entity)
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *ScreenSession) {
			defer wg.Done()
			if err := s.Refresh(ctx); err != nil {
				slog.Warn("screen refresh after change event failed",
					slog.String("screen", s.Screen().Name),
					slog.String("sessionId", s.ID()),
					slog.Any("error", err))
			}
		}(s)
	}
	wg.Wait()
	return len(sessions)
}
