package auth

import (
	"strings"
	"sync"
)

// Session holds the bearer token of one connected user and escalates authentication
// failures reported by the API.
type Session struct {
	mu        sync.Mutex
	token     string
	cleared   bool
	fired     bool
	onUnauth  []func()
	claims    *Claims
	loginPath string
}

// NewSession creates a session for token. loginPath is where clients are sent after a 401.
func NewSession(token string, claims *Claims, loginPath string) *Session {
	return &Session{token: strings.TrimSpace(token), claims: claims, loginPath: strings.TrimSpace(loginPath)}
}

// Token returns the current bearer token, or "" once the session was cleared.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleared {
		return ""
	}
	return s.token
}

// Claims returns the validated claims the session was opened with.
func (s *Session) Claims() *Claims {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claims
}

// LoginPath is the unauthenticated entry point clients are redirected to.
func (s *Session) LoginPath() string {
	if s == nil {
		return ""
	}
	return s.loginPath
}

// ClearSession forgets the token. Later requests go out unauthenticated.
func (s *Session) ClearSession() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.cleared = true
	s.token = ""
	s.mu.Unlock()
}

// Cleared reports whether ClearSession ran.
func (s *Session) Cleared() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}

// OnUnauthorized registers a callback fired once when the API rejects the token.
func (s *Session) OnUnauthorized(fn func()) {
	if s == nil || fn == nil {
		return
	}
	s.mu.Lock()
	s.onUnauth = append(s.onUnauth, fn)
	s.mu.Unlock()
}

// Unauthorized clears the session and runs the registered callbacks. Concurrent 401s
// trigger the callbacks only once.
func (s *Session) Unauthorized() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.cleared = true
	s.token = ""
	if s.fired {
		s.mu.Unlock()
		return
	}
	s.fired = true
	callbacks := append([]func(){}, s.onUnauth...)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}
