package hub

import (
	"sort"
	"sync"
)

// Registry maps hub slugs to their sessions. It is the only structure
// shared between hubs.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Replace registers s under its slug. A session previously registered
// under the same slug has its timers cancelled before s becomes visible
// and is returned so the caller can Stop it.
func (r *Registry) Replace(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sessions[s.Slug()]
	if prev != nil && prev != s {
		prev.cancelTimers()
	} else {
		prev = nil
	}
	r.sessions[s.Slug()] = s
	return prev
}

// Remove unregisters s if it is still the session registered under its slug.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[s.Slug()] != s {
		return false
	}
	delete(r.sessions, s.Slug())
	return true
}

// Get returns the session registered under hubSlug.
func (r *Registry) Get(hubSlug string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[hubSlug]
	return s, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Slugs returns the registered hub slugs in sorted order.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Sessions returns the registered sessions ordered by slug.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug() < out[j].Slug() })
	return out
}

// Default returns the session with the lowest slug, used by the
// single-hub routes.
func (r *Registry) Default() (*Session, bool) {
	sessions := r.Sessions()
	if len(sessions) == 0 {
		return nil, false
	}
	return sessions[0], true
}

// Clear unregisters every session and returns them.
func (r *Registry) Clear() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for k, s := range r.sessions {
		out = append(out, s)
		delete(r.sessions, k)
	}
	return out
}
