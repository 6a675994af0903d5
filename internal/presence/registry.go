// Package presence tracks which users currently have live sessions and
// routes user ids to those sessions. The registry is purely in-memory and
// is the sole source of truth for the online status exposed to clients.
package presence

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Session is one live connection bound to an authenticated user. The
// registry only needs an identity and a way to push payloads, so the
// transport stays out of this package.
type Session interface {
	ID() string
	UserID() int64
	Send(payload any) error
}

// Registry maps user ids to their active sessions. A user may hold any
// number of concurrent sessions (multi-tab); they count as online while
// at least one remains.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]map[string]Session),
	}
}

// Add registers a session under its user.
func (r *Registry) Add(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[s.UserID()] == nil {
		r.sessions[s.UserID()] = make(map[string]Session)
	}
	r.sessions[s.UserID()][s.ID()] = s
}

// Remove deregisters a session. The user leaves the presence set only
// when their last session is removed. Safe to call more than once.
func (r *Registry) Remove(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if byID, ok := r.sessions[s.UserID()]; ok {
		delete(byID, s.ID())
		if len(byID) == 0 {
			delete(r.sessions, s.UserID())
		}
	}
}

// IsOnline reports whether the user has at least one live session.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// Snapshot returns the full set of online user ids, sorted.
func (r *Registry) Snapshot() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := lo.Keys(r.sessions)
	slices.Sort(ids)
	return ids
}

// Route returns the user's live sessions; empty when offline.
func (r *Registry) Route(userID int64) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.sessions[userID])
}

// Sessions returns every live session across all users.
func (r *Registry) Sessions() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []Session
	for _, byID := range r.sessions {
		all = append(all, lo.Values(byID)...)
	}
	return all
}
