package memory

import (
	"sync"

	"live-quiz-service/internal/app"
)

// SessionRegistry is the in-process implementation of app.SessionRegistry.
// Ended sessions stay in the table so their results remain queryable; only
// the per-game active slot is reconsidered when a new session registers.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
	byGame   map[string]*app.Session
	byPlayer map[string]*app.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*app.Session),
		byGame:   make(map[string]*app.Session),
		byPlayer: make(map[string]*app.Session),
	}
}

// Register stores the session unless its game already has a live one, in
// which case the existing session wins and no new one is created.
func (r *SessionRegistry) Register(s *app.Session) (*app.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byGame[s.GameID()]; ok && existing.IsActive() {
		return existing, false
	}
	r.sessions[s.ID()] = s
	r.byGame[s.GameID()] = s
	return s, true
}

func (r *SessionRegistry) Get(sessionID string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

func (r *SessionRegistry) ByPlayer(playerID string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byPlayer[playerID]
	return s, ok
}

func (r *SessionRegistry) BindPlayer(playerID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		r.byPlayer[playerID] = s
	}
}

func (r *SessionRegistry) ActiveForGame(gameID string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byGame[gameID]
	if !ok || !s.IsActive() {
		return nil, false
	}
	return s, true
}
