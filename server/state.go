package server

import (
	"sync"

	"github.com/animalabs/ragpipe/pipeline"
)

// sessionRegistry keeps one backend session per chat, so follow-up
// questions in the same conversation reuse the backend's context.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*pipeline.Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*pipeline.Session),
	}
}

func (r *sessionRegistry) get(chatID string) *pipeline.Session {
	r.mu.RLock()
	s, ok := r.sessions[chatID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[chatID]; ok {
		return s
	}
	s = &pipeline.Session{}
	r.sessions[chatID] = s
	return s
}

func (r *sessionRegistry) drop(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, chatID)
}
