// Copyright 2025 Recipe Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/your-org/recipe-assistant/internal/pipeline"
)

// Registry maps session ids to live sessions. It is the only cross-session
// shared structure; the hot path only indexes it, never iterates it, so a
// plain mutex-guarded map suffices. The registry is owned by the
// connection-accepting component and injected where needed rather than being
// a process-wide singleton.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Register adds a session. Registering an id twice is an invariant
// violation and returns an error.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return fmt.Errorf("session %s already registered", s.ID)
	}
	r.sessions[s.ID] = s

	r.logger.Info("Session registered",
		zap.String("session_id", s.ID),
		zap.String("member_id", s.MemberID),
		zap.Int("active_sessions", len(r.sessions)))
	return nil
}

// Get looks up a session by id.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// Remove destroys a session's registry entry on disconnect.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)

	r.logger.Info("Session removed",
		zap.String("session_id", sessionID),
		zap.Int("active_sessions", len(r.sessions)))
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// GetCachedContext exposes a session's last retrieved documents and answer
// to downstream consumers such as the recipe builder, which use it to avoid
// re-retrieval. The documents must not be mutated.
func (r *Registry) GetCachedContext(sessionID string) ([]pipeline.Document, string, error) {
	s, ok := r.Get(sessionID)
	if !ok {
		return nil, "", fmt.Errorf("session %s not found", sessionID)
	}
	docs, answer := s.CachedContext()
	return docs, answer, nil
}
