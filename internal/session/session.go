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

// Package session owns per-connection conversation state and the supervised
// execution of pipeline runs. A session is created when a connection opens,
// mutated only through its own connection's handler, and destroyed on
// disconnect.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/your-org/recipe-assistant/internal/pipeline"
)

// Role identifies who produced a turn.
type Role string

const (
	// UserRole marks a turn written by the user.
	UserRole Role = "user"
	// AssistantRole marks a turn written by the assistant.
	AssistantRole Role = "assistant"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the conversational state of one connection: history, the
// active constraint profile, and the documents and answer of the last
// successful turn. The cached document slice aliases the pipeline's result;
// documents are immutable after construction so sharing is safe.
type Session struct {
	ID        string
	MemberID  string
	CreatedAt time.Time

	mu         sync.Mutex
	turns      []Turn
	profile    pipeline.ConstraintProfile
	cachedDocs []pipeline.Document
	cachedAns  string
}

// New creates a session with a fresh identifier. memberID may be empty for
// anonymous connections.
func New(memberID string) *Session {
	return &Session{
		ID:        GenerateSessionID(),
		MemberID:  memberID,
		CreatedAt: time.Now(),
	}
}

// GenerateSessionID returns a unique session identifier.
func GenerateSessionID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return fmt.Sprintf("sess_%d", time.Now().UnixNano())
	}
	return "sess_" + hex.EncodeToString(bytes)
}

// SetProfile replaces the constraint profile and clears the cached documents
// and answer. Prior retrieval cannot be validated against new constraints,
// so the cache always goes.
func (s *Session) SetProfile(profile pipeline.ConstraintProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile
	s.cachedDocs = nil
	s.cachedAns = ""
}

// Profile returns the active constraint profile.
func (s *Session) Profile() pipeline.ConstraintProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// AppendTurn records one utterance at the end of the history.
func (s *Session) AppendTurn(role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Text: text, Timestamp: time.Now()})
}

// History renders the most recent turns oldest-first as "role: text" lines,
// the shape the pipeline prompts expect.
func (s *Session) History(maxTurns int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.turns
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Text))
	}
	return lines
}

// Turns returns a copy of the full conversation history.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// UpdateCache stores the documents and answer of a successful turn. Callers
// must not mutate docs after handing it over.
func (s *Session) UpdateCache(docs []pipeline.Document, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedDocs = docs
	s.cachedAns = answer
}

// CachedContext returns the documents and answer of the last successful
// turn. The returned slice must be treated as read-only.
func (s *Session) CachedContext() ([]pipeline.Document, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedDocs, s.cachedAns
}
