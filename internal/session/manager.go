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
	"context"

	"go.uber.org/zap"

	"github.com/your-org/recipe-assistant/internal/pipeline"
)

// HistoryWindow is the number of recent turns handed to pipeline runs.
const HistoryWindow = 5

// Manager drives the per-session turn lifecycle: it appends the inbound
// message to history, hands off to the supervisor, and on success records
// the answer and refreshes the session cache. Within a connection it is
// called strictly sequentially, which enforces the one-run-in-flight
// invariant.
type Manager struct {
	supervisor *Supervisor
	logger     *zap.Logger
}

// NewManager creates a turn manager around a supervisor.
func NewManager(supervisor *Supervisor, logger *zap.Logger) *Manager {
	return &Manager{supervisor: supervisor, logger: logger}
}

// HandleUserMessage processes one user turn end to end and returns the
// terminal result. Only a successful grounded answer updates the history and
// cache; timeouts, errors, and out-of-domain outcomes leave both untouched
// so the next turn sees the last good state.
func (m *Manager) HandleUserMessage(ctx context.Context, sess *Session, content string, notify Notifier) pipeline.Result {
	sess.AppendTurn(UserRole, content)

	result := m.supervisor.Execute(ctx, sess, content, notify)

	if result.Status == pipeline.StatusOK {
		sess.AppendTurn(AssistantRole, result.Answer)
		sess.UpdateCache(result.Documents, result.Answer)
	}

	m.logger.Info("Turn completed",
		zap.String("session_id", sess.ID),
		zap.String("status", string(result.Status)))
	return result
}

// SetConstraints replaces the session's constraint profile. The cached
// documents and answer are always cleared; they cannot be validated against
// the new constraints.
func (m *Manager) SetConstraints(sess *Session, profile pipeline.ConstraintProfile) {
	sess.SetProfile(profile)
	m.logger.Info("Constraint profile replaced",
		zap.String("session_id", sess.ID),
		zap.Int("allergies", len(profile.Allergies)),
		zap.Int("dislikes", len(profile.Dislikes)))
}
