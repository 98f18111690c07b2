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

package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/your-org/recipe-assistant/internal/pipeline"
	"github.com/your-org/recipe-assistant/internal/recipes"
	"github.com/your-org/recipe-assistant/internal/session"
)

// outOfDomainMessage is what the client sees when the pipeline reports an
// out-of-domain conversation. The pipeline's internal signal never reaches
// the wire.
const outOfDomainMessage = "저는 레시피와 요리에 관한 질문만 도와드릴 수 있어요. 요리에 대해 물어봐 주세요!"

// thinkingMessage acknowledges a user message before the pipeline starts.
const thinkingMessage = "생각 중..."

// RecipeBuilder produces a structured recipe from a session's conversation.
// Satisfied by *recipes.Builder.
type RecipeBuilder interface {
	Build(ctx context.Context, req recipes.BuildRequest) (recipes.Recipe, error)
}

// Archiver persists finished conversations and built recipes. Satisfied by
// *archive.Store. Archiving is best-effort; failures are logged, never
// surfaced to the client.
type Archiver interface {
	SaveConversation(ctx context.Context, sessionID, memberID string, turns []session.Turn) error
	SaveRecipe(ctx context.Context, sessionID, memberID string, recipe recipes.Recipe) error
}

// Handler owns the websocket endpoint. One goroutine per connection runs the
// read loop; within a connection, messages are handled strictly in order, so
// at most one pipeline run is ever in flight per session.
type Handler struct {
	registry *session.Registry
	manager  *session.Manager
	builder  RecipeBuilder
	archiver Archiver
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler wires the websocket handler.
func NewHandler(registry *session.Registry, manager *session.Manager, builder RecipeBuilder, archiver Archiver, logger *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		manager:  manager,
		builder:  builder,
		archiver: archiver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The browser client is served from a different origin in
			// development; auth happens at the ingress.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Register installs the websocket route on a gin router.
func (h *Handler) Register(router *gin.Engine) {
	router.GET("/ws/chat", h.handleSocket)
}

// safeWriter serializes websocket writes. The progress notifier writes from
// its own goroutine while the read loop owns terminal messages.
type safeWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *safeWriter) send(env outboundEnvelope) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(env)
}

// handleSocket upgrades the connection, creates and registers a session, and
// runs the read loop until disconnect. All session state dies with the
// connection; only the archive outlives it.
func (h *Handler) handleSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sess := session.New("")
	if err := h.registry.Register(sess); err != nil {
		h.logger.Error("Session registration failed", zap.Error(err))
		return
	}
	defer h.closeSession(sess)

	writer := &safeWriter{conn: conn}

	for {
		var env inboundEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Websocket read failed",
					zap.String("session_id", sess.ID),
					zap.Error(err))
			}
			return
		}

		switch env.Type {
		case typeInitContext:
			h.handleInitContext(sess, env.MemberInfo)
		case typeUserMessage:
			h.handleUserMessage(c.Request.Context(), sess, env.Content, writer)
		case typeGenerateRecipe:
			h.handleGenerateRecipe(c.Request.Context(), sess, writer)
		default:
			h.logger.Debug("Ignoring unknown envelope type",
				zap.String("session_id", sess.ID),
				zap.String("type", env.Type))
		}
	}
}

// handleInitContext replaces the session's constraint profile. Caches are
// always cleared with it.
func (h *Handler) handleInitContext(sess *session.Session, info *memberInfo) {
	if info == nil {
		return
	}
	if info.MemberID != "" {
		sess.MemberID = info.MemberID
	}
	h.manager.SetConstraints(sess, pipeline.ConstraintProfile{
		Allergies:    info.Allergies,
		Dislikes:     info.Dislikes,
		Tools:        info.Tools,
		ServingCount: len(info.Names),
	})
}

// handleUserMessage runs one supervised turn. Outbound order is thinking,
// then progress notifications, then exactly one terminal envelope; the
// supervisor joins the notifier before returning, so nothing can trail the
// terminal message.
func (h *Handler) handleUserMessage(ctx context.Context, sess *session.Session, content string, writer *safeWriter) {
	if err := writer.send(outboundEnvelope{Type: typeThinking, Message: thinkingMessage}); err != nil {
		h.logger.Warn("Failed to send thinking envelope",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		return
	}

	notify := session.NotifierFunc(func(message string) {
		if err := writer.send(outboundEnvelope{Type: typeProgress, Message: message}); err != nil {
			h.logger.Debug("Progress notification dropped",
				zap.String("session_id", sess.ID),
				zap.Error(err))
		}
	})

	result := h.manager.HandleUserMessage(ctx, sess, content, notify)

	var terminal outboundEnvelope
	switch result.Status {
	case pipeline.StatusOK, pipeline.StatusTimeout:
		terminal = outboundEnvelope{Type: typeAgentMessage, Content: result.Answer}
	case pipeline.StatusOutOfDomain:
		terminal = outboundEnvelope{Type: typeNotRecipeRelated, Content: outOfDomainMessage}
	default:
		terminal = outboundEnvelope{Type: typeError, Message: result.Answer}
	}

	if err := writer.send(terminal); err != nil {
		h.logger.Warn("Failed to send terminal envelope",
			zap.String("session_id", sess.ID),
			zap.Error(err))
	}
}

// handleGenerateRecipe builds a structured recipe from the conversation and
// archives it for the member.
func (h *Handler) handleGenerateRecipe(ctx context.Context, sess *session.Session, writer *safeWriter) {
	recipe, err := h.builder.Build(ctx, recipes.BuildRequest{
		SessionID: sess.ID,
		History:   sess.History(session.HistoryWindow),
		Profile:   sess.Profile(),
	})
	if err != nil {
		h.logger.Error("Recipe build failed",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		if err := writer.send(outboundEnvelope{Type: typeError, Message: "레시피 생성에 실패했습니다. 다시 시도해주세요."}); err != nil {
			h.logger.Warn("Failed to send error envelope", zap.Error(err))
		}
		return
	}

	if h.archiver != nil {
		if err := h.archiver.SaveRecipe(ctx, sess.ID, sess.MemberID, recipe); err != nil {
			h.logger.Warn("Recipe archive failed",
				zap.String("session_id", sess.ID),
				zap.Error(err))
		}
	}

	if err := writer.send(outboundEnvelope{Type: typeRecipe, Recipe: &recipe}); err != nil {
		h.logger.Warn("Failed to send recipe envelope",
			zap.String("session_id", sess.ID),
			zap.Error(err))
	}
}

// closeSession archives the finished conversation and destroys the session.
func (h *Handler) closeSession(sess *session.Session) {
	if h.archiver != nil {
		if turns := sess.Turns(); len(turns) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.archiver.SaveConversation(ctx, sess.ID, sess.MemberID, turns); err != nil {
				h.logger.Warn("Conversation archive failed",
					zap.String("session_id", sess.ID),
					zap.Error(err))
			}
		}
	}
	h.registry.Remove(sess.ID)
}
