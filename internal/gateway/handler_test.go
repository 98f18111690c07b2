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
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/recipe-assistant/internal/pipeline"
	"github.com/your-org/recipe-assistant/internal/recipes"
	"github.com/your-org/recipe-assistant/internal/session"
)

// scriptedRunner stands in for the pipeline.
type scriptedRunner struct {
	result pipeline.Result
	err    error
}

func (r *scriptedRunner) Run(context.Context, string, []string, pipeline.ConstraintProfile) (pipeline.Result, error) {
	return r.result, r.err
}

type stubBuilder struct {
	recipe recipes.Recipe
	err    error

	mu      sync.Mutex
	lastReq recipes.BuildRequest
}

func (b *stubBuilder) Build(_ context.Context, req recipes.BuildRequest) (recipes.Recipe, error) {
	b.mu.Lock()
	b.lastReq = req
	b.mu.Unlock()
	return b.recipe, b.err
}

type recordingArchiver struct {
	mu            sync.Mutex
	conversations int
	recipes       int
	lastTurns     []session.Turn
}

func (a *recordingArchiver) SaveConversation(_ context.Context, _, _ string, turns []session.Turn) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conversations++
	a.lastTurns = turns
	return nil
}

func (a *recordingArchiver) SaveRecipe(context.Context, string, string, recipes.Recipe) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recipes++
	return nil
}

type gatewayFixture struct {
	registry *session.Registry
	archiver *recordingArchiver
	server   *httptest.Server
}

func newGatewayFixture(t *testing.T, runner session.Runner, builder RecipeBuilder) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zaptest.NewLogger(t)
	registry := session.NewRegistry(logger)
	manager := session.NewManager(session.NewSupervisor(runner, time.Second, 10*time.Millisecond, logger), logger)
	archiver := &recordingArchiver{}

	router := gin.New()
	NewHandler(registry, manager, builder, archiver, logger).Register(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &gatewayFixture{registry: registry, archiver: archiver, server: server}
}

func (f *gatewayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntilTerminal collects envelopes until one that is neither thinking nor
// progress arrives.
func readUntilTerminal(t *testing.T, conn *websocket.Conn) []outboundEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var envelopes []outboundEnvelope
	for {
		var env outboundEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("websocket read failed: %v", err)
		}
		envelopes = append(envelopes, env)
		if env.Type != typeThinking && env.Type != typeProgress {
			return envelopes
		}
	}
}

func TestSocketUserMessageFlow(t *testing.T) {
	runner := &scriptedRunner{result: pipeline.Result{
		Status: pipeline.StatusOK,
		Answer: "된장찌개는 된장을 풀고 끓이면 됩니다.",
	}}
	fixture := newGatewayFixture(t, runner, &stubBuilder{})
	conn := fixture.dial(t)

	init := map[string]any{
		"type": "init_context",
		"member_info": map[string]any{
			"names":     []string{"엄마", "아빠"},
			"allergies": []string{"땅콩"},
		},
	}
	if err := conn.WriteJSON(init); err != nil {
		t.Fatalf("failed to send init_context: %v", err)
	}
	if err := conn.WriteJSON(map[string]string{"type": "user_message", "content": "된장찌개 어떻게 끓여?"}); err != nil {
		t.Fatalf("failed to send user_message: %v", err)
	}

	envelopes := readUntilTerminal(t, conn)
	if envelopes[0].Type != typeThinking {
		t.Errorf("expected thinking first, got %q", envelopes[0].Type)
	}
	terminal := envelopes[len(envelopes)-1]
	if terminal.Type != typeAgentMessage {
		t.Fatalf("expected agent_message terminal, got %q", terminal.Type)
	}
	if terminal.Content != "된장찌개는 된장을 풀고 끓이면 됩니다." {
		t.Errorf("unexpected terminal content %q", terminal.Content)
	}
}

func TestSocketOutOfDomainMapping(t *testing.T) {
	runner := &scriptedRunner{result: pipeline.Result{Status: pipeline.StatusOutOfDomain}}
	fixture := newGatewayFixture(t, runner, &stubBuilder{})
	conn := fixture.dial(t)

	if err := conn.WriteJSON(map[string]string{"type": "user_message", "content": "주식 시장 어때?"}); err != nil {
		t.Fatalf("failed to send user_message: %v", err)
	}

	envelopes := readUntilTerminal(t, conn)
	terminal := envelopes[len(envelopes)-1]
	if terminal.Type != typeNotRecipeRelated {
		t.Fatalf("expected not_recipe_related terminal, got %q", terminal.Type)
	}
	if terminal.Content != outOfDomainMessage {
		t.Errorf("unexpected out-of-domain content %q", terminal.Content)
	}
}

func TestSocketErrorMapping(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("pipeline exploded")}
	fixture := newGatewayFixture(t, runner, &stubBuilder{})
	conn := fixture.dial(t)

	if err := conn.WriteJSON(map[string]string{"type": "user_message", "content": "된장찌개 어떻게 끓여?"}); err != nil {
		t.Fatalf("failed to send user_message: %v", err)
	}

	envelopes := readUntilTerminal(t, conn)
	terminal := envelopes[len(envelopes)-1]
	if terminal.Type != typeError {
		t.Fatalf("expected error terminal, got %q", terminal.Type)
	}
	if !strings.HasPrefix(terminal.Message, "오류가 발생했습니다") {
		t.Errorf("unexpected error message %q", terminal.Message)
	}
}

func TestSocketGenerateRecipe(t *testing.T) {
	builder := &stubBuilder{recipe: recipes.Recipe{Title: "된장찌개", Servings: "2인분"}}
	fixture := newGatewayFixture(t, &scriptedRunner{}, builder)
	conn := fixture.dial(t)

	if err := conn.WriteJSON(map[string]string{"type": "generate_recipe"}); err != nil {
		t.Fatalf("failed to send generate_recipe: %v", err)
	}

	envelopes := readUntilTerminal(t, conn)
	terminal := envelopes[len(envelopes)-1]
	if terminal.Type != typeRecipe {
		t.Fatalf("expected recipe terminal, got %q", terminal.Type)
	}
	if terminal.Recipe == nil || terminal.Recipe.Title != "된장찌개" {
		t.Errorf("unexpected recipe payload %+v", terminal.Recipe)
	}

	fixture.archiver.mu.Lock()
	saved := fixture.archiver.recipes
	fixture.archiver.mu.Unlock()
	if saved != 1 {
		t.Errorf("expected the recipe archived once, got %d", saved)
	}
}

func TestSocketRecipeBuildFailure(t *testing.T) {
	builder := &stubBuilder{err: errors.New("no base recipe")}
	fixture := newGatewayFixture(t, &scriptedRunner{}, builder)
	conn := fixture.dial(t)

	if err := conn.WriteJSON(map[string]string{"type": "generate_recipe"}); err != nil {
		t.Fatalf("failed to send generate_recipe: %v", err)
	}

	envelopes := readUntilTerminal(t, conn)
	if got := envelopes[len(envelopes)-1].Type; got != typeError {
		t.Fatalf("expected error terminal, got %q", got)
	}
}

func TestSocketDisconnectArchivesConversation(t *testing.T) {
	runner := &scriptedRunner{result: pipeline.Result{Status: pipeline.StatusOK, Answer: "네, 끓이면 됩니다."}}
	fixture := newGatewayFixture(t, runner, &stubBuilder{})
	conn := fixture.dial(t)

	if err := conn.WriteJSON(map[string]string{"type": "user_message", "content": "된장찌개 어떻게 끓여?"}); err != nil {
		t.Fatalf("failed to send user_message: %v", err)
	}
	readUntilTerminal(t, conn)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fixture.archiver.mu.Lock()
		done := fixture.archiver.conversations == 1
		fixture.archiver.mu.Unlock()
		if done && fixture.registry.Count() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	fixture.archiver.mu.Lock()
	defer fixture.archiver.mu.Unlock()
	if fixture.archiver.conversations != 1 {
		t.Fatalf("expected the conversation archived once, got %d", fixture.archiver.conversations)
	}
	if len(fixture.archiver.lastTurns) != 2 {
		t.Errorf("expected user and assistant turns archived, got %d", len(fixture.archiver.lastTurns))
	}
	if fixture.registry.Count() != 0 {
		t.Errorf("expected the session removed on disconnect, got %d live", fixture.registry.Count())
	}
}
