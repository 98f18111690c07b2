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
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/your-org/recipe-assistant/internal/pipeline"
)

// fakeRunner returns a fixed result, or blocks until its context is
// cancelled when block is set.
type fakeRunner struct {
	result pipeline.Result
	err    error
	block  bool
}

func (f *fakeRunner) Run(ctx context.Context, _ string, _ []string, _ pipeline.ConstraintProfile) (pipeline.Result, error) {
	if f.block {
		<-ctx.Done()
		return pipeline.Result{}, ctx.Err()
	}
	return f.result, f.err
}

// recordingNotifier collects progress messages; safe for concurrent use.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Progress(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func TestSupervisorSuccess(t *testing.T) {
	runner := &fakeRunner{result: pipeline.Result{
		Status:    pipeline.StatusOK,
		Answer:    "된장찌개는 이렇게 끓입니다.",
		Documents: []pipeline.Document{{Title: "된장찌개 끓이는 법"}},
	}}
	notifier := &recordingNotifier{}
	sup := NewSupervisor(runner, time.Second, 10*time.Millisecond, zaptest.NewLogger(t))

	result := sup.Execute(context.Background(), New(""), "된장찌개 끓이는 법", notifier)
	if result.Status != pipeline.StatusOK {
		t.Fatalf("expected StatusOK, got %v", result.Status)
	}
	if result.Answer != "된장찌개는 이렇게 끓입니다." {
		t.Errorf("unexpected answer %q", result.Answer)
	}
	// The notifier emits one message immediately, before the first tick.
	if notifier.count() < 1 {
		t.Error("expected at least one progress notification")
	}
}

func TestSupervisorTimeout(t *testing.T) {
	runner := &fakeRunner{block: true}
	sup := NewSupervisor(runner, 30*time.Millisecond, 10*time.Millisecond, zaptest.NewLogger(t))

	result := sup.Execute(context.Background(), New(""), "된장찌개 끓이는 법", &recordingNotifier{})
	if result.Status != pipeline.StatusTimeout {
		t.Fatalf("expected StatusTimeout, got %v", result.Status)
	}
	if !strings.HasPrefix(result.Answer, "죄송합니다. 응답 시간이 너무 오래 걸렸어요") {
		t.Errorf("unexpected timeout message %q", result.Answer)
	}
}

func TestSupervisorRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("retrieval backend down")}
	sup := NewSupervisor(runner, time.Second, 10*time.Millisecond, zaptest.NewLogger(t))

	result := sup.Execute(context.Background(), New(""), "된장찌개 끓이는 법", &recordingNotifier{})
	if result.Status != pipeline.StatusError {
		t.Fatalf("expected StatusError, got %v", result.Status)
	}
	if !strings.HasPrefix(result.Answer, "오류가 발생했습니다") {
		t.Errorf("unexpected error message %q", result.Answer)
	}
}

func TestSupervisorJoinsNotifierBeforeReturning(t *testing.T) {
	runner := &fakeRunner{block: true}
	notifier := &recordingNotifier{}
	sup := NewSupervisor(runner, 50*time.Millisecond, 5*time.Millisecond, zaptest.NewLogger(t))

	sup.Execute(context.Background(), New(""), "된장찌개 끓이는 법", notifier)

	// No notification may land after Execute returns.
	seen := notifier.count()
	time.Sleep(30 * time.Millisecond)
	if notifier.count() != seen {
		t.Errorf("progress notification arrived after the terminal result: %d -> %d", seen, notifier.count())
	}
}

func TestSupervisorNilNotifier(t *testing.T) {
	runner := &fakeRunner{result: pipeline.Result{Status: pipeline.StatusOK, Answer: "ok"}}
	sup := NewSupervisor(runner, time.Second, 10*time.Millisecond, zaptest.NewLogger(t))

	result := sup.Execute(context.Background(), New(""), "안녕", nil)
	if result.Status != pipeline.StatusOK {
		t.Fatalf("expected StatusOK with nil notifier, got %v", result.Status)
	}
}

func TestProgressMessageStages(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "쿼리 재작성 중... (0초)"},
		{4 * time.Second, "레시피 검색 중... (4초)"},
		{7 * time.Second, "관련성 평가 중... (7초)"},
		{12 * time.Second, "답변 생성 중... (12초)"},
		{16 * time.Second, "거의 완료... (16초)"},
	}
	for _, tt := range tests {
		if got := progressMessage(tt.elapsed); got != tt.want {
			t.Errorf("progressMessage(%v) = %q, want %q", tt.elapsed, got, tt.want)
		}
	}
}

// slowAnswerCompleter serves the rewrite and grading prompts immediately but
// holds the final answer prompt until the run context is cancelled.
type slowAnswerCompleter struct{}

func (slowAnswerCompleter) Complete(ctx context.Context, prompt string, _ int) (string, error) {
	switch {
	case strings.Contains(prompt, "Korean cooking expert"):
		<-ctx.Done()
		return "", ctx.Err()
	case strings.Contains(prompt, "judge whether retrieved recipes"):
		return "yes", nil
	default:
		return "된장찌개 레시피", nil
	}
}

type fixedSearcher struct{}

func (fixedSearcher) Search(context.Context, string, int) ([]pipeline.Document, error) {
	return []pipeline.Document{{
		Title:   "된장찌개 끓이는 법",
		Content: "두부와 애호박을 넣은 된장찌개",
		Source:  pipeline.SourceInternal,
	}}, nil
}

type failingWebSearcher struct{ t *testing.T }

func (w failingWebSearcher) Search(context.Context, string, int) ([]pipeline.Document, error) {
	w.t.Error("web search must not run for a strong internal match")
	return nil, nil
}

// A deadline expiring while the final generation call is in flight must
// surface as a timeout result, not as a degraded OK answer.
func TestSupervisorTimeoutDuringGeneration(t *testing.T) {
	logger := zaptest.NewLogger(t)
	pipe := pipeline.New(
		pipeline.NewRewriter(slowAnswerCompleter{}, logger),
		pipeline.NewRetriever(fixedSearcher{}, nil, logger),
		pipeline.NewGrader(slowAnswerCompleter{}, logger),
		pipeline.NewGenerator(slowAnswerCompleter{}, logger),
		failingWebSearcher{t},
		pipeline.Options{TopK: 2, WebMaxResults: 3},
		logger,
	)

	sup := NewSupervisor(pipe, 80*time.Millisecond, 10*time.Millisecond, logger)
	result := sup.Execute(context.Background(), New(""), "된장찌개 어떻게 끓여?", &recordingNotifier{})

	if result.Status != pipeline.StatusTimeout {
		t.Fatalf("expected StatusTimeout, got %v (answer %q)", result.Status, result.Answer)
	}
	if !strings.HasPrefix(result.Answer, "죄송합니다. 응답 시간이 너무 오래 걸렸어요") {
		t.Errorf("expected the timeout apology, got %q", result.Answer)
	}
}
