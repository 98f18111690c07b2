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

package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// mockCompleter routes prompts to canned responses by prompt content.
type mockCompleter struct {
	complete func(prompt string) (string, error)
	calls    int
}

func (m *mockCompleter) Complete(_ context.Context, prompt string, _ int) (string, error) {
	m.calls++
	return m.complete(prompt)
}

// mockSearcher returns a fixed document list and records the requested k.
type mockSearcher struct {
	docs       []Document
	err        error
	requestedK []int
}

func (m *mockSearcher) Search(_ context.Context, _ string, k int) ([]Document, error) {
	m.requestedK = append(m.requestedK, k)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.docs) > k {
		return m.docs[:k], nil
	}
	return m.docs, nil
}

// mockReranker reverses the candidate order, or fails.
type mockReranker struct {
	err   error
	calls int
}

func (m *mockReranker) Rerank(_ context.Context, _ string, docs []Document, topN int) ([]Document, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	reversed := make([]Document, len(docs))
	for i, doc := range docs {
		reversed[len(docs)-1-i] = doc
	}
	if len(reversed) > topN {
		reversed = reversed[:topN]
	}
	return reversed, nil
}

// mockWebSearcher returns synthetic web documents and records invocations.
type mockWebSearcher struct {
	docs  []Document
	calls int
}

func (m *mockWebSearcher) Search(_ context.Context, query string, _ int) ([]Document, error) {
	m.calls++
	if m.docs != nil {
		return m.docs, nil
	}
	return []Document{{Title: "web result for " + query, Content: "from the web", Source: SourceWeb}}, nil
}

func recipeDocs() []Document {
	return []Document{
		{Title: "된장찌개 끓이는 법", Content: "두부와 애호박을 넣은 된장찌개", Source: SourceInternal, VectorScore: 0.92},
		{Title: "김치찌개", Content: "돼지고기 김치찌개", Source: SourceInternal, VectorScore: 0.81},
		{Title: "미역국", Content: "소고기 미역국", Source: SourceInternal, VectorScore: 0.77},
	}
}

// dispatchCompleter answers each pipeline stage's prompt by its marker text.
func dispatchCompleter(rewritten, verdict, answer string) *mockCompleter {
	return &mockCompleter{complete: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "rewrite conversational cooking questions"):
			return rewritten, nil
		case strings.Contains(prompt, "judge whether retrieved recipes"):
			return verdict, nil
		case strings.Contains(prompt, "conflicts with their dietary constraints"):
			return "다른 요리를 추천드릴게요.", nil
		case strings.Contains(prompt, "Korean cooking expert"):
			return answer, nil
		default:
			return "", errors.New("unexpected prompt")
		}
	}}
}

func newTestPipeline(t *testing.T, completer *mockCompleter, searcher *mockSearcher, web *mockWebSearcher) *Pipeline {
	logger := zaptest.NewLogger(t)
	return New(
		NewRewriter(completer, logger),
		NewRetriever(searcher, &mockReranker{}, logger),
		NewGrader(completer, logger),
		NewGenerator(completer, logger),
		web,
		DefaultOptions(),
		logger,
	)
}

func TestPipelineRun_StrongInternalMatch(t *testing.T) {
	completer := dispatchCompleter("된장찌개 레시피", "yes", "오늘의 추천 요리는 된장찌개입니다.")
	searcher := &mockSearcher{docs: recipeDocs()}
	web := &mockWebSearcher{}

	pipe := newTestPipeline(t, completer, searcher, web)
	result, err := pipe.Run(context.Background(), "된장찌개 레시피 알려줘", nil, ConstraintProfile{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != StatusOK {
		t.Errorf("expected StatusOK, got %s", result.Status)
	}
	if !strings.Contains(result.Answer, "된장찌개") {
		t.Errorf("answer should reference the matched dish, got %q", result.Answer)
	}
	if web.calls != 0 {
		t.Errorf("web search should not run on a strong internal match, ran %d times", web.calls)
	}
	if len(result.Documents) == 0 || result.Documents[0].Source != SourceInternal {
		t.Errorf("expected internal documents in result")
	}
}

func TestPipelineRun_ConstraintWarningBranch(t *testing.T) {
	graderCalled := false
	completer := &mockCompleter{complete: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "rewrite conversational cooking questions"):
			return "땅콩 볶음 요리", nil
		case strings.Contains(prompt, "judge whether retrieved recipes"):
			graderCalled = true
			return "yes", nil
		case strings.Contains(prompt, "conflicts with their dietary constraints"):
			return "땅콩 대신 캐슈넛 볶음은 어떠세요?", nil
		default:
			return "", errors.New("unexpected prompt")
		}
	}}
	searcher := &mockSearcher{docs: recipeDocs()}
	web := &mockWebSearcher{}

	pipe := newTestPipeline(t, completer, searcher, web)
	profile := ConstraintProfile{Allergies: []string{"땅콩"}}
	result, err := pipe.Run(context.Background(), "땅콩 들어간 볶음 요리 추천해줘", nil, profile)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != StatusOK {
		t.Errorf("expected StatusOK, got %s", result.Status)
	}
	if !strings.Contains(result.Answer, "등록된 알레르기 재료입니다") {
		t.Errorf("answer should lead with the constraint warning, got %q", result.Answer)
	}
	if !strings.Contains(result.Answer, "캐슈넛") {
		t.Errorf("answer should carry the alternative suggestion, got %q", result.Answer)
	}
	if graderCalled {
		t.Error("grading must be skipped on the warning branch")
	}
	if web.calls != 0 {
		t.Error("web search must be skipped on the warning branch")
	}
}

func TestPipelineRun_WebFallbackOnWeakCandidates(t *testing.T) {
	// Titles share no token with the query, so the lexical gate routes to
	// web search without consulting the model.
	completer := dispatchCompleter("마라탕 레시피", "no", "오늘의 추천 요리는 마라탕입니다.")
	searcher := &mockSearcher{docs: []Document{
		{Title: "간장계란밥", Content: "계란", Source: SourceInternal},
	}}
	web := &mockWebSearcher{}

	pipe := newTestPipeline(t, completer, searcher, web)
	result, err := pipe.Run(context.Background(), "마라탕 레시피", nil, ConstraintProfile{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if web.calls != 1 {
		t.Fatalf("expected exactly one web search, got %d", web.calls)
	}
	if result.Status != StatusOK {
		t.Errorf("expected StatusOK, got %s", result.Status)
	}
	if len(result.Documents) == 0 || result.Documents[0].Source != SourceWeb {
		t.Errorf("result documents should come from the web fallback")
	}
}

func TestPipelineRun_RetrievalFailureIsFatal(t *testing.T) {
	completer := dispatchCompleter("된장찌개", "yes", "answer")
	searcher := &mockSearcher{err: errors.New("chroma unreachable")}

	pipe := newTestPipeline(t, completer, searcher, &mockWebSearcher{})
	result, err := pipe.Run(context.Background(), "된장찌개 레시피", nil, ConstraintProfile{})
	if err == nil {
		t.Fatal("expected error when base similarity search fails")
	}
	if result.Status != StatusError {
		t.Errorf("expected StatusError, got %s", result.Status)
	}
}

func TestPipelineRun_SyntheticErrorDocumentStillAnswers(t *testing.T) {
	// No internal candidates and the web searcher degrades to a synthetic
	// explanatory document; the final answer must still be non-empty.
	completer := dispatchCompleter("새로운 요리", "no", "오늘의 추천 요리는 비빔밥입니다.")
	searcher := &mockSearcher{docs: nil}
	web := &mockWebSearcher{docs: []Document{ErrorDocument("web search failed: provider down")}}

	pipe := newTestPipeline(t, completer, searcher, web)
	result, err := pipe.Run(context.Background(), "아무도 모르는 요리", nil, ConstraintProfile{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != StatusOK {
		t.Errorf("expected StatusOK, got %s", result.Status)
	}
	if strings.TrimSpace(result.Answer) == "" {
		t.Error("final answer must never be empty")
	}
	if len(result.Documents) != 1 || result.Documents[0].Source != SourceError {
		t.Errorf("expected the synthetic error document, got %+v", result.Documents)
	}
}

func TestPipelineRun_OutOfDomain(t *testing.T) {
	completer := dispatchCompleter("주식 시세", "yes", outOfDomainToken)
	searcher := &mockSearcher{docs: []Document{
		{Title: "주식 시세 요리", Content: "none", Source: SourceInternal},
	}}

	pipe := newTestPipeline(t, completer, searcher, &mockWebSearcher{})
	result, err := pipe.Run(context.Background(), "주식 시세 알려줘", nil, ConstraintProfile{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != StatusOutOfDomain {
		t.Errorf("expected StatusOutOfDomain, got %s", result.Status)
	}
	if result.Answer != "" {
		t.Errorf("out-of-domain result must not carry an answer, got %q", result.Answer)
	}
}

func TestPipelineRun_GenerationCutOffByDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Rewrite and grading answer immediately; the final answer prompt holds
	// until the deadline fires, like a slow model call.
	completer := &mockCompleter{complete: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "rewrite conversational cooking questions"):
			return "된장찌개 레시피", nil
		case strings.Contains(prompt, "judge whether retrieved recipes"):
			return "yes", nil
		case strings.Contains(prompt, "Korean cooking expert"):
			<-ctx.Done()
			return "", ctx.Err()
		default:
			return "", errors.New("unexpected prompt")
		}
	}}
	searcher := &mockSearcher{docs: recipeDocs()}

	pipe := newTestPipeline(t, completer, searcher, &mockWebSearcher{})
	result, err := pipe.Run(ctx, "된장찌개 레시피 알려줘", nil, ConstraintProfile{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the deadline error to surface from Run, got %v", err)
	}
	if result.Status != StatusError {
		t.Errorf("expected StatusError on an interrupted run, got %v", result.Status)
	}
	if result.Answer != "" {
		t.Errorf("an interrupted run must not surface an answer, got %q", result.Answer)
	}
}
