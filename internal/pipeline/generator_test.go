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

func TestGeneratorWarningBranch(t *testing.T) {
	completer := &mockCompleter{complete: func(string) (string, error) {
		return "대신 캐슈넛을 넣은 볶음은 어떠세요?", nil
	}}
	gen := NewGenerator(completer, zaptest.NewLogger(t))

	warning := `"땅콩"은(는) 등록된 알레르기 재료입니다.`
	answer, status, err := gen.Generate(context.Background(), "땅콩소스 파스타 알려줘", recipeDocs(), nil, warning, ConstraintProfile{Allergies: []string{"땅콩"}})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", status)
	}
	if !strings.HasPrefix(answer, warning+"\n\n") {
		t.Errorf("expected answer to open with the warning, got %q", answer)
	}
	if !strings.Contains(answer, "캐슈넛") {
		t.Errorf("expected the alternative suggestion in the answer, got %q", answer)
	}
}

func TestGeneratorWarningBranchFallsBackOnModelFailure(t *testing.T) {
	completer := &mockCompleter{complete: func(string) (string, error) {
		return "", errors.New("completion failed")
	}}
	gen := NewGenerator(completer, zaptest.NewLogger(t))

	warning := `"땅콩"은(는) 등록된 알레르기 재료입니다.`
	answer, status, err := gen.Generate(context.Background(), "땅콩소스 파스타 알려줘", nil, nil, warning, ConstraintProfile{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", status)
	}
	if answer != warning+"\n\n"+warningFallbackAnswer {
		t.Errorf("expected warning plus fallback suggestion, got %q", answer)
	}
}

func TestGeneratorGroundedAnswer(t *testing.T) {
	completer := &mockCompleter{complete: func(prompt string) (string, error) {
		if !strings.Contains(prompt, "된장찌개 끓이는 법") {
			t.Error("expected document context in the generation prompt")
		}
		if !strings.Contains(prompt, "user: 된장찌개 어떻게 끓여?") {
			t.Error("expected conversation history in the generation prompt")
		}
		return "된장을 풀고 두부와 애호박을 넣어 끓이면 됩니다.", nil
	}}
	gen := NewGenerator(completer, zaptest.NewLogger(t))

	history := []string{"user: 된장찌개 어떻게 끓여?"}
	answer, status, err := gen.Generate(context.Background(), "된장찌개 끓이는 법", recipeDocs(), history, "", ConstraintProfile{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", status)
	}
	if !strings.Contains(answer, "된장") {
		t.Errorf("unexpected answer %q", answer)
	}
}

func TestGeneratorFailureReturnsApology(t *testing.T) {
	completer := &mockCompleter{complete: func(string) (string, error) {
		return "", errors.New("completion failed")
	}}
	gen := NewGenerator(completer, zaptest.NewLogger(t))

	answer, status, err := gen.Generate(context.Background(), "된장찌개 끓이는 법", recipeDocs(), nil, "", ConstraintProfile{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("a generation failure must still produce an OK turn, got %v", status)
	}
	if answer != apologyAnswer {
		t.Errorf("expected apology answer, got %q", answer)
	}
}

func TestGeneratorEmptyAnswerReturnsApology(t *testing.T) {
	completer := &mockCompleter{complete: func(string) (string, error) {
		return "   \n", nil
	}}
	gen := NewGenerator(completer, zaptest.NewLogger(t))

	answer, _, err := gen.Generate(context.Background(), "된장찌개 끓이는 법", recipeDocs(), nil, "", ConstraintProfile{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != apologyAnswer {
		t.Errorf("expected apology answer for blank completion, got %q", answer)
	}
}

func TestGeneratorOutOfDomainToken(t *testing.T) {
	completer := &mockCompleter{complete: func(string) (string, error) {
		return outOfDomainToken, nil
	}}
	gen := NewGenerator(completer, zaptest.NewLogger(t))

	answer, status, err := gen.Generate(context.Background(), "내일 주가 어떻게 될까?", nil, nil, "", ConstraintProfile{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if status != StatusOutOfDomain {
		t.Fatalf("expected StatusOutOfDomain, got %v", status)
	}
	if answer != "" {
		t.Errorf("out-of-domain turns must carry no answer text, got %q", answer)
	}
}

func TestGeneratorAppendsCautionWhenAnswerViolatesConstraints(t *testing.T) {
	completer := &mockCompleter{complete: func(string) (string, error) {
		return "돼지고기를 넣은 김치찌개를 추천합니다.", nil
	}}
	gen := NewGenerator(completer, zaptest.NewLogger(t))

	profile := ConstraintProfile{Dislikes: []string{"돼지고기"}}
	answer, status, err := gen.Generate(context.Background(), "찌개 추천해줘", recipeDocs(), nil, "", profile)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", status)
	}
	if !strings.Contains(answer, "\n\n주의: ") {
		t.Errorf("expected caution suffix on a violating answer, got %q", answer)
	}
	if !strings.Contains(answer, `"돼지고기"은(는) 비선호 재료입니다.`) {
		t.Errorf("expected the violation named in the caution, got %q", answer)
	}
}

func TestGeneratorPropagatesDeadlineExpiry(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Millisecond))
	defer cancel()

	completer := &mockCompleter{complete: func(string) (string, error) {
		return "", ctx.Err()
	}}
	gen := NewGenerator(completer, zaptest.NewLogger(t))

	answer, status, err := gen.Generate(ctx, "된장찌개 끓이는 법", recipeDocs(), nil, "", ConstraintProfile{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the deadline error to propagate, got %v", err)
	}
	if status != StatusError {
		t.Errorf("expected StatusError, got %v", status)
	}
	if answer != "" {
		t.Errorf("an interrupted turn must not carry an answer, got %q", answer)
	}
}

func TestGeneratorWarningBranchPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	completer := &mockCompleter{complete: func(string) (string, error) {
		return "", ctx.Err()
	}}
	gen := NewGenerator(completer, zaptest.NewLogger(t))

	warning := `"땅콩"은(는) 등록된 알레르기 재료입니다.`
	answer, status, err := gen.Generate(ctx, "땅콩소스 파스타 알려줘", nil, nil, warning, ConstraintProfile{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancellation to propagate, got %v", err)
	}
	if status != StatusError {
		t.Errorf("expected StatusError, got %v", status)
	}
	if answer != "" {
		t.Errorf("a cancelled turn must not carry an answer, got %q", answer)
	}
}
