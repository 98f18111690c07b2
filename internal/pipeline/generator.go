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
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const answerMaxTokens = 800

const (
	// warningFallbackAnswer is used when the warning-branch model call fails.
	warningFallbackAnswer = "다른 요리는 어떠세요? 제약 조건에 맞는 요리를 추천해드릴 수 있어요."
	// apologyAnswer is used when the final grounded generation call fails.
	// A canned answer is returned rather than failing the turn.
	apologyAnswer = "죄송합니다. 답변 생성 중 오류가 발생했습니다. 다시 질문해주세요."
)

// Generator composes the final answer from conversation history, retrieved
// or fallback documents, and constraint warnings. It has two paths: a
// warning branch that skips retrieval-grounded generation entirely, and a
// grounded branch whose output is re-checked against the profile.
type Generator struct {
	completer Completer
	logger    *zap.Logger
}

// NewGenerator creates an answer generator backed by the given completer.
func NewGenerator(completer Completer, logger *zap.Logger) *Generator {
	return &Generator{completer: completer, logger: logger}
}

// Generate produces the turn's answer. The returned status is StatusOK or
// StatusOutOfDomain; model failures degrade to canned answers rather than
// propagating, so the answer is never empty. Context cancellation is the one
// failure that does propagate: a cancelled turn must never be dressed up as
// a successful answer.
func (g *Generator) Generate(ctx context.Context, question string, docs []Document, history []string, warning string, profile ConstraintProfile) (string, Status, error) {
	if warning != "" {
		answer, err := g.generateWarningAnswer(ctx, question, warning)
		if err != nil {
			return "", StatusError, err
		}
		return answer, StatusOK, nil
	}
	return g.generateGroundedAnswer(ctx, question, docs, history, profile)
}

// generateWarningAnswer handles the constraint-conflict branch: a short
// acknowledgement plus an alternative suggestion, prefixed with the warning.
func (g *Generator) generateWarningAnswer(ctx context.Context, question, warning string) (string, error) {
	prompt := fmt.Sprintf(warningAnswerPrompt, warning, question)

	suggestion, err := g.completer.Complete(ctx, prompt, answerMaxTokens)
	if err != nil || strings.TrimSpace(suggestion) == "" {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("warning-branch generation interrupted: %w", ctxErr)
		}
		g.logger.Warn("Warning-branch generation failed, using fallback suggestion",
			zap.Error(err))
		suggestion = warningFallbackAnswer
	}

	return warning + "\n\n" + strings.TrimSpace(suggestion), nil
}

func (g *Generator) generateGroundedAnswer(ctx context.Context, question string, docs []Document, history []string, profile ConstraintProfile) (string, Status, error) {
	prompt := buildAnswerPrompt(question, docs, history, profile)

	answer, err := g.completer.Complete(ctx, prompt, answerMaxTokens)
	if err != nil || strings.TrimSpace(answer) == "" {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", StatusError, fmt.Errorf("answer generation interrupted: %w", ctxErr)
		}
		g.logger.Error("Final answer generation failed, returning apology",
			zap.Error(err),
			zap.Int("documents", len(docs)))
		return apologyAnswer, StatusOK, nil
	}
	answer = strings.TrimSpace(answer)

	if strings.Contains(answer, outOfDomainToken) {
		g.logger.Info("Generator flagged conversation as out of domain")
		return "", StatusOutOfDomain, nil
	}

	// The model is instructed to avoid constraint terms but is not trusted
	// blindly: re-check the produced answer and append a caution if needed.
	if caution := CheckConstraints(answer, profile); caution != "" {
		g.logger.Warn("Generated answer mentions constrained ingredients",
			zap.String("caution", caution))
		answer += "\n\n주의: " + caution
	}

	return answer, StatusOK, nil
}
