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

const rewriteMaxTokens = 60

// Rewriter turns the latest user utterance plus recent history into a
// retrieval-optimized query. Rewriting is a pure optimization: on any
// collaborator failure the original question is used unchanged.
type Rewriter struct {
	completer Completer
	logger    *zap.Logger
}

// NewRewriter creates a query rewriter backed by the given completer.
func NewRewriter(completer Completer, logger *zap.Logger) *Rewriter {
	return &Rewriter{completer: completer, logger: logger}
}

// Rewrite returns the retrieval query for the question. The returned string
// is never empty as long as question is non-empty.
func (r *Rewriter) Rewrite(ctx context.Context, question string, history []string) string {
	prompt := fmt.Sprintf(rewritePrompt, formatHistory(history, historyWindow), question)

	rewritten, err := r.completer.Complete(ctx, prompt, rewriteMaxTokens)
	if err != nil {
		r.logger.Warn("Query rewrite failed, using original question",
			zap.Error(err))
		return question
	}

	// Models occasionally return multiple lines or an empty string; take the
	// first non-empty line or fall back to the original.
	rewritten = firstLine(rewritten)
	if rewritten == "" {
		r.logger.Warn("Query rewrite returned empty text, using original question")
		return question
	}

	r.logger.Debug("Query rewritten",
		zap.String("original", question),
		zap.String("rewritten", rewritten))
	return rewritten
}

// firstLine returns the first non-empty trimmed line of text.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
