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

const gradeMaxTokens = 10

// Grader decides whether retrieved candidates are sufficient to answer, or
// whether the fallback web search is needed. The checks form a cost ladder:
// an empty-set check and a lexical title gate run before the model is asked.
// Every failure mode defaults to "needs web search" — an extra search is
// preferred over a bad internal answer.
type Grader struct {
	completer Completer
	logger    *zap.Logger
}

// NewGrader creates a relevance grader backed by the given completer.
func NewGrader(completer Completer, logger *zap.Logger) *Grader {
	return &Grader{completer: completer, logger: logger}
}

// NeedsWebSearch reports whether the documents are insufficient for the
// query and a web search should run instead.
func (g *Grader) NeedsWebSearch(ctx context.Context, query string, docs []Document) bool {
	if len(docs) == 0 {
		g.logger.Debug("Grader: no documents retrieved, web search needed")
		return true
	}

	if !titleGatePasses(query, docs) {
		g.logger.Debug("Grader: lexical title gate rejected candidates",
			zap.String("query", query))
		return true
	}

	prompt := fmt.Sprintf(gradePrompt, query, gradeContext(docs))
	verdict, err := g.completer.Complete(ctx, prompt, gradeMaxTokens)
	if err != nil {
		g.logger.Warn("Grader model call failed, defaulting to web search",
			zap.Error(err))
		return true
	}

	sufficient := strings.Contains(strings.ToLower(verdict), affirmativeToken)
	g.logger.Debug("Grader verdict",
		zap.String("query", query),
		zap.Bool("sufficient", sufficient))
	return !sufficient
}

// titleGatePasses checks the top documents' titles for the full query or any
// query token longer than one character. A cheap lexical rejection before
// the expensive model call.
func titleGatePasses(query string, docs []Document) bool {
	queryLower := strings.ToLower(query)
	tokens := strings.Fields(queryLower)

	limit := graderDocuments
	if len(docs) < limit {
		limit = len(docs)
	}

	for _, doc := range docs[:limit] {
		title := strings.ToLower(doc.Title)
		if strings.Contains(title, queryLower) {
			return true
		}
		for _, token := range tokens {
			if len([]rune(token)) > 1 && strings.Contains(title, token) {
				return true
			}
		}
	}
	return false
}

// gradeContext renders the top documents' leading content for the grader
// prompt.
func gradeContext(docs []Document) string {
	limit := graderDocuments
	if len(docs) < limit {
		limit = len(docs)
	}

	var b strings.Builder
	for i, doc := range docs[:limit] {
		fmt.Fprintf(&b, "[%d] %s — %s\n", i+1, doc.Title, truncate(doc.Content, graderContentRunes))
	}
	return b.String()
}
