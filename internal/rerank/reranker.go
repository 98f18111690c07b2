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

// Package rerank provides a second-pass relevance scorer for retrieval
// candidates, backed by the generative model. It trades an extra model call
// per candidate for a ranking that understands the query, and is always
// allowed to fail: the retriever degrades to raw similarity order.
package rerank

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/your-org/recipe-assistant/internal/pipeline"
	"go.uber.org/zap"
)

const (
	// candidateContentRunes bounds the content sent for scoring, matching
	// the cross-encoder input bound of the corpus indexer.
	candidateContentRunes = 1200
	scoreMaxTokens        = 5
)

const scorePrompt = `Rate how relevant this recipe is to the cooking question on a scale of 0 to 10.
Respond with a single number only.

Question: %s

Recipe: %s
%s

Score:`

var numberPattern = regexp.MustCompile(`\d+(\.\d+)?`)

// Completer is the model collaborator used for scoring.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Reranker scores candidates with the generative model. It satisfies
// pipeline.Reranker.
type Reranker struct {
	completer Completer
	logger    *zap.Logger
}

// New creates a model-backed reranker.
func New(completer Completer, logger *zap.Logger) *Reranker {
	return &Reranker{completer: completer, logger: logger}
}

// Rerank scores each candidate against the query and returns the top-n by
// rerank score descending. The sort is stable, so ties keep the incoming
// similarity order and identical inputs yield identical output order. Any
// scoring failure fails the whole rerank; the caller degrades.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []pipeline.Document, topN int) ([]pipeline.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	scored := make([]pipeline.Document, len(docs))
	for i, doc := range docs {
		score, err := r.scoreCandidate(ctx, query, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to score candidate %d: %w", i, err)
		}
		doc.RerankScore = score
		scored[i] = doc
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RerankScore > scored[j].RerankScore
	})

	if len(scored) > topN {
		scored = scored[:topN]
	}

	r.logger.Debug("Rerank completed",
		zap.String("query", query),
		zap.Int("candidates", len(docs)),
		zap.Int("returned", len(scored)))

	return scored, nil
}

func (r *Reranker) scoreCandidate(ctx context.Context, query string, doc pipeline.Document) (float64, error) {
	content := doc.Content
	if runes := []rune(content); len(runes) > candidateContentRunes {
		content = string(runes[:candidateContentRunes])
	}

	prompt := fmt.Sprintf(scorePrompt, query, doc.Title, content)
	response, err := r.completer.Complete(ctx, prompt, scoreMaxTokens)
	if err != nil {
		return 0, err
	}

	return parseScore(response)
}

// parseScore extracts the first number from the model response and clamps
// it to [0, 10].
func parseScore(response string) (float64, error) {
	match := numberPattern.FindString(strings.TrimSpace(response))
	if match == "" {
		return 0, fmt.Errorf("no numeric score in response %q", response)
	}

	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable score %q: %w", match, err)
	}

	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return score, nil
}
