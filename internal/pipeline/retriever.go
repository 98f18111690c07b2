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

	"go.uber.org/zap"
)

const (
	// rerankFetchMultiplier widens the candidate pool before reranking.
	rerankFetchMultiplier = 3
	// rerankFetchCap bounds the candidate pool regardless of k.
	rerankFetchCap = 20
)

// Retriever returns the top-k corpus documents for a query, optionally
// refined by a second-pass reranker. A reranker failure degrades to the raw
// similarity order; only a failure of the base similarity search itself is
// an error.
type Retriever struct {
	searcher SimilaritySearcher
	reranker Reranker
	logger   *zap.Logger
}

// NewRetriever creates a retriever. reranker may be nil, in which case
// useRerank requests fall back to plain similarity order.
func NewRetriever(searcher SimilaritySearcher, reranker Reranker, logger *zap.Logger) *Retriever {
	return &Retriever{searcher: searcher, reranker: reranker, logger: logger}
}

// Retrieve returns at most k documents tagged internal, ordered by rerank
// score when useRerank is set and the reranker succeeds, otherwise by
// similarity score.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, useRerank bool) ([]Document, error) {
	if !useRerank || r.reranker == nil {
		docs, err := r.searcher.Search(ctx, query, k)
		if err != nil {
			return nil, fmt.Errorf("similarity search failed: %w", err)
		}
		return docs, nil
	}

	fetch := k * rerankFetchMultiplier
	if fetch > rerankFetchCap {
		fetch = rerankFetchCap
	}

	candidates, err := r.searcher.Search(ctx, query, fetch)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	reranked, err := r.reranker.Rerank(ctx, query, candidates, k)
	if err != nil {
		// Degrade to raw similarity order rather than failing retrieval.
		r.logger.Warn("Rerank failed, returning similarity order",
			zap.Error(err),
			zap.Int("candidates", len(candidates)))
		if len(candidates) > k {
			candidates = candidates[:k]
		}
		return candidates, nil
	}

	r.logger.Debug("Retrieval with rerank completed",
		zap.Int("fetched", len(candidates)),
		zap.Int("returned", len(reranked)))
	return reranked, nil
}
