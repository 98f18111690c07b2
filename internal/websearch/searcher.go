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

package websearch

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/your-org/recipe-assistant/internal/pipeline"
)

const (
	cacheTTL      = 15 * time.Minute
	cacheSweep    = 30 * time.Minute
	snippetFormat = "%s\n%s"
)

// FallbackSearcher adapts a Provider to the pipeline's WebSearcher contract.
// It never returns an error: provider failures and empty result sets become a
// single synthetic error document so the generation stage always has
// something to explain itself with.
type FallbackSearcher struct {
	provider Provider
	cache    *gocache.Cache
	logger   *zap.Logger
}

// NewFallbackSearcher wraps provider with a TTL result cache.
func NewFallbackSearcher(provider Provider, logger *zap.Logger) *FallbackSearcher {
	return &FallbackSearcher{
		provider: provider,
		cache:    gocache.New(cacheTTL, cacheSweep),
		logger:   logger,
	}
}

// Search runs the provider and converts its results into web-tagged
// documents. Cached entries are returned without touching the provider.
func (s *FallbackSearcher) Search(ctx context.Context, query string, maxResults int) ([]pipeline.Document, error) {
	key := fmt.Sprintf("%s|%d", query, maxResults)
	if cached, found := s.cache.Get(key); found {
		s.logger.Debug("web search cache hit", zap.String("query", query))
		return cached.([]pipeline.Document), nil
	}

	results, err := s.provider.Search(ctx, query, maxResults)
	if err != nil {
		s.logger.Warn("web search failed",
			zap.String("provider", s.provider.Name()),
			zap.String("query", query),
			zap.Error(err))
		return []pipeline.Document{pipeline.ErrorDocument(
			fmt.Sprintf("Web search failed: %v. Answering from what is already known.", err),
		)}, nil
	}
	if len(results) == 0 {
		s.logger.Debug("web search returned no results", zap.String("query", query))
		return []pipeline.Document{pipeline.ErrorDocument(
			"Web search returned no results for this question.",
		)}, nil
	}

	docs := make([]pipeline.Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, pipeline.Document{
			Title:   r.Title,
			Content: fmt.Sprintf(snippetFormat, r.Snippet, r.URL),
			Source:  pipeline.SourceWeb,
		})
	}

	s.cache.Set(key, docs, gocache.DefaultExpiration)
	return docs, nil
}
