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
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const searchMaxTokens = 800

const searchPrompt = `You are a web search assistant for cooking content. Based on the query,
provide search results with relevant recipe information from reliable sources.

Query: %s

Return your response as a JSON array with this exact structure:
[
  {
    "title": "Source title",
    "snippet": "Relevant excerpt or summary (2-3 sentences)",
    "url": "https://example.com/source"
  }
]

Provide up to %d high-quality, relevant results and no other text.`

// Completer is the model collaborator backing the OpenAI provider.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// OpenAIProvider implements Provider by asking the generative model for
// search-result JSON. Useful where no search API key is available.
type OpenAIProvider struct {
	completer Completer
	logger    *zap.Logger
}

// NewOpenAIProvider creates a model-backed search provider.
func NewOpenAIProvider(completer Completer, logger *zap.Logger) *OpenAIProvider {
	return &OpenAIProvider{completer: completer, logger: logger}
}

// Name identifies the provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Search asks the model for result JSON and parses it.
func (p *OpenAIProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	prompt := fmt.Sprintf(searchPrompt, query, maxResults)

	response, err := p.completer.Complete(ctx, prompt, searchMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("search completion failed: %w", err)
	}

	results, err := parseResultJSON(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}

	p.logger.Debug("Model-backed search completed",
		zap.String("query", query),
		zap.Int("results", len(results)))

	return results, nil
}

// parseResultJSON strips optional markdown fences and unmarshals the result
// array. Models wrap JSON in fences often enough that this is the rule, not
// the exception.
func parseResultJSON(response string) ([]Result, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var results []Result
	if err := json.Unmarshal([]byte(cleaned), &results); err != nil {
		return nil, err
	}
	return results, nil
}
