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

// Package llm wraps the OpenAI API behind the collaborator interfaces the
// pipeline consumes: text completion for generation, rewriting, grading and
// reranking, plus query embeddings for vector search. One long-lived Client
// is shared across all sessions.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// EmbeddingModel is the model used for query embeddings.
	EmbeddingModel = openai.SmallEmbedding3
	// ExpectedEmbeddingDimensions is validated on every embedding response.
	ExpectedEmbeddingDimensions = 1536
	// MaxRetries bounds retry attempts for retryable API errors.
	MaxRetries = 3
	// BaseRetryDelay seeds the exponential backoff.
	BaseRetryDelay = time.Second
)

// Config holds model parameters for the client.
type Config struct {
	APIKey      string
	Endpoint    string
	ChatModel   string
	Temperature float32
}

// Client wraps the go-openai client with retry and logging. It satisfies
// pipeline.Completer.
type Client struct {
	client      *openai.Client
	logger      *zap.Logger
	chatModel   string
	temperature float32
}

// RetryableError represents an API error worth retrying.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, e.Message)
}

// NewClient creates a client. The key format is validated but no network
// call is made; connectivity problems surface on first use.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if !strings.HasPrefix(cfg.APIKey, "sk-") {
		return nil, fmt.Errorf("invalid API key format")
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	client := &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		logger:      logger,
		chatModel:   cfg.ChatModel,
		temperature: cfg.Temperature,
	}

	logger.Info("LLM client initialized",
		zap.String("chat_model", cfg.ChatModel),
		zap.String("embedding_model", string(EmbeddingModel)),
		zap.Int("max_retries", MaxRetries),
	)

	return client, nil
}

// Complete sends a single-prompt chat completion and returns the text.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.chatModel,
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var lastErr error
	delay := BaseRetryDelay

	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying chat completion request",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = c.handleAPIError(err)

			if retryErr, ok := lastErr.(*RetryableError); ok {
				if retryErr.RetryAfter > 0 {
					delay = retryErr.RetryAfter
				} else {
					delay = BaseRetryDelay * time.Duration(1<<uint(attempt))
				}
				continue
			}
			return "", lastErr
		}

		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no choices returned from completion")
		}

		c.logger.Debug("Chat completion successful",
			zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens))

		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("exhausted all retry attempts: %w", lastErr)
}

// EmbedQuery generates an embedding for a single query text.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if query == "" {
		return nil, fmt.Errorf("query text cannot be empty")
	}

	req := openai.EmbeddingRequest{
		Input: []string{query},
		Model: EmbeddingModel,
	}

	var lastErr error
	delay := BaseRetryDelay

	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying embedding request",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.client.CreateEmbeddings(ctx, req)
		if err != nil {
			lastErr = c.handleAPIError(err)

			if retryErr, ok := lastErr.(*RetryableError); ok {
				if retryErr.RetryAfter > 0 {
					delay = retryErr.RetryAfter
				} else {
					delay = BaseRetryDelay * time.Duration(1<<uint(attempt))
				}
				continue
			}
			return nil, lastErr
		}

		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("no embeddings returned for query")
		}

		embedding := resp.Data[0].Embedding
		if len(embedding) != ExpectedEmbeddingDimensions {
			return nil, fmt.Errorf("embedding has %d dimensions, expected %d",
				len(embedding), ExpectedEmbeddingDimensions)
		}

		c.logger.Debug("Query embedding generated",
			zap.Int("dimensions", len(embedding)),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens))

		return embedding, nil
	}

	return nil, fmt.Errorf("exhausted all retry attempts: %w", lastErr)
}

// handleAPIError classifies OpenAI API errors into retryable and fatal.
func (c *Client) handleAPIError(err error) error {
	if apiErr, ok := err.(*openai.APIError); ok {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("invalid API key or unauthorized access: %w", err)
		case http.StatusTooManyRequests:
			retryAfter := BaseRetryDelay
			return &RetryableError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
				RetryAfter: retryAfter,
			}
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return &RetryableError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
			}
		default:
			return fmt.Errorf("OpenAI API error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
	}

	return fmt.Errorf("OpenAI client error: %w", err)
}
