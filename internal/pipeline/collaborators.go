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

import "context"

// Completer is the generative-model collaborator. Implementations wrap a
// long-lived client; the pipeline never constructs one per request.
type Completer interface {
	// Complete returns the model's text for a single prompt.
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// SimilaritySearcher is the vector-search collaborator: top-k nearest
// documents for a query, ordered by similarity descending.
type SimilaritySearcher interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}

// Reranker scores candidate documents against a query with a more expensive
// model and returns the top-n by rerank score descending.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document, topN int) ([]Document, error)
}

// WebSearcher is the fallback search collaborator. Implementations must not
// return an empty slice together with a nil error; failures and empty result
// sets surface as a single synthetic error document instead.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Document, error)
}

// Status classifies the outcome of one pipeline run.
type Status string

const (
	// StatusOK indicates a normal answer.
	StatusOK Status = "ok"
	// StatusOutOfDomain indicates the conversation was not recipe-related.
	// This is a designed outcome, not an error.
	StatusOutOfDomain Status = "out_of_domain"
	// StatusTimeout indicates the supervisor deadline expired.
	StatusTimeout Status = "timeout"
	// StatusError indicates an unrecoverable turn-level failure.
	StatusError Status = "error"
)

// Result is the only value that crosses the pipeline boundary for a turn.
// The boundary layer maps each status to the appropriate outbound envelope;
// no sentinel string comparison happens outside this package.
type Result struct {
	Status    Status
	Answer    string
	Documents []Document
}
