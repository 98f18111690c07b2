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

// Package pipeline implements the adaptive retrieval-and-generation pipeline
// for the recipe assistant: query rewriting, retrieval with optional
// reranking, relevance grading with conditional web-search fallback,
// constraint checking, and answer generation. The pipeline is a straight-line
// sequence with a single conditional branch; it holds no state of its own
// beyond one transient State per run.
package pipeline

import "strings"

// SourceTag identifies where a document came from.
type SourceTag string

const (
	// SourceInternal marks documents retrieved from the recipe corpus.
	SourceInternal SourceTag = "internal"
	// SourceWeb marks documents produced by the fallback web searcher.
	SourceWeb SourceTag = "web"
	// SourceError marks synthetic documents that explain a search failure.
	SourceError SourceTag = "error"
)

// Document is an immutable retrieval result. Instances are shared by
// reference between a pipeline run and the session cache; they are filtered
// and re-ordered but never mutated after construction.
type Document struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Source      SourceTag `json:"source"`
	VectorScore float64   `json:"vector_score,omitempty"`
	RerankScore float64   `json:"rerank_score,omitempty"`
}

// ErrorDocument builds a synthetic document carrying a human-readable
// explanation, so downstream generation always has at least one document to
// work with.
func ErrorDocument(explanation string) Document {
	return Document{
		Title:   "search unavailable",
		Content: explanation,
		Source:  SourceError,
	}
}

// ConstraintProfile carries a user's dietary constraints for one session.
// It is supplied by the caller on session init and treated as immutable
// until the caller re-sends it.
type ConstraintProfile struct {
	Allergies    []string `json:"allergies"`
	Dislikes     []string `json:"dislikes"`
	Tools        []string `json:"tools"`
	ServingCount int      `json:"serving_count"`
}

// Servings returns the serving count, defaulting to one.
func (p ConstraintProfile) Servings() int {
	if p.ServingCount < 1 {
		return 1
	}
	return p.ServingCount
}

// IsEmpty reports whether the profile carries no allergy or dislike terms.
func (p ConstraintProfile) IsEmpty() bool {
	return len(p.Allergies) == 0 && len(p.Dislikes) == 0
}

// truncate bounds text to at most n runes for prompt building. Rune-based so
// multi-byte recipe text is never cut mid-character.
func truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// formatHistory renders the most recent turns oldest-first as "role: text"
// lines, the shape the rewrite and generation prompts expect.
func formatHistory(history []string, maxTurns int) string {
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	return strings.Join(history, "\n")
}
