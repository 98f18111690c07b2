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

package recipes

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/your-org/recipe-assistant/internal/pipeline"
)

const (
	// fallbackTopK documents are fetched when the cache path is unavailable.
	fallbackTopK = 3
	// filterKeep and filterMin bound constraint filtering on the fallback path.
	filterKeep = 3
	filterMin  = 2
)

// titlePunctuation flags decorated titles that need LLM cleanup.
const titlePunctuation = "!?,.[](）（【】·"

var codeFencePattern = regexp.MustCompile("```json\\s*|\\s*```")

// ContextSource exposes a session's cached retrieval context. Satisfied by
// *session.Registry.
type ContextSource interface {
	GetCachedContext(sessionID string) ([]pipeline.Document, string, error)
}

// DocumentRetriever is the fallback retrieval dependency. Satisfied by
// *pipeline.Retriever.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string, k int, useRerank bool) ([]pipeline.Document, error)
}

// BuildRequest carries everything one recipe build needs.
type BuildRequest struct {
	SessionID string
	History   []string
	Profile   pipeline.ConstraintProfile
}

// Builder produces a structured recipe from a conversation. The cached path
// reuses the session's last retrieved documents and answer without touching
// the retriever; the fallback path extracts a search query, retrieves, and
// filters by constraints.
type Builder struct {
	completer pipeline.Completer
	retriever DocumentRetriever
	contexts  ContextSource
	logger    *zap.Logger
}

// NewBuilder wires a recipe builder.
func NewBuilder(completer pipeline.Completer, retriever DocumentRetriever, contexts ContextSource, logger *zap.Logger) *Builder {
	return &Builder{
		completer: completer,
		retriever: retriever,
		contexts:  contexts,
		logger:    logger,
	}
}

// Build generates a recipe for the session. It never returns an empty
// recipe: unparseable model output degrades to DefaultRecipe.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (Recipe, error) {
	baseRecipe, err := b.baseRecipe(ctx, req)
	if err != nil {
		return Recipe{}, err
	}

	recipe := b.generate(ctx, baseRecipe, lastUserMessage(req.History), req.Profile)
	recipe.Title = b.cleanTitle(ctx, recipe.Title)

	if recipe.Servings == "" {
		recipe.Servings = fmt.Sprintf("%d인분", req.Profile.Servings())
	}

	b.logger.Info("Recipe built",
		zap.String("session_id", req.SessionID),
		zap.String("title", recipe.Title))
	return recipe, nil
}

// baseRecipe selects the text the generation prompt refines. The cached path
// is tried first and never invokes the retriever.
func (b *Builder) baseRecipe(ctx context.Context, req BuildRequest) (string, error) {
	docs, lastAnswer, err := b.contexts.GetCachedContext(req.SessionID)
	if err != nil {
		return "", fmt.Errorf("cached context lookup: %w", err)
	}

	if lastAnswer != "" {
		b.logger.Debug("Recipe build using cached answer", zap.String("session_id", req.SessionID))
		return truncateRunes(lastAnswer, baseRecipeRunes), nil
	}
	if len(docs) > 0 {
		b.logger.Debug("Recipe build using cached documents", zap.String("session_id", req.SessionID))
		return truncateRunes(docs[0].Content, baseRecipeRunes), nil
	}

	// Fallback path: nothing cached, run a fresh retrieval.
	query := b.extractQuery(ctx, req.History, req.Profile)
	retrieved, err := b.retriever.Retrieve(ctx, query, fallbackTopK, true)
	if err != nil {
		b.logger.Warn("Fallback retrieval failed, using generic base",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		return fallbackBaseRecipe, nil
	}

	filtered := pipeline.FilterByConstraints(retrieved, req.Profile, filterKeep, filterMin)
	if len(filtered) == 0 {
		return fallbackBaseRecipe, nil
	}
	return truncateRunes(filtered[0].Content, baseRecipeRunes), nil
}

// extractQuery asks the model to distill a retrieval query from the
// conversation; a failed call degrades to a generic query.
func (b *Builder) extractQuery(ctx context.Context, history []string, profile pipeline.ConstraintProfile) string {
	prompt := fmt.Sprintf(queryExtractionPrompt,
		strings.Join(history, "\n"),
		joinOrNone(profile.Allergies),
		joinOrNone(profile.Dislikes))

	raw, err := b.completer.Complete(ctx, prompt, queryMaxTokens)
	if err != nil {
		b.logger.Warn("Query extraction failed", zap.Error(err))
		return fallbackQuery
	}
	query := strings.TrimSpace(raw)
	if query == "" {
		return fallbackQuery
	}
	return query
}

// generate turns the base recipe into structured JSON. Parse failures
// degrade to DefaultRecipe rather than erroring the build.
func (b *Builder) generate(ctx context.Context, baseRecipe, lastRequest string, profile pipeline.ConstraintProfile) Recipe {
	servings := profile.Servings()
	tools := joinOr(profile.Tools, "모든 도구")
	prompt := fmt.Sprintf(refinePrompt,
		baseRecipe, lastRequest, servings,
		joinOrNone(profile.Allergies), joinOrNone(profile.Dislikes), tools,
		servings)

	raw, err := b.completer.Complete(ctx, prompt, recipeMaxTokens)
	if err != nil {
		b.logger.Warn("Recipe generation call failed", zap.Error(err))
		return DefaultRecipe(servings)
	}

	cleaned := strings.TrimSpace(codeFencePattern.ReplaceAllString(raw, ""))
	var recipe Recipe
	if err := json.Unmarshal([]byte(cleaned), &recipe); err != nil {
		b.logger.Warn("Recipe JSON parse failed",
			zap.Error(err),
			zap.String("response_head", truncateRunes(cleaned, 200)))
		return DefaultRecipe(servings)
	}
	return recipe
}

// cleanTitle strips decorations from corpus titles. Short titles without
// punctuation are already clean and skip the model call.
func (b *Builder) cleanTitle(ctx context.Context, title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return title
	}
	if len([]rune(title)) <= 10 && !strings.ContainsAny(title, titlePunctuation) {
		return title
	}

	raw, err := b.completer.Complete(ctx, fmt.Sprintf(titleCleanPrompt, title), titleMaxTokens)
	if err != nil {
		b.logger.Warn("Title cleanup failed, keeping original", zap.Error(err))
		return title
	}
	cleaned := strings.TrimSpace(raw)
	if i := strings.IndexByte(cleaned, '\n'); i >= 0 {
		cleaned = strings.TrimSpace(cleaned[:i])
	}
	if cleaned == "" {
		return title
	}
	return cleaned
}

// lastUserMessage scans history backwards for the most recent user turn.
func lastUserMessage(history []string) string {
	for i := len(history) - 1; i >= 0; i-- {
		if strings.HasPrefix(history[i], "user: ") {
			return strings.TrimPrefix(history[i], "user: ")
		}
	}
	return fallbackLastRequest
}

func truncateRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

func joinOrNone(items []string) string {
	return joinOr(items, "없음")
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
