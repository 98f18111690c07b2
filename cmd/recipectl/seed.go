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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/your-org/recipe-assistant/internal/chroma"
	"github.com/your-org/recipe-assistant/internal/config"
	"github.com/your-org/recipe-assistant/internal/llm"
)

var (
	seedConfigPath string
	seedBatchSize  int
)

func init() {
	seedCmd.Flags().StringVar(&seedConfigPath, "config", "", "config file path")
	seedCmd.Flags().IntVar(&seedBatchSize, "batch-size", 20, "documents per add request")
	rootCmd.AddCommand(seedCmd)
}

// seedRecipe is one entry of the seed file.
type seedRecipe struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Cuisine string `json:"cuisine,omitempty"`
}

// seedCmd loads recipes from a JSON file into the vector store
var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Load recipe documents into the vector store",
	Long: `Load recipe documents from a JSON file into the ChromaDB collection.

The file must contain a JSON array of objects with "title" and "content"
fields and an optional "cuisine" field. Each document is embedded with the
configured OpenAI embedding model before insertion.

Requires OPENAI_API_KEY and a reachable ChromaDB instance; both are read
from the usual configuration sources.

Example:
  recipectl seed data/recipes.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

// runSeed handles the seed command
func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		ConfigPath:       seedConfigPath,
		ValidateRequired: false,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required for embedding (set OPENAI_API_KEY)")
	}
	if cfg.Chroma.URL == "" {
		return fmt.Errorf("ChromaDB URL is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	recipes, err := readSeedFile(args[0])
	if err != nil {
		return err
	}
	if len(recipes) == 0 {
		return fmt.Errorf("seed file %s contains no recipes", args[0])
	}

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:      cfg.OpenAI.APIKey,
		Endpoint:    cfg.OpenAI.Endpoint,
		ChatModel:   cfg.OpenAI.ChatModel,
		Temperature: float32(cfg.OpenAI.Temperature),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	client := chroma.NewClient(cfg.Chroma.URL, cfg.Chroma.CollectionName, logger)

	ctx := context.Background()
	if err := client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("ChromaDB is not reachable at %s: %w", cfg.Chroma.URL, err)
	}
	if err := client.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to prepare collection: %w", err)
	}

	start := time.Now()
	for offset := 0; offset < len(recipes); offset += seedBatchSize {
		end := offset + seedBatchSize
		if end > len(recipes) {
			end = len(recipes)
		}
		if err := seedBatch(ctx, client, llmClient, recipes[offset:end], offset); err != nil {
			return err
		}
		fmt.Printf("seeded %d/%d recipes\n", end, len(recipes))
	}

	fmt.Printf("done: %d recipes into collection %q in %s\n",
		len(recipes), cfg.Chroma.CollectionName, time.Since(start).Round(time.Millisecond))
	return nil
}

// seedBatch embeds one slice of recipes and adds them in a single request.
func seedBatch(ctx context.Context, client *chroma.Client, embedder *llm.Client, recipes []seedRecipe, offset int) error {
	ids := make([]string, 0, len(recipes))
	embeddings := make([][]float32, 0, len(recipes))
	documents := make([]string, 0, len(recipes))
	metadatas := make([]map[string]interface{}, 0, len(recipes))

	for i, recipe := range recipes {
		embedding, err := embedder.EmbedQuery(ctx, recipe.Content)
		if err != nil {
			return fmt.Errorf("failed to embed recipe %q: %w", recipe.Title, err)
		}

		metadata := map[string]interface{}{"title": recipe.Title}
		if recipe.Cuisine != "" {
			metadata["cuisine"] = recipe.Cuisine
		}

		ids = append(ids, fmt.Sprintf("recipe_%04d", offset+i))
		embeddings = append(embeddings, embedding)
		documents = append(documents, recipe.Content)
		metadatas = append(metadatas, metadata)
	}

	if err := client.AddDocuments(ctx, ids, embeddings, documents, metadatas); err != nil {
		return fmt.Errorf("failed to add batch starting at %d: %w", offset, err)
	}
	return nil
}

// readSeedFile parses the JSON recipe file and rejects entries missing the
// required fields.
func readSeedFile(path string) ([]seedRecipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var recipes []seedRecipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i, recipe := range recipes {
		if recipe.Title == "" || recipe.Content == "" {
			return nil, fmt.Errorf("recipe %d is missing title or content", i)
		}
	}
	return recipes, nil
}
