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

// Package main provides the conversational recipe assistant chat service.
// It serves a websocket endpoint that runs the adaptive retrieval pipeline
// per user turn and a health endpoint for its collaborators.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/recipe-assistant/internal/archive"
	"github.com/your-org/recipe-assistant/internal/chroma"
	"github.com/your-org/recipe-assistant/internal/config"
	"github.com/your-org/recipe-assistant/internal/gateway"
	"github.com/your-org/recipe-assistant/internal/health"
	"github.com/your-org/recipe-assistant/internal/llm"
	"github.com/your-org/recipe-assistant/internal/pipeline"
	"github.com/your-org/recipe-assistant/internal/recipes"
	"github.com/your-org/recipe-assistant/internal/rerank"
	"github.com/your-org/recipe-assistant/internal/session"
	"github.com/your-org/recipe-assistant/internal/websearch"
)

const serviceVersion = "1.0.0"

func main() {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	masked := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded successfully",
		zap.String("service", "chatserver"),
		zap.String("chroma_url", masked.Chroma.URL),
		zap.String("collection_name", masked.Chroma.CollectionName),
		zap.String("chat_model", masked.OpenAI.ChatModel),
		zap.String("openai_api_key", masked.OpenAI.APIKey),
		zap.String("websearch_provider", masked.WebSearch.Provider),
		zap.Int("top_k", masked.Retrieval.TopK),
		zap.Bool("use_rerank", masked.Retrieval.UseRerank),
	)

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:      cfg.OpenAI.APIKey,
		Endpoint:    cfg.OpenAI.Endpoint,
		ChatModel:   cfg.OpenAI.ChatModel,
		Temperature: float32(cfg.OpenAI.Temperature),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize LLM client", zap.Error(err))
	}

	chromaClient := chroma.NewClient(cfg.Chroma.URL, cfg.Chroma.CollectionName, logger)
	searcher := chroma.NewSearcher(chromaClient, llmClient, logger)
	reranker := rerank.New(llmClient, logger)
	retriever := pipeline.NewRetriever(searcher, reranker, logger)

	provider, err := buildSearchProvider(cfg, llmClient, logger)
	if err != nil {
		logger.Fatal("Failed to initialize web search provider", zap.Error(err))
	}
	webSearcher := websearch.NewFallbackSearcher(provider, logger)

	pipe := pipeline.New(
		pipeline.NewRewriter(llmClient, logger),
		retriever,
		pipeline.NewGrader(llmClient, logger),
		pipeline.NewGenerator(llmClient, logger),
		webSearcher,
		pipeline.Options{
			TopK:          cfg.Retrieval.TopK,
			UseRerank:     cfg.Retrieval.UseRerank,
			WebMaxResults: cfg.WebSearch.MaxResults,
		},
		logger,
	)

	registry := session.NewRegistry(logger)
	supervisor := session.NewSupervisor(
		pipe,
		time.Duration(cfg.Session.DeadlineSeconds)*time.Second,
		time.Duration(cfg.Session.NotifyIntervalSeconds)*time.Second,
		logger,
	)
	manager := session.NewManager(supervisor, logger)

	store, err := archive.NewStore(cfg.Archive.DBPath)
	if err != nil {
		logger.Fatal("Failed to open archive store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close archive store", zap.Error(err))
		}
	}()

	builder := recipes.NewBuilder(llmClient, retriever, registry, logger)

	healthManager := health.NewManager("chatserver", serviceVersion, registry, logger)
	healthManager.AddChecker("chroma", health.ExternalServiceHealthChecker("chroma", chromaClient.HealthCheck))
	healthManager.AddChecker("archive", health.DatabaseHealthChecker("archive", func(ctx context.Context) error {
		_, err := store.ListRecipes(ctx, "healthcheck", 1)
		return err
	}))

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", healthManager.GinHandler())
	gateway.NewHandler(registry, manager, builder, store, logger).Register(router)

	addr := ":" + cfg.Server.Port
	logger.Info("Starting chat server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

// buildSearchProvider selects the configured fallback web search provider.
func buildSearchProvider(cfg *config.Config, llmClient *llm.Client, logger *zap.Logger) (websearch.Provider, error) {
	switch cfg.WebSearch.Provider {
	case "tavily":
		return websearch.NewTavilyProvider(cfg.WebSearch.TavilyKey, "", logger)
	case "openai":
		return websearch.NewOpenAIProvider(llmClient, logger), nil
	default:
		return nil, fmt.Errorf("unknown websearch provider: %s", cfg.WebSearch.Provider)
	}
}

// initializeLogger creates a logger based on configuration settings
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}

	if cfg.Logging.Output != "" && cfg.Logging.Output != "stdout" {
		zapConfig.OutputPaths = []string{cfg.Logging.Output}
	}

	return zapConfig.Build()
}
