package cmd

import (
	"github.com/code-sleuth/sage-go/internal/config"
	"github.com/code-sleuth/sage-go/internal/rag/embedders"
	"github.com/code-sleuth/sage-go/internal/rag/llm"
	"github.com/code-sleuth/sage-go/internal/rag/security"
	"github.com/code-sleuth/sage-go/internal/rag/services"
	"github.com/code-sleuth/sage-go/internal/rag/vectorstore"
)

// newQueryEngine wires the full query pipeline from configuration. The
// returned cleanup closes the vector store connection.
func newQueryEngine(cfg *config.Config) (*services.Engine, *security.Manager, func(), error) {
	embedder, err := embedders.NewOllamaEmbedder(cfg.LLM.BaseURL, cfg.VectorDB.EmbeddingModel)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := vectorstore.NewQdrantStore(cfg.VectorDB.Host, cfg.VectorDB.Port, cfg.VectorDB.CollectionName)
	if err != nil {
		return nil, nil, nil, err
	}

	generator, err := llm.NewOllamaGenerator(cfg.LLM.BaseURL, cfg.LLM.Model)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	sec := security.NewManager(cfg.Security.RateLimitInterval, cfg.Security.QueryLogFile)

	engine := services.NewEngine(embedder, store, generator, sec, services.Options{
		TopK:                cfg.RAG.TopK,
		SimilarityThreshold: cfg.RAG.SimilarityThreshold,
		MaxContextLength:    cfg.RAG.MaxContextLength,
		Temperature:         cfg.LLM.Temperature,
		MaxTokens:           cfg.LLM.MaxTokens,
		MaxResponseTokens:   cfg.LLM.MaxResponseTokens,
		SystemPrompt:        cfg.LLM.SystemPrompt,
		EnableValidation:    cfg.Security.EnableInputValidation,
		EnableRateLimiting:  cfg.Security.EnableRateLimiting,
		EnableLogging:       cfg.Security.EnableQueryLogging,
	})

	cleanup := func() { _ = store.Close() }
	return engine, sec, cleanup, nil
}
