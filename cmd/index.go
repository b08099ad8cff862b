package cmd

import (
	"context"
	"time"

	"github.com/code-sleuth/sage-go/internal/rag/embedders"
	"github.com/code-sleuth/sage-go/internal/rag/indexer"
	"github.com/code-sleuth/sage-go/internal/rag/vectorstore"
	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/spf13/cobra"
)

var (
	clearExisting bool
	indexTimeout  time.Duration
)

// indexCmd represents the index command.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed processed chunks and load them into the vector database",
	Long: `Index reads the processed chunk file, generates an embedding for every
chunk, and upserts the vectors into the Qdrant collection in batches.

Examples:
  # Build the index into an empty collection
  sage-go index

  # Drop the existing collection and rebuild from scratch
  sage-go index --clear`,
	Run: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&clearExisting, "clear", false, "Delete the existing collection before indexing")
	indexCmd.Flags().DurationVar(&indexTimeout, "timeout", 30*time.Minute, "Timeout for the entire indexing run")
}

func runIndex(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(util.LogLevelFromEnv())

	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	embedder, err := embedders.NewOllamaEmbedder(cfg.LLM.BaseURL, cfg.VectorDB.EmbeddingModel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create embedder")
	}

	store, err := vectorstore.NewQdrantStore(cfg.VectorDB.Host, cfg.VectorDB.Port, cfg.VectorDB.CollectionName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to vector database")
	}
	defer store.Close()

	ix := indexer.NewIndexer(embedder, store, cfg.VectorDB.BatchSize)

	chunks, err := ix.LoadChunks(cfg.Data.ProcessedFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.Data.ProcessedFile).Msg("failed to load chunks")
	}

	if err := ix.BuildIndex(ctx, chunks, clearExisting); err != nil {
		logger.Fatal().Err(err).Msg("index build failed")
	}
}
