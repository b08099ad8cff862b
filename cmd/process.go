package cmd

import (
	"github.com/code-sleuth/sage-go/internal/rag/chunkers"
	"github.com/code-sleuth/sage-go/internal/rag/processor"
	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/spf13/cobra"
)

var chunkStrategy string

// processCmd represents the process command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Chunk scraped pages into a processed chunk file",
	Long: `Process reads scraped page files from the raw data directory, splits
them into chunks with the selected strategy, and writes the result as JSONL.

Examples:
  # Chunk with the structure-aware strategy (default)
  sage-go process

  # Chunk by token windows instead
  sage-go process --strategy token`,
	Run: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringVarP(&chunkStrategy, "strategy", "s", "structured", "Chunking strategy (structured, token)")
}

func runProcess(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(util.LogLevelFromEnv())

	structured, err := chunkers.NewStructuredChunker(
		cfg.Processing.ChunkSize,
		cfg.Processing.ChunkOverlap,
		cfg.Processing.MinChunkSize,
		cfg.Processing.PreserveTables,
		cfg.Processing.PreserveLists,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid chunking configuration")
	}

	token, err := chunkers.NewTokenChunker(0, 0)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token chunker")
	}

	proc := processor.NewProcessor()
	if err := proc.RegisterChunker(structured); err != nil {
		logger.Fatal().Err(err).Msg("failed to register structured chunker")
	}
	if err := proc.RegisterChunker(token); err != nil {
		logger.Fatal().Err(err).Msg("failed to register token chunker")
	}

	docs, err := proc.LoadDocuments(cfg.Data.RawDir)
	if err != nil {
		logger.Fatal().Err(err).Str("raw_dir", cfg.Data.RawDir).Msg("failed to load documents")
	}

	chunks, err := proc.ProcessAll(docs, chunkStrategy)
	if err != nil {
		logger.Fatal().Err(err).Str("strategy", chunkStrategy).Msg("processing failed")
	}

	if err := proc.WriteChunks(chunks, cfg.Data.ProcessedFile); err != nil {
		logger.Fatal().Err(err).Msg("failed to write chunk file")
	}
}
