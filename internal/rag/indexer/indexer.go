// Package indexer embeds processed chunks and loads them into the vector
// index.
package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/code-sleuth/sage-go/internal/rag/interfaces"
	"github.com/code-sleuth/sage-go/internal/rag/models"
	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrCollectionNotEmpty = errors.New("collection already contains chunks; use clear to rebuild")
	ErrNoChunks           = errors.New("chunk file contains no chunks")
)

// Indexer embeds chunks and writes them to the vector store in batches.
type Indexer struct {
	embedder  interfaces.Embedder
	store     interfaces.VectorStore
	batchSize int
	logger    zerolog.Logger
}

// NewIndexer creates an indexer. batchSize caps how many embedded chunks
// are upserted per store call; zero or negative falls back to one.
func NewIndexer(embedder interfaces.Embedder, store interfaces.VectorStore, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Indexer{
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
		logger:    util.NewLogger(util.LogLevelFromEnv()),
	}
}

// LoadChunks reads a JSONL chunk file produced by the processor.
func (ix *Indexer) LoadChunks(path string) ([]*models.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk file %s: %w", path, err)
	}
	defer f.Close()

	var chunks []*models.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk models.Chunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("failed to parse chunk line: %w", err)
		}
		chunks = append(chunks, &chunk)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunk file %s: %w", path, err)
	}

	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	return chunks, nil
}

// BuildIndex embeds every chunk and upserts the vectors in batches. When
// clearExisting is set the collection is dropped first; otherwise a
// non-empty collection aborts the build.
func (ix *Indexer) BuildIndex(ctx context.Context, chunks []*models.Chunk, clearExisting bool) error {
	if clearExisting {
		if err := ix.store.DeleteAll(ctx); err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
	} else {
		count, err := ix.store.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to check collection: %w", err)
		}
		if count > 0 {
			ix.logger.Error().Int("existing", count).Msg("collection is not empty")
			return ErrCollectionNotEmpty
		}
	}

	batch := make([]interfaces.StoredChunk, 0, ix.batchSize)
	indexed := 0
	for _, chunk := range chunks {
		vector, err := ix.embedder.GenerateEmbedding(ctx, chunk.Text)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d of %q: %w",
				chunk.Metadata.ChunkIndex, chunk.Metadata.PageTitle, err)
		}

		batch = append(batch, interfaces.StoredChunk{
			ID:       uuid.New().String(),
			Vector:   vector,
			Text:     chunk.Text,
			Metadata: chunk.Metadata,
		})

		if len(batch) >= ix.batchSize {
			if err := ix.store.StoreBatch(ctx, batch); err != nil {
				return fmt.Errorf("failed to store batch: %w", err)
			}
			indexed += len(batch)
			ix.logger.Info().Int("indexed", indexed).Int("total", len(chunks)).Msg("batch stored")
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := ix.store.StoreBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to store batch: %w", err)
		}
		indexed += len(batch)
	}

	ix.logger.Info().
		Int("chunks", indexed).
		Str("model", ix.embedder.GetModelName()).
		Msg("index build complete")
	return nil
}
