package interfaces

import (
	"context"

	"github.com/code-sleuth/sage-go/internal/rag/models"
)

// StoredChunk is one chunk ready for the vector index.
type StoredChunk struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata models.ChunkMetadata
}

// SearchResult is one nearest-neighbor hit from the vector index. Distance
// is in cosine space; similarity is 1 - distance.
type SearchResult struct {
	Text     string
	Metadata models.ChunkMetadata
	Distance float64
}

// GenerationOptions are the per-request knobs passed to the generation
// backend.
type GenerationOptions struct {
	Temperature float64
	MaxTokens   int
}

// Chunker defines the interface for breaking documents into chunks.
type Chunker interface {
	// ChunkDocument splits a document into retrieval units with provenance
	// metadata. A document that yields no usable chunks returns an empty
	// slice, not an error.
	ChunkDocument(doc *models.Document) ([]*models.Chunk, error)

	// GetChunkingStrategy returns the strategy name used by this chunker
	GetChunkingStrategy() string
}

// Embedder defines the interface for generating vector embeddings.
type Embedder interface {
	// GenerateEmbedding creates a normalized vector embedding for the content
	GenerateEmbedding(ctx context.Context, content string) ([]float32, error)

	// GetModelName returns the name of the embedding model
	GetModelName() string
}

// VectorStore defines the interface for the external vector index.
type VectorStore interface {
	// Store upserts a single chunk into the index
	Store(ctx context.Context, chunk StoredChunk) error

	// StoreBatch upserts a batch of chunks into the index
	StoreBatch(ctx context.Context, chunks []StoredChunk) error

	// Search returns the k nearest chunks in relevance order
	Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error)

	// Count returns the number of stored chunks
	Count(ctx context.Context) (int, error)

	// DeleteAll removes every stored chunk
	DeleteAll(ctx context.Context) error
}

// Generator defines the interface for the generation backend.
type Generator interface {
	// Chat sends a system + user message pair and returns the completion
	Chat(ctx context.Context, system, user string, opts GenerationOptions) (string, error)

	// Generate sends a single flattened prompt; the fallback call shape
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)

	// GetModelName returns the name of the generation model
	GetModelName() string
}
