package embedders

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

const embeddingTimeout = 60 * time.Second

// OllamaEmbedder generates embeddings through a local Ollama server.
// Vectors are L2-normalized so the index operates in cosine space.
type OllamaEmbedder struct {
	client *api.Client
	model  string
	logger zerolog.Logger
}

// NewOllamaEmbedder creates an embedder for the given Ollama base URL and
// model name.
func NewOllamaEmbedder(baseURL, model string) (*OllamaEmbedder, error) {
	logger := util.NewLogger(util.LogLevelFromEnv())

	if model == "" {
		logger.Error().Msg("embedding model not configured")
		return nil, ErrModelRequired
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		logger.Error().Str("base_url", baseURL).Msg("invalid Ollama base URL")
		return nil, ErrInvalidBaseURL
	}

	client := api.NewClient(u, &http.Client{Timeout: embeddingTimeout})

	return &OllamaEmbedder{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// GenerateEmbedding creates a normalized vector embedding for the content.
func (o *OllamaEmbedder) GenerateEmbedding(ctx context.Context, content string) ([]float32, error) {
	if content == "" {
		o.logger.Warn().Msg("content is empty")
		return nil, ErrContentEmpty
	}

	resp, err := o.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  o.model,
		Prompt: content,
	})
	if err != nil {
		o.logger.Err(err).Str("model", o.model).Msg("embedding request failed")
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(resp.Embedding) == 0 {
		o.logger.Error().Str("model", o.model).Msg("empty embedding in response")
		return nil, ErrNoEmbeddingData
	}

	vector := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vector[i] = float32(v)
	}
	normalize(vector)

	return vector, nil
}

// GetModelName returns the name of the embedding model.
func (o *OllamaEmbedder) GetModelName() string {
	return o.model
}

// normalize scales the vector to unit length in place.
func normalize(vector []float32) {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
}
