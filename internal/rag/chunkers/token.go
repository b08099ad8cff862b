package chunkers

import (
	"strings"

	"github.com/code-sleuth/sage-go/internal/rag/models"
	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"
)

const (
	defaultMaxTokens     = 256
	defaultOverlapTokens = 32
)

// TokenChunker implements token-based chunking of a document's raw text
// using tiktoken. It ignores document structure; section provenance is
// always "Main".
type TokenChunker struct {
	encoding      tokenizer.Codec
	maxTokens     int
	overlapTokens int
	logger        zerolog.Logger
}

// NewTokenChunker creates a token-based chunker. Zero values select the
// defaults.
func NewTokenChunker(maxTokens, overlapTokens int) (*TokenChunker, error) {
	logger := util.NewLogger(util.LogLevelFromEnv())

	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	if overlapTokens == 0 {
		overlapTokens = defaultOverlapTokens
	}
	if maxTokens < 0 {
		logger.Warn().Int("max_tokens", maxTokens).Msg("maxTokens must be positive")
		return nil, ErrInvalidChunkSize
	}
	if overlapTokens < 0 || overlapTokens >= maxTokens {
		logger.Warn().Int("overlap_tokens", overlapTokens).Msg("overlapTokens must be between 0 and maxTokens")
		return nil, ErrInvalidOverlap
	}

	encoding, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		logger.Error().Err(err).Msg("failed to get tokenizer")
		return nil, err
	}

	return &TokenChunker{
		encoding:      encoding,
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
		logger:        logger,
	}, nil
}

// GetChunkingStrategy returns the strategy name used by this chunker.
func (t *TokenChunker) GetChunkingStrategy() string {
	return "token"
}

// ChunkDocument splits the document's raw text into overlapping token
// windows. Documents without raw text fall back to their concatenated
// section text.
func (t *TokenChunker) ChunkDocument(doc *models.Document) ([]*models.Chunk, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	if doc.Title == "" {
		t.logger.Warn().Msg("document has no title")
		return nil, ErrTitleRequired
	}

	content := doc.Text
	if content == "" {
		var parts []string
		for _, name := range sortedKeys(doc.Sections) {
			parts = append(parts, doc.Sections[name])
		}
		content = joinNonEmpty(parts)
	}
	if content == "" {
		return nil, nil
	}

	metadata := models.ChunkMetadata{
		PageTitle: doc.Title,
		URL:       doc.URL,
		PageID:    doc.PageID,
		Section:   "Main",
		Type:      models.TypeText,
	}

	tokens, _, err := t.encoding.Encode(content)
	if err != nil {
		t.logger.Err(err).Msg("failed to tokenize content")
		return nil, err
	}

	totalTokens := len(tokens)
	var chunks []*models.Chunk

	if totalTokens <= t.maxTokens {
		chunks = append(chunks, &models.Chunk{
			Text:       content,
			Metadata:   metadata,
			TokenCount: totalTokens,
		})
	} else {
		stepSize := t.maxTokens - t.overlapTokens
		for i := 0; i < totalTokens; i += stepSize {
			end := i + t.maxTokens
			if end > totalTokens {
				end = totalTokens
			}

			chunkTokens := tokens[i:end]
			chunkText, err := t.encoding.Decode(chunkTokens)
			if err != nil {
				t.logger.Err(err).Msg("failed to decode chunk tokens")
				return nil, err
			}

			chunks = append(chunks, &models.Chunk{
				Text:       chunkText,
				Metadata:   metadata,
				TokenCount: len(chunkTokens),
			})

			if end >= totalTokens {
				break
			}
		}
	}

	total := len(chunks)
	for i, chunk := range chunks {
		chunk.Metadata.ChunkIndex = i
		chunk.Metadata.TotalChunks = total
	}

	return chunks, nil
}

func joinNonEmpty(parts []string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
