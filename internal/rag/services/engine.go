// Package services contains the query engine that sequences validation,
// rate limiting, retrieval, context assembly, generation, and audit logging.
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/code-sleuth/sage-go/internal/rag/interfaces"
	"github.com/code-sleuth/sage-go/internal/rag/models"
	"github.com/code-sleuth/sage-go/internal/rag/security"
	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/rs/zerolog"
)

// DefaultUserID identifies queries whose caller supplied no user identifier.
const DefaultUserID = "default"

const (
	retrievalTimeout  = 30 * time.Second
	generationTimeout = 2 * time.Minute

	// Rough estimate: one token is about four characters. Used to
	// hard-truncate runaway answers after generation.
	charsPerToken = 4

	noResultAnswer  = "I couldn't find relevant information in the knowledge base for your query."
	truncatedMarker = "... [Response truncated]"
)

// Options configures the query engine.
type Options struct {
	TopK                int
	SimilarityThreshold float64
	MaxContextLength    int
	Temperature         float64
	MaxTokens           int
	MaxResponseTokens   int
	SystemPrompt        string
	EnableValidation    bool
	EnableRateLimiting  bool
	EnableLogging       bool
}

// Engine runs the full query pipeline. It never returns an error to the
// caller; every path produces a well-formed QueryResult.
type Engine struct {
	embedder  interfaces.Embedder
	store     interfaces.VectorStore
	generator interfaces.Generator
	security  *security.Manager
	opts      Options
	logger    zerolog.Logger
}

// NewEngine creates a query engine with explicitly injected collaborators.
func NewEngine(
	embedder interfaces.Embedder,
	store interfaces.VectorStore,
	generator interfaces.Generator,
	sec *security.Manager,
	opts Options,
) *Engine {
	return &Engine{
		embedder:  embedder,
		store:     store,
		generator: generator,
		security:  sec,
		opts:      opts,
		logger:    util.NewLogger(util.LogLevelFromEnv()),
	}
}

// Query runs the complete pipeline for one user query. skipSecurity
// bypasses validation, rate limiting, and logging; it is for internal use
// only.
func (e *Engine) Query(ctx context.Context, userQuery, userID string, skipSecurity bool) *models.QueryResult {
	if userID == "" {
		userID = DefaultUserID
	}

	originalQuery := userQuery
	sanitized := false

	if e.opts.EnableValidation && !skipSecurity {
		ok, sanitizedQuery, reason := e.security.ValidateQuery(userQuery)
		if !ok {
			e.logger.Warn().Str("reason", reason).Msg("query rejected")
			return &models.QueryResult{
				Answer:   "Query rejected: " + reason,
				Sources:  []string{},
				Chunks:   []models.RetrievedChunk{},
				Error:    reason,
				Rejected: true,
			}
		}

		if sanitizedQuery != userQuery {
			sanitized = true
			userQuery = sanitizedQuery
			e.logger.Info().Msg("query was sanitized")
		}

		if e.opts.EnableRateLimiting {
			allowed, waitTime := e.security.CheckRateLimit(userID)
			if !allowed {
				return &models.QueryResult{
					Answer: fmt.Sprintf(
						"Rate limit exceeded. Please wait %.1f seconds before your next query.", waitTime),
					Sources:  []string{},
					Chunks:   []models.RetrievedChunk{},
					Error:    "rate_limit",
					WaitTime: waitTime,
				}
			}
		}
	}

	chunks, err := e.retrieve(ctx, userQuery)
	if err != nil {
		e.logger.Error().Err(err).Msg("retrieval failed")
		return &models.QueryResult{
			Answer:  "Error retrieving relevant information: " + err.Error(),
			Sources: []string{},
			Chunks:  []models.RetrievedChunk{},
			Error:   "retrieval_failed",
		}
	}

	if len(chunks) == 0 {
		result := &models.QueryResult{
			Answer:  noResultAnswer,
			Sources: []string{},
			Chunks:  []models.RetrievedChunk{},
		}
		// Empty retrieval is a successful path and is logged like any
		// other completed query.
		if e.opts.EnableLogging && !skipSecurity {
			e.security.LogQuery(originalQuery, result, userID, sanitized)
		}
		return result
	}

	contextText := e.assembleContext(chunks)
	answer := e.generate(ctx, userQuery, contextText)

	result := &models.QueryResult{
		Answer:  answer,
		Sources: referencedPages(chunks),
		Chunks:  chunks,
	}

	if e.opts.EnableLogging && !skipSecurity {
		e.security.LogQuery(originalQuery, result, userID, sanitized)
	}

	return result
}

// retrieve embeds the query, fetches the top-K nearest chunks, and keeps
// those at or above the similarity threshold in relevance order.
func (e *Engine) retrieve(ctx context.Context, query string) ([]models.RetrievedChunk, error) {
	rctx, cancel := context.WithTimeout(ctx, retrievalTimeout)
	defer cancel()

	vector, err := e.embedder.GenerateEmbedding(rctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := e.store.Search(rctx, vector, e.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	var chunks []models.RetrievedChunk
	for _, result := range results {
		similarity := 1 - result.Distance
		if similarity >= e.opts.SimilarityThreshold {
			chunks = append(chunks, models.RetrievedChunk{
				Text:       result.Text,
				Metadata:   result.Metadata,
				Similarity: similarity,
			})
		}
	}
	return chunks, nil
}

// assembleContext concatenates chunk texts with provenance tags, in
// descending relevance order, stopping before the chunk that would exceed
// the context budget.
func (e *Engine) assembleContext(chunks []models.RetrievedChunk) string {
	var parts []string
	currentLength := 0

	for _, chunk := range chunks {
		tag := "[Source: " + chunk.Metadata.PageTitle
		if chunk.Metadata.Section != "" {
			tag += " - " + chunk.Metadata.Section
		}
		part := tag + "]\n" + chunk.Text + "\n\n"

		if currentLength+len(part) > e.opts.MaxContextLength {
			break
		}
		parts = append(parts, part)
		currentLength += len(part)
	}

	return strings.Join(parts, "\n")
}

// generate builds the prompt and calls the generation backend: the chat
// shape first, then one retry with the single-prompt shape before degrading
// to failure text. The answer is hard-truncated to the approximate
// character budget.
func (e *Engine) generate(ctx context.Context, query, contextText string) string {
	// Second injection barrier: the interpolated question must not carry
	// line breaks whatever the earlier sanitization did.
	safeQuery := strings.NewReplacer("\n", " ", "\r", "").Replace(query)

	userPrompt := fmt.Sprintf(
		"Context from the knowledge base:\n%s\n\nQuestion: %s\n\nAnswer based on the provided context:",
		contextText, safeQuery)

	tokenLimit := e.opts.MaxTokens
	if e.opts.MaxResponseTokens < tokenLimit {
		tokenLimit = e.opts.MaxResponseTokens
	}
	opts := interfaces.GenerationOptions{
		Temperature: e.opts.Temperature,
		MaxTokens:   tokenLimit,
	}

	gctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	answer, err := e.generator.Chat(gctx, e.opts.SystemPrompt, userPrompt, opts)
	if err != nil {
		e.logger.Error().Err(err).Msg("chat generation failed, trying fallback")

		fctx, fcancel := context.WithTimeout(ctx, generationTimeout)
		defer fcancel()

		fallback, fallbackErr := e.generator.Generate(fctx, e.opts.SystemPrompt+"\n\n"+userPrompt, opts)
		if fallbackErr != nil {
			e.logger.Error().Err(fallbackErr).Msg("fallback generation also failed")
			return "Error generating response: " + err.Error()
		}
		answer = fallback
	}

	return truncateAnswer(answer, tokenLimit*charsPerToken, e.logger)
}

// referencedPages returns the distinct page titles among retrieved chunks,
// alphabetically sorted.
func referencedPages(chunks []models.RetrievedChunk) []string {
	seen := make(map[string]struct{})
	for _, chunk := range chunks {
		if chunk.Metadata.PageTitle != "" {
			seen[chunk.Metadata.PageTitle] = struct{}{}
		}
	}
	pages := make([]string, 0, len(seen))
	for title := range seen {
		pages = append(pages, title)
	}
	sort.Strings(pages)
	return pages
}

func truncateAnswer(answer string, maxChars int, logger zerolog.Logger) string {
	if len(answer) <= maxChars {
		return answer
	}
	logger.Warn().Int("max_chars", maxChars).Msg("response truncated")
	return answer[:maxChars] + truncatedMarker
}
