// Package llm wraps the generation backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/code-sleuth/sage-go/internal/rag/interfaces"
	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"
)

var (
	ErrModelRequired  = errors.New("generation model is required")
	ErrInvalidBaseURL = errors.New("invalid base URL")
)

const generationTimeout = 2 * time.Minute

// OllamaGenerator calls a local Ollama server. Chat is the primary call
// shape; Generate is the single-prompt fallback.
type OllamaGenerator struct {
	client   *api.Client
	model    string
	encoding tokenizer.Codec
	logger   zerolog.Logger
}

// NewOllamaGenerator creates a generator for the given Ollama base URL and
// model name.
func NewOllamaGenerator(baseURL, model string) (*OllamaGenerator, error) {
	logger := util.NewLogger(util.LogLevelFromEnv())

	if model == "" {
		logger.Error().Msg("generation model not configured")
		return nil, ErrModelRequired
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		logger.Error().Str("base_url", baseURL).Msg("invalid Ollama base URL")
		return nil, ErrInvalidBaseURL
	}

	encoding, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		logger.Error().Err(err).Msg("failed to get tokenizer")
		return nil, err
	}

	return &OllamaGenerator{
		client:   api.NewClient(u, &http.Client{Timeout: generationTimeout}),
		model:    model,
		encoding: encoding,
		logger:   logger,
	}, nil
}

// Chat sends a system + user message pair and returns the completion.
func (g *OllamaGenerator) Chat(ctx context.Context, system, user string, opts interfaces.GenerationOptions) (string, error) {
	g.logPromptSize(user)

	stream := false
	req := &api.ChatRequest{
		Model: g.model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:  &stream,
		Options: generationOptions(opts),
	}

	var b strings.Builder
	err := g.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		g.logger.Err(err).Str("model", g.model).Msg("chat request failed")
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	return b.String(), nil
}

// Generate sends a single flattened prompt, the fallback call shape.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, opts interfaces.GenerationOptions) (string, error) {
	g.logPromptSize(prompt)

	stream := false
	req := &api.GenerateRequest{
		Model:   g.model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: generationOptions(opts),
	}

	var b strings.Builder
	err := g.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		b.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		g.logger.Err(err).Str("model", g.model).Msg("generate request failed")
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	return b.String(), nil
}

// GetModelName returns the name of the generation model.
func (g *OllamaGenerator) GetModelName() string {
	return g.model
}

func (g *OllamaGenerator) logPromptSize(prompt string) {
	tokens, _, err := g.encoding.Encode(prompt)
	if err != nil {
		return
	}
	g.logger.Debug().Int("prompt_tokens", len(tokens)).Str("model", g.model).Msg("sending prompt")
}

func generationOptions(opts interfaces.GenerationOptions) map[string]interface{} {
	return map[string]interface{}{
		"temperature": opts.Temperature,
		"num_predict": opts.MaxTokens,
	}
}
