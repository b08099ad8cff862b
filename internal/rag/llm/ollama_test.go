package llm

import (
	"errors"
	"testing"

	"github.com/code-sleuth/sage-go/internal/rag/interfaces"
)

func TestNewOllamaGenerator(t *testing.T) {
	tests := []struct {
		name          string
		baseURL       string
		model         string
		expectedError error
		description   string
	}{
		{
			name:        "valid configuration",
			baseURL:     "http://localhost:11434",
			model:       "llama3.2",
			description: "should create generator with valid URL and model",
		},
		{
			name:          "missing model",
			baseURL:       "http://localhost:11434",
			expectedError: ErrModelRequired,
			description:   "should reject empty model name",
		},
		{
			name:          "missing host",
			baseURL:       "http://",
			model:         "llama3.2",
			expectedError: ErrInvalidBaseURL,
			description:   "should reject URL without host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewOllamaGenerator(tt.baseURL, tt.model)
			if tt.expectedError != nil {
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("%s: expected error %v, got %v", tt.description, tt.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.description, err)
			}
			if generator.GetModelName() != tt.model {
				t.Errorf("expected model %q, got %q", tt.model, generator.GetModelName())
			}
		})
	}
}

func TestGenerationOptions(t *testing.T) {
	opts := generationOptions(interfaces.GenerationOptions{Temperature: 0.7, MaxTokens: 500})
	if opts["temperature"] != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", opts["temperature"])
	}
	if opts["num_predict"] != 500 {
		t.Errorf("expected num_predict 500, got %v", opts["num_predict"])
	}
}
