package chunkers

import (
	"errors"
	"strings"
	"testing"

	"github.com/code-sleuth/sage-go/internal/rag/models"
)

func TestNewTokenChunker(t *testing.T) {
	tests := []struct {
		name          string
		maxTokens     int
		overlapTokens int
		expectedError error
		description   string
	}{
		{
			name:        "defaults",
			description: "zero values should select the defaults",
		},
		{
			name:          "explicit sizes",
			maxTokens:     128,
			overlapTokens: 16,
			description:   "should accept explicit sizes",
		},
		{
			name:          "negative max tokens",
			maxTokens:     -1,
			overlapTokens: 16,
			expectedError: ErrInvalidChunkSize,
			description:   "should reject negative max tokens",
		},
		{
			name:          "overlap too large",
			maxTokens:     16,
			overlapTokens: 16,
			expectedError: ErrInvalidOverlap,
			description:   "should reject overlap >= max tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunker, err := NewTokenChunker(tt.maxTokens, tt.overlapTokens)
			if tt.expectedError != nil {
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("%s: expected error %v, got %v", tt.description, tt.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.description, err)
			}
			if chunker.GetChunkingStrategy() != "token" {
				t.Errorf("expected strategy 'token', got %q", chunker.GetChunkingStrategy())
			}
		})
	}
}

func TestTokenChunker_ChunkDocument(t *testing.T) {
	chunker, err := NewTokenChunker(10, 2)
	if err != nil {
		t.Fatalf("failed to create chunker: %v", err)
	}

	if _, err := chunker.ChunkDocument(nil); !errors.Is(err, ErrNilDocument) {
		t.Errorf("expected ErrNilDocument, got %v", err)
	}
	if _, err := chunker.ChunkDocument(&models.Document{}); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("expected ErrTitleRequired, got %v", err)
	}

	doc := &models.Document{
		Title: "Token Page",
		Text:  strings.Repeat("The quick brown fox jumps over the lazy dog. ", 5),
	}

	chunks, err := chunker.ChunkDocument(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long text, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if chunk.TokenCount <= 0 || chunk.TokenCount > 10 {
			t.Errorf("chunk %d: token count %d out of range", i, chunk.TokenCount)
		}
		if chunk.Metadata.ChunkIndex != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, chunk.Metadata.ChunkIndex)
		}
		if chunk.Metadata.TotalChunks != len(chunks) {
			t.Errorf("chunk %d: expected total %d, got %d", i, len(chunks), chunk.Metadata.TotalChunks)
		}
		if chunk.Metadata.Section != "Main" || chunk.Metadata.Type != models.TypeText {
			t.Errorf("chunk %d: unexpected metadata %+v", i, chunk.Metadata)
		}
	}
}

func TestTokenChunker_ChunkDocument_ShortText(t *testing.T) {
	chunker, err := NewTokenChunker(0, 0)
	if err != nil {
		t.Fatalf("failed to create chunker: %v", err)
	}

	doc := &models.Document{Title: "Short Page", Text: "Just a handful of tokens."}
	chunks, err := chunker.ChunkDocument(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != doc.Text {
		t.Errorf("expected chunk text to match document text")
	}
}

func TestTokenChunker_ChunkDocument_SectionFallback(t *testing.T) {
	chunker, err := NewTokenChunker(0, 0)
	if err != nil {
		t.Fatalf("failed to create chunker: %v", err)
	}

	doc := &models.Document{
		Title: "Sectioned Page",
		Sections: map[string]string{
			"History":  "The town was founded in the fifth age.",
			"Location": "It lies south of Varrock.",
		},
	}

	chunks, err := chunker.ChunkDocument(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk from section text, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "fifth age") || !strings.Contains(chunks[0].Text, "Varrock") {
		t.Errorf("expected both sections in fallback content, got %q", chunks[0].Text)
	}

	empty := &models.Document{Title: "No Content"}
	chunks, err = chunker.ChunkDocument(empty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty document, got %d", len(chunks))
	}
}
