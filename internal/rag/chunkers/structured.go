package chunkers

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/code-sleuth/sage-go/internal/rag/models"
	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"
)

var (
	ErrInvalidChunkSize    = errors.New("chunkSize must be positive")
	ErrInvalidOverlap      = errors.New("chunkOverlap must be between 0 and chunkSize")
	ErrInvalidMinChunkSize = errors.New("minChunkSize must be between 0 and chunkSize")
	ErrNilDocument         = errors.New("document cannot be nil")
	ErrTitleRequired       = errors.New("document title is required")
)

// StructuredChunker splits scraped documents into bounded-size retrieval
// units. Structured parts of a document (infobox, tables, lists) become
// single chunks; section text goes through the paragraph accumulator.
type StructuredChunker struct {
	chunkSize      int
	chunkOverlap   int
	minChunkSize   int
	preserveTables bool
	preserveLists  bool
	encoding       tokenizer.Codec
	logger         zerolog.Logger
}

// NewStructuredChunker creates a structured chunker. Sizes are in characters.
func NewStructuredChunker(
	chunkSize, chunkOverlap, minChunkSize int,
	preserveTables, preserveLists bool,
) (*StructuredChunker, error) {
	logger := util.NewLogger(util.LogLevelFromEnv())

	if chunkSize <= 0 {
		logger.Warn().Int("chunk_size", chunkSize).Msg("chunkSize must be positive")
		return nil, ErrInvalidChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		logger.Warn().Int("chunk_overlap", chunkOverlap).Msg("chunkOverlap must be between 0 and chunkSize")
		return nil, ErrInvalidOverlap
	}
	if minChunkSize < 0 || minChunkSize > chunkSize {
		logger.Warn().Int("min_chunk_size", minChunkSize).Msg("minChunkSize must be between 0 and chunkSize")
		return nil, ErrInvalidMinChunkSize
	}

	encoding, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		logger.Error().Err(err).Msg("failed to get tokenizer")
		return nil, err
	}

	return &StructuredChunker{
		chunkSize:      chunkSize,
		chunkOverlap:   chunkOverlap,
		minChunkSize:   minChunkSize,
		preserveTables: preserveTables,
		preserveLists:  preserveLists,
		encoding:       encoding,
		logger:         logger,
	}, nil
}

// GetChunkingStrategy returns the strategy name used by this chunker.
func (s *StructuredChunker) GetChunkingStrategy() string {
	return "structured"
}

// ChunkDocument splits a document into chunks in a fixed order: infobox,
// sections, tables, lists, then raw text as a fallback when nothing else
// produced a chunk. chunk_index and total_chunks are assigned over this
// document's chunks only.
func (s *StructuredChunker) ChunkDocument(doc *models.Document) ([]*models.Chunk, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	if doc.Title == "" {
		s.logger.Warn().Msg("document has no title")
		return nil, ErrTitleRequired
	}

	base := models.ChunkMetadata{
		PageTitle: doc.Title,
		URL:       doc.URL,
		PageID:    doc.PageID,
	}

	var chunks []*models.Chunk

	if len(doc.Infobox) > 0 {
		md := base
		md.Section = "Infobox"
		md.Type = models.TypeStructuredData
		chunks = append(chunks, &models.Chunk{
			Text:     renderInfobox(doc.Title, doc.Infobox),
			Metadata: md,
		})
	}

	// Sections are chunked in name order so chunk indices are deterministic
	// across runs.
	for _, name := range sortedKeys(doc.Sections) {
		md := base
		md.Section = name
		md.Type = models.TypeSection
		chunks = append(chunks, s.chunkText(doc.Sections[name], md)...)
	}

	if s.preserveTables {
		for _, table := range doc.Tables {
			md := base
			md.Section = table.Section
			md.Type = models.TypeTable
			chunks = append(chunks, &models.Chunk{
				Text:     renderTable(table),
				Metadata: md,
			})
		}
	}

	if s.preserveLists {
		for _, list := range doc.Lists {
			md := base
			md.Section = list.Section
			md.Type = models.TypeList
			chunks = append(chunks, &models.Chunk{
				Text:     renderList(list),
				Metadata: md,
			})
		}
	}

	// Fall back to the raw page text when no structured part yielded a chunk.
	if len(chunks) == 0 && doc.Text != "" {
		md := base
		md.Section = "Main"
		md.Type = models.TypeText
		chunks = s.chunkText(doc.Text, md)
	}

	total := len(chunks)
	for i, chunk := range chunks {
		chunk.Metadata.ChunkIndex = i
		chunk.Metadata.TotalChunks = total
		if count, err := s.countTokens(chunk.Text); err == nil {
			chunk.TokenCount = count
		}
	}

	return chunks, nil
}

// chunkText accumulates blank-line-delimited paragraphs into chunks of at
// most chunkSize characters. When a chunk is flushed, the next buffer is
// seeded with the trailing chunkOverlap characters of the previous one.
// Paragraphs larger than chunkSize are sub-split on sentence boundaries
// without overlap seeding. Flushed chunks below minChunkSize are dropped.
func (s *StructuredChunker) chunkText(text string, metadata models.ChunkMetadata) []*models.Chunk {
	var chunks []*models.Chunk

	if len(strings.TrimSpace(text)) < s.minChunkSize {
		return chunks
	}

	paragraphs := splitParagraphs(text)

	var buffer []string
	bufferLen := 0

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		chunkText := strings.Join(buffer, "\n\n")
		if len(chunkText) >= s.minChunkSize {
			chunks = append(chunks, &models.Chunk{Text: chunkText, Metadata: metadata})
		}
	}

	for _, para := range paragraphs {
		paraLen := len(para)

		if paraLen > s.chunkSize {
			// Oversized paragraph: flush what we have, then sub-split on
			// sentence boundaries with no overlap seeding.
			flush()
			buffer = nil
			bufferLen = 0

			for _, sentence := range strings.Split(para, ". ") {
				sentence = strings.TrimSpace(sentence)
				if sentence == "" {
					continue
				}
				if bufferLen+len(sentence) > s.chunkSize {
					flush()
					buffer = []string{sentence}
					bufferLen = len(sentence)
				} else {
					buffer = append(buffer, sentence)
					bufferLen += len(sentence) + 2
				}
			}
			continue
		}

		if bufferLen+paraLen > s.chunkSize && len(buffer) > 0 {
			flush()

			if s.chunkOverlap > 0 {
				overlap := overlapTail(buffer, s.chunkOverlap)
				if overlap != "" {
					buffer = []string{overlap, para}
					bufferLen = len(overlap) + paraLen + 2
				} else {
					buffer = []string{para}
					bufferLen = paraLen
				}
			} else {
				buffer = []string{para}
				bufferLen = paraLen
			}
		} else {
			buffer = append(buffer, para)
			bufferLen += paraLen + 2
		}
	}

	flush()

	return chunks
}

func (s *StructuredChunker) countTokens(text string) (int, error) {
	tokens, _, err := s.encoding.Encode(text)
	if err != nil {
		s.logger.Debug().Err(err).Msg("failed to tokenize chunk")
		return 0, err
	}
	return len(tokens), nil
}

// splitParagraphs splits on blank lines, trimming and dropping empties.
func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// overlapTail returns the trailing overlap characters of the last one or two
// buffered paragraphs.
func overlapTail(buffer []string, overlap int) string {
	var tail string
	if len(buffer) >= 2 {
		tail = strings.Join(buffer[len(buffer)-2:], "\n\n")
	} else {
		tail = buffer[len(buffer)-1]
	}
	runes := []rune(tail)
	if len(runes) > overlap {
		tail = string(runes[len(runes)-overlap:])
	}
	return tail
}

func renderInfobox(title string, infobox map[string]string) string {
	data, err := json.MarshalIndent(infobox, "", "  ")
	if err != nil {
		data = []byte("{}")
	}
	return fmt.Sprintf("Stats/Info for %s:\n%s", title, data)
}

// renderTable renders a table as a label plus JSON row records. Rows whose
// cell count does not match the header are dropped.
func renderTable(table models.Table) string {
	rows := make([]map[string]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if len(row) != len(table.Headers) {
			continue
		}
		record := make(map[string]string, len(table.Headers))
		for i, header := range table.Headers {
			record[header] = row[i]
		}
		rows = append(rows, record)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		data = []byte("[]")
	}
	return fmt.Sprintf("Table: %s\n%s", table.Section, data)
}

func renderList(list models.List) string {
	var b strings.Builder
	fmt.Fprintf(&b, "List: %s", list.Section)
	for _, item := range list.Items {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
