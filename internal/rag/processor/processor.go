// Package processor turns scraped page files into a chunk file ready for
// indexing.
package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/code-sleuth/sage-go/internal/rag/interfaces"
	"github.com/code-sleuth/sage-go/internal/rag/models"
	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/rs/zerolog"
)

var (
	ErrChunkerAlreadyRegistered = errors.New("chunker already registered for strategy")
	ErrNoChunkerRegistered      = errors.New("no chunker registered for strategy")
	ErrNoDocumentsFound         = errors.New("no documents found in raw directory")
)

// combined scraper output, written next to the per-page files
const combinedPagesFile = "all_pages.json"

// Processor chunks scraped documents with a registered strategy and writes
// the results as JSONL.
type Processor struct {
	chunkers map[string]interfaces.Chunker
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// NewProcessor creates a processor with no chunkers registered.
func NewProcessor() *Processor {
	return &Processor{
		chunkers: make(map[string]interfaces.Chunker),
		logger:   util.NewLogger(util.LogLevelFromEnv()),
	}
}

// RegisterChunker adds a chunking strategy to the processor.
func (p *Processor) RegisterChunker(chunker interfaces.Chunker) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	strategy := chunker.GetChunkingStrategy()
	if _, exists := p.chunkers[strategy]; exists {
		p.logger.Error().Str("strategy", strategy).Msg("Chunker already registered")
		return ErrChunkerAlreadyRegistered
	}

	p.chunkers[strategy] = chunker
	p.logger.Info().Str("strategy", strategy).Msg("Registered chunker")
	return nil
}

// LoadDocuments reads scraped documents from rawDir. A combined
// all_pages.json file takes precedence; otherwise every *.json file in the
// directory is read as a single document.
func (p *Processor) LoadDocuments(rawDir string) ([]*models.Document, error) {
	combined := filepath.Join(rawDir, combinedPagesFile)
	if _, err := os.Stat(combined); err == nil {
		return p.loadCombined(combined)
	}

	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw directory %s: %w", rawDir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var docs []*models.Document
	for _, name := range names {
		path := filepath.Join(rawDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read page file %s: %w", path, err)
		}

		var doc models.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			p.logger.Warn().Err(err).Str("file", name).Msg("skipping unparsable page file")
			continue
		}
		docs = append(docs, &doc)
	}

	if len(docs) == 0 {
		return nil, ErrNoDocumentsFound
	}
	return docs, nil
}

func (p *Processor) loadCombined(path string) ([]*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var pages []models.Document
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(pages) == 0 {
		return nil, ErrNoDocumentsFound
	}

	docs := make([]*models.Document, len(pages))
	for i := range pages {
		docs[i] = &pages[i]
	}
	return docs, nil
}

// ProcessAll chunks every document with the named strategy. Documents that
// yield no chunks are skipped with a warning; chunking errors abort the run.
func (p *Processor) ProcessAll(docs []*models.Document, strategy string) ([]*models.Chunk, error) {
	p.mu.RLock()
	chunker, ok := p.chunkers[strategy]
	p.mu.RUnlock()
	if !ok {
		p.logger.Error().Str("strategy", strategy).Msg("No chunker registered")
		return nil, ErrNoChunkerRegistered
	}

	var all []*models.Chunk
	for _, doc := range docs {
		chunks, err := chunker.ChunkDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk document %q: %w", doc.Title, err)
		}
		if len(chunks) == 0 {
			p.logger.Warn().Str("title", doc.Title).Msg("document produced no chunks")
			continue
		}
		all = append(all, chunks...)
	}

	p.logger.Info().
		Int("documents", len(docs)).
		Int("chunks", len(all)).
		Str("strategy", strategy).
		Msg("processing complete")
	return all, nil
}

// WriteChunks persists chunks as JSONL, one chunk object per line. The
// output directory is created if needed and an existing file is replaced.
func (p *Processor) WriteChunks(chunks []*models.Chunk, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chunk file %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, chunk := range chunks {
		if err := enc.Encode(chunk); err != nil {
			return fmt.Errorf("failed to write chunk: %w", err)
		}
	}

	p.logger.Info().Int("chunks", len(chunks)).Str("file", path).Msg("chunk file written")
	return nil
}
