package security

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/code-sleuth/sage-go/internal/rag/models"
	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/rs/zerolog"
)

const (
	queryHashLength    = 16
	queryPreviewLength = 100
)

// QueryLogger keeps an append-only JSONL audit trail of queries and their
// outcomes. The query text is stored only as a hash, a length, and a short
// preview.
type QueryLogger struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewQueryLogger creates a query logger writing to path. The parent
// directory is created if missing.
func NewQueryLogger(path string) *QueryLogger {
	logger := util.NewLogger(util.LogLevelFromEnv())
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error().Err(err).Str("dir", dir).Msg("failed to create query log directory")
		}
	}
	return &QueryLogger{
		path:   path,
		logger: logger,
	}
}

// Record appends one log entry for a completed query. It is best-effort:
// failures are logged internally and never propagate to the caller.
func (q *QueryLogger) Record(query string, result *models.QueryResult, userID string, sanitized bool) {
	hash := sha256.Sum256([]byte(query))

	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}

	entry := models.LogEntry{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		UserID:          userID,
		QueryHash:       hex.EncodeToString(hash[:])[:queryHashLength],
		QueryLength:     len([]rune(query)),
		QueryPreview:    preview(query),
		Sanitized:       sanitized,
		ResponseLength:  len(result.Answer),
		SourcesCount:    len(sources),
		Sources:         sources,
		ChunksRetrieved: len(result.Chunks),
	}

	line, err := json.Marshal(entry)
	if err != nil {
		q.logger.Error().Err(err).Msg("failed to marshal log entry")
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.OpenFile(q.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		q.logger.Error().Err(err).Str("path", q.path).Msg("failed to open query log")
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		q.logger.Error().Err(err).Str("path", q.path).Msg("failed to append log entry")
		return
	}

	q.logger.Debug().Str("query_hash", entry.QueryHash).Msg("logged query")
}

// Count returns the number of log entries, zero when no log exists.
func (q *QueryLogger) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.Open(q.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			q.logger.Error().Err(err).Str("path", q.path).Msg("failed to open query log")
		}
		return 0
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		q.logger.Error().Err(err).Str("path", q.path).Msg("failed to scan query log")
		return 0
	}
	return count
}

// Clear deletes the log file. It returns whether a file existed to clear;
// clearing an absent log is not an error.
func (q *QueryLogger) Clear() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := os.Remove(q.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			q.logger.Error().Err(err).Str("path", q.path).Msg("failed to clear query log")
		}
		return false
	}
	q.logger.Info().Str("path", q.path).Msg("query log cleared")
	return true
}

func preview(query string) string {
	runes := []rune(query)
	if len(runes) > queryPreviewLength {
		return string(runes[:queryPreviewLength]) + "..."
	}
	return query
}
