package security

import (
	"time"

	"github.com/code-sleuth/sage-go/internal/rag/models"
)

// Manager combines the validator, rate limiter, and query logger behind one
// facade. It is constructed explicitly and injected into the query engine so
// tests can isolate state per instance.
type Manager struct {
	validator   *Validator
	rateLimiter *RateLimiter
	queryLog    *QueryLogger
}

// NewManager creates a security manager. rateLimitInterval is in seconds.
func NewManager(rateLimitInterval float64, logFile string) *Manager {
	return &Manager{
		validator:   NewValidator(),
		rateLimiter: NewRateLimiter(time.Duration(rateLimitInterval * float64(time.Second))),
		queryLog:    NewQueryLogger(logFile),
	}
}

// ValidateQuery screens and sanitizes a query.
func (m *Manager) ValidateQuery(query string) (bool, string, string) {
	return m.validator.Validate(query)
}

// CheckRateLimit checks and records a request for userID.
func (m *Manager) CheckRateLimit(userID string) (bool, float64) {
	return m.rateLimiter.CheckAndRecord(userID)
}

// ResetRateLimit clears rate-limit state for userID.
func (m *Manager) ResetRateLimit(userID string) {
	m.rateLimiter.Reset(userID)
}

// LogQuery records a completed query, best-effort.
func (m *Manager) LogQuery(query string, result *models.QueryResult, userID string, sanitized bool) {
	m.queryLog.Record(query, result, userID, sanitized)
}

// LogCount returns the number of logged queries.
func (m *Manager) LogCount() int {
	return m.queryLog.Count()
}

// ClearLogs empties the query log, reporting whether a file existed.
func (m *Manager) ClearLogs() bool {
	return m.queryLog.Clear()
}
