// Package security gates every query before it reaches retrieval and
// generation: input validation, per-user rate limiting, and audit logging.
package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/rs/zerolog"
)

// DefaultMaxQueryLength is the maximum accepted query length in characters.
const DefaultMaxQueryLength = 2000

// Prompt-injection signatures. A match rejects the whole query; the matched
// pattern is logged but never revealed to the caller.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|above|all)\s+(instructions?|prompts?|commands?)`),
	regexp.MustCompile(`(?i)forget\s+(previous|above|all)`),
	regexp.MustCompile(`(?i)you\s+are\s+now`),
	regexp.MustCompile(`(?i)act\s+as\s+if`),
	regexp.MustCompile(`(?i)pretend\s+to\s+be`),
	regexp.MustCompile(`(?i)system\s*:`),
	regexp.MustCompile(`<\|.*?\|>`),
	regexp.MustCompile(`(?i)\[INST\]`),
	regexp.MustCompile(`(?i)\[/INST\]`),
}

var (
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	suspiciousChars = regexp.MustCompile(`[^\w\s.,!?;:\-'"()\[\]/]`)
)

// Validator screens and normalizes raw user queries.
type Validator struct {
	maxLength int
	logger    zerolog.Logger
}

// NewValidator creates a validator with the default maximum query length.
func NewValidator() *Validator {
	return NewValidatorWithLimit(DefaultMaxQueryLength)
}

// NewValidatorWithLimit creates a validator with a custom maximum query
// length.
func NewValidatorWithLimit(maxLength int) *Validator {
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	return &Validator{
		maxLength: maxLength,
		logger:    util.NewLogger(util.LogLevelFromEnv()),
	}
}

// Validate screens and sanitizes a query. It returns whether the query is
// accepted, the sanitized text, and a human-readable rejection reason.
// On a length rejection the returned text is the query truncated to the
// limit, for visibility; the query is still rejected.
func (v *Validator) Validate(query string) (bool, string, string) {
	if query == "" {
		return false, "", "query must be a non-empty string"
	}

	runes := []rune(query)
	if len(runes) > v.maxLength {
		return false, string(runes[:v.maxLength]), fmt.Sprintf("query too long (max %d chars)", v.maxLength)
	}

	sanitized := strings.TrimSpace(query)
	if sanitized == "" {
		return false, "", "query cannot be empty"
	}

	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(sanitized) {
			v.logger.Warn().Str("pattern", pattern.String()).Msg("potential prompt injection detected")
			return false, sanitized, "query contains potentially unsafe content"
		}
	}

	// Collapse internal whitespace runs to single spaces.
	sanitized = whitespaceRuns.ReplaceAllString(sanitized, " ")

	// Strip control characters; newline and tab survive, though the
	// whitespace collapse above has already folded them into spaces.
	sanitized = strings.Map(func(r rune) rune {
		if r >= 32 || r == '\n' || r == '\t' {
			return r
		}
		return -1
	}, sanitized)

	// Non-standard characters are allowed but logged for review.
	if found := suspiciousChars.FindAllString(sanitized, -1); len(found) > 0 {
		unique := make(map[string]struct{}, len(found))
		for _, c := range found {
			unique[c] = struct{}{}
		}
		chars := make([]string, 0, len(unique))
		for c := range unique {
			chars = append(chars, c)
		}
		v.logger.Info().Strs("chars", chars).Msg("query contains non-standard characters")
	}

	return true, sanitized, ""
}
