// Package sanitizer masks personal data in request bodies before they are
// written to logs.
package sanitizer

import (
	"regexp"
	"strings"
)

// Redacted replaces every masked value.
const Redacted = "[REDACTED]"

// Sanitizer truncates text and masks personal data.
type Sanitizer struct {
	patterns []*regexp.Regexp
	maxSize  int
}

// Pattern definitions for personal and sensitive data.
var defaultPatterns = []*regexp.Regexp{
	// Identifying JSON fields; the value is masked, the key kept.
	regexp.MustCompile(`(?i)("(?:name|full_name|phone|mobile|email|address|id_number|national_id|birthday|birth_date)"\s*:\s*)"[^"]*"`),

	// Taiwan national ID / resident certificate numbers
	regexp.MustCompile(`\b[A-Z][12489]\d{8}\b`),

	// Taiwan mobile numbers
	regexp.MustCompile(`\b09\d{2}-?\d{3}-?\d{3}\b`),

	// International phone numbers
	regexp.MustCompile(`\+\d{1,3}[\s-]?\d{1,4}[\s-]?\d{3,4}[\s-]?\d{3,4}`),

	// Email addresses
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),

	// Authentication tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]+`),
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
}

// New creates a new Sanitizer with default patterns.
func New(maxSize int) *Sanitizer {
	return &Sanitizer{
		patterns: defaultPatterns,
		maxSize:  maxSize,
	}
}

// NewWithPatterns creates a Sanitizer with custom patterns. A pattern with
// a capture group keeps the first group and masks the rest of the match.
func NewWithPatterns(maxSize int, patterns []*regexp.Regexp) *Sanitizer {
	return &Sanitizer{
		patterns: patterns,
		maxSize:  maxSize,
	}
}

// Sanitize trims text, enforces the size limit and masks personal data.
func (s *Sanitizer) Sanitize(text string) string {
	text = strings.TrimSpace(text)

	if len(text) > s.maxSize {
		text = truncate(text, s.maxSize)
	}

	return s.mask(text)
}

func (s *Sanitizer) mask(text string) string {
	result := text
	for _, pattern := range s.patterns {
		if pattern.NumSubexp() > 0 {
			result = pattern.ReplaceAllString(result, `${1}"`+Redacted+`"`)
			continue
		}
		result = pattern.ReplaceAllString(result, Redacted)
	}
	return result
}

// truncate cuts text to at most n bytes without splitting a UTF-8 sequence.
func truncate(text string, n int) string {
	for n > 0 && n < len(text) && !isRuneStart(text[n]) {
		n--
	}
	return text[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// IsTooLarge checks if text exceeds the maximum size.
func (s *Sanitizer) IsTooLarge(text string) bool {
	return len(text) > s.maxSize
}

// Stats describes one sanitization.
type Stats struct {
	OriginalSize  int
	SanitizedSize int
	Truncated     bool
	ValuesMasked  int
}

// SanitizeWithStats performs sanitization and returns statistics.
func (s *Sanitizer) SanitizeWithStats(text string) (string, Stats) {
	stats := Stats{
		OriginalSize: len(text),
		Truncated:    len(strings.TrimSpace(text)) > s.maxSize,
	}

	sanitized := s.Sanitize(text)
	stats.ValuesMasked = strings.Count(sanitized, Redacted)
	stats.SanitizedSize = len(sanitized)

	return sanitized, stats
}
