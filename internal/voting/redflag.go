package voting

import (
	"strings"
)

// FormatValidator reports whether a raw response has the expected shape.
type FormatValidator func(raw string) bool

// Predicate reports whether a raw response should be discarded.
type Predicate func(raw string) bool

// FilterConfig is the red-flag policy for one step.
type FilterConfig struct {
	// MaxLength is the largest accepted word count. Zero disables the check.
	MaxLength int

	// Validator must accept the response. Nil accepts everything.
	Validator FormatValidator

	// Predicates flag the response when any of them returns true.
	Predicates []Predicate
}

// Reason identifies the rule that flagged a response.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonTooLong   Reason = "too_long"
	ReasonFormat    Reason = "format"
	ReasonPredicate Reason = "predicate"
)

// Check reports whether raw is red-flagged under cfg.
func Check(raw string, cfg FilterConfig) bool {
	return Inspect(raw, cfg) != ReasonNone
}

// Inspect applies the same policy as Check and returns the first rule that
// fired, or ReasonNone.
func Inspect(raw string, cfg FilterConfig) Reason {
	if cfg.MaxLength > 0 && WordCount(raw) > cfg.MaxLength {
		return ReasonTooLong
	}
	if cfg.Validator != nil && !cfg.Validator(raw) {
		return ReasonFormat
	}
	for _, p := range cfg.Predicates {
		if p != nil && p(raw) {
			return ReasonPredicate
		}
	}
	return ReasonNone
}

// WordCount counts whitespace-separated words.
func WordCount(raw string) int {
	return len(strings.Fields(raw))
}

// ContainsAny returns a predicate that flags responses containing any of the
// indicators, compared case-insensitively. Empty indicators are ignored.
func ContainsAny(indicators ...string) Predicate {
	lowered := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		if ind = strings.TrimSpace(ind); ind != "" {
			lowered = append(lowered, strings.ToLower(ind))
		}
	}
	return func(raw string) bool {
		if len(lowered) == 0 {
			return false
		}
		text := strings.ToLower(raw)
		for _, ind := range lowered {
			if strings.Contains(text, ind) {
				return true
			}
		}
		return false
	}
}
