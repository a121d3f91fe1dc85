package task

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/maker/internal/voting"
)

// Format specs understood by ParseFormatSpec.
const (
	FormatText        = "text"
	FormatJSON        = "json"
	formatRegexPrefix = "regex:"
)

// ParseFormatSpec turns a format spec into a validator. "" and "text"
// accept everything and yield nil. "json" requires an extractable JSON
// payload. "regex:<expr>" requires a match anywhere in the response.
func ParseFormatSpec(spec string) (voting.FormatValidator, error) {
	switch {
	case spec == "" || spec == FormatText:
		return nil, nil
	case spec == FormatJSON:
		return func(raw string) bool {
			_, ok := extractJSON(strings.TrimSpace(raw))
			return ok
		}, nil
	case strings.HasPrefix(spec, formatRegexPrefix):
		re, err := regexp.Compile(strings.TrimPrefix(spec, formatRegexPrefix))
		if err != nil {
			return nil, fmt.Errorf("invalid regex: %w", err)
		}
		return re.MatchString, nil
	default:
		return nil, fmt.Errorf("unknown format spec %q (want text, json or regex:<expr>)", spec)
	}
}

// Filter builds the red-flag policy for a step type from the task's run
// configuration.
func (c *Config) Filter(st StepType) (voting.FilterConfig, error) {
	return c.RunConfig().Filter(st)
}

// Filter builds the red-flag policy for a step type. The step's format spec
// overrides rc.FormatSpec and its indicators become a predicate.
func (rc RunConfig) Filter(st StepType) (voting.FilterConfig, error) {
	spec := st.FormatSpec
	if spec == "" {
		spec = rc.FormatSpec
	}
	validator, err := ParseFormatSpec(spec)
	if err != nil {
		return voting.FilterConfig{}, err
	}
	filter := voting.FilterConfig{
		MaxLength: rc.MaxResponseLength,
		Validator: validator,
	}
	if len(st.RedFlagIndicators) > 0 {
		filter.Predicates = []voting.Predicate{voting.ContainsAny(st.RedFlagIndicators...)}
	}
	return filter, nil
}
