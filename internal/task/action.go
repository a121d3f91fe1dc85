package task

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyResponse is returned by ParseAction for blank responses.
var ErrEmptyResponse = errors.New("empty response")

// Action is a decided micro-step: a decoded JSON value, or the trimmed
// response text when the response carries no JSON.
type Action struct {
	value  any
	isJSON bool
	key    string
}

// JSONAction wraps a decoded JSON value.
func JSONAction(v any) Action {
	return Action{value: v, isJSON: true, key: canonicalKey(v)}
}

// TextAction wraps free text.
func TextAction(s string) Action {
	s = strings.TrimSpace(s)
	return Action{value: s, key: canonicalKey(s)}
}

// canonicalKey encodes v as JSON. encoding/json sorts map keys, so equal
// values always produce the same key.
func canonicalKey(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// VoteKey identifies the action for voting.
func (a Action) VoteKey() string { return a.key }

// Value returns the decoded JSON value or the text.
func (a Action) Value() any { return a.value }

// IsJSON reports whether the action came from a JSON payload.
func (a Action) IsJSON() bool { return a.isJSON }

// String returns the canonical form.
func (a Action) String() string { return a.key }

// MarshalJSON writes the underlying value.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.value)
}

// UnmarshalJSON restores an action. Strings decode as text actions.
func (a *Action) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if s, ok := v.(string); ok {
		*a = TextAction(s)
		return nil
	}
	*a = JSONAction(v)
	return nil
}

var (
	fencedJSON   = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?\\s*```")
	embeddedJSON = regexp.MustCompile(`\{[^{}]*\}`)
)

// ParseAction extracts an action from a response. It tries a fenced code
// block, then the whole text, then the first flat {...} object, and finally
// falls back to the text itself.
func ParseAction(raw string) (Action, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Action{}, ErrEmptyResponse
	}
	if v, ok := extractJSON(text); ok {
		return JSONAction(v), nil
	}
	return TextAction(text), nil
}

// extractJSON applies the JSON extraction rules of ParseAction.
func extractJSON(text string) (any, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if v, ok := decodeJSON(strings.TrimSpace(m[1])); ok {
			return v, true
		}
	}
	if v, ok := decodeJSON(text); ok {
		return v, true
	}
	if m := embeddedJSON.FindString(text); m != "" {
		if v, ok := decodeJSON(m); ok {
			return v, true
		}
	}
	return nil, false
}

func decodeJSON(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}
