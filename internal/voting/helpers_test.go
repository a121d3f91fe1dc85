package voting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// letter is a test action identified by its string value.
type letter string

func (l letter) VoteKey() string { return string(l) }

// node is a test state.
type node struct {
	label string
}

func (n node) Equal(other node) bool { return n.label == other.label }

// letterParser accepts "X" or "X|next". The next state defaults to
// "<current>+X" so identical actions always agree unless a suffix says
// otherwise.
type letterParser struct{}

func (letterParser) ParseAction(raw string) (letter, error) {
	head, _, _ := strings.Cut(strings.TrimSpace(raw), "|")
	if len(head) != 1 || head[0] < 'A' || head[0] > 'Z' {
		return "", fmt.Errorf("not a letter: %q", raw)
	}
	return letter(head), nil
}

func (letterParser) ParseNextState(raw string, current node) (node, error) {
	head, tail, found := strings.Cut(strings.TrimSpace(raw), "|")
	if found {
		return node{label: tail}, nil
	}
	return node{label: current.label + "+" + head}, nil
}

// scripted replays responses in order and counts calls. An entry of "!" is
// returned as a generator error.
type scripted struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func newScripted(responses ...string) *scripted {
	return &scripted{responses: responses}
}

func (s *scripted) Generate(ctx context.Context, _ node) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.calls >= len(s.responses) {
		return "", errors.New("script exhausted")
	}
	r := s.responses[s.calls]
	s.calls++
	if r == "!" {
		return "", errors.New("transient failure")
	}
	return r, nil
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
