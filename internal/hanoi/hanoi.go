// Package hanoi is the Towers of Hanoi benchmark: a task whose optimal
// solution for n disks is exactly 2^n-1 moves, so every step has a single
// correct answer and a run either reproduces the optimal sequence or fails.
package hanoi

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	// NumPegs is fixed by the puzzle.
	NumPegs = 3
	// GoalPeg receives the tower.
	GoalPeg = 2
	// MaxDisks bounds the step count to about a million.
	MaxDisks = 20
)

var (
	// ErrInvalidDisks is returned for disk counts outside [1, MaxDisks].
	ErrInvalidDisks = errors.New("hanoi: invalid number of disks")

	// ErrIllegalMove is returned by Apply for moves that break the rules.
	ErrIllegalMove = errors.New("hanoi: illegal move")
)

// Move moves the top disk of From onto To.
type Move struct {
	Disk int `json:"disk"`
	From int `json:"from"`
	To   int `json:"to"`
}

// VoteKey implements voting.Action.
func (m Move) VoteKey() string {
	return fmt.Sprintf("%d:%d->%d", m.Disk, m.From, m.To)
}

func (m Move) String() string {
	return fmt.Sprintf("disk %d from peg %d to peg %d", m.Disk, m.From, m.To)
}

// State holds the pegs, bottom disk first, and the number of moves made.
type State struct {
	Pegs  [NumPegs][]int `json:"pegs"`
	Disks int            `json:"num_disks"`
	Step  int            `json:"step"`
}

// NewState stacks all disks on peg 0.
func NewState(disks int) (State, error) {
	if disks < 1 || disks > MaxDisks {
		return State{}, fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidDisks, disks, MaxDisks)
	}
	s := State{Disks: disks}
	s.Pegs[0] = make([]int, disks)
	for i := range s.Pegs[0] {
		s.Pegs[0][i] = disks - i
	}
	for i := 1; i < NumPegs; i++ {
		s.Pegs[i] = []int{}
	}
	return s, nil
}

// Equal implements voting.State.
func (s State) Equal(other State) bool {
	if s.Disks != other.Disks || s.Step != other.Step {
		return false
	}
	for i := range s.Pegs {
		if !slices.Equal(s.Pegs[i], other.Pegs[i]) {
			return false
		}
	}
	return true
}

// Top returns the smallest disk on peg.
func (s State) Top(peg int) (int, bool) {
	if peg < 0 || peg >= NumPegs || len(s.Pegs[peg]) == 0 {
		return 0, false
	}
	p := s.Pegs[peg]
	return p[len(p)-1], true
}

// Solved reports whether every disk sits on GoalPeg.
func (s State) Solved() bool {
	return len(s.Pegs[GoalPeg]) == s.Disks
}

// Apply returns the state after m. The receiver is never modified.
func (s State) Apply(m Move) (State, error) {
	if m.From < 0 || m.From >= NumPegs || m.To < 0 || m.To >= NumPegs {
		return State{}, fmt.Errorf("%w: peg out of range in %s", ErrIllegalMove, m)
	}
	if m.From == m.To {
		return State{}, fmt.Errorf("%w: source and destination are both peg %d", ErrIllegalMove, m.From)
	}
	top, ok := s.Top(m.From)
	if !ok {
		return State{}, fmt.Errorf("%w: peg %d is empty", ErrIllegalMove, m.From)
	}
	if top != m.Disk {
		return State{}, fmt.Errorf("%w: disk %d is not on top of peg %d", ErrIllegalMove, m.Disk, m.From)
	}
	if dst, ok := s.Top(m.To); ok && dst < m.Disk {
		return State{}, fmt.Errorf("%w: disk %d cannot go on disk %d", ErrIllegalMove, m.Disk, dst)
	}

	next := State{Disks: s.Disks, Step: s.Step + 1}
	for i := range s.Pegs {
		next.Pegs[i] = slices.Clone(s.Pegs[i])
	}
	next.Pegs[m.From] = next.Pegs[m.From][:len(next.Pegs[m.From])-1]
	next.Pegs[m.To] = append(next.Pegs[m.To], m.Disk)
	return next, nil
}

func (s State) String() string {
	var b strings.Builder
	for i, p := range s.Pegs {
		if i > 0 {
			b.WriteString(" | ")
		}
		fmt.Fprintf(&b, "%d:%s", i, formatPeg(p))
	}
	return b.String()
}

func formatPeg(p []int) string {
	if len(p) == 0 {
		return "empty"
	}
	parts := make([]string, len(p))
	for i, d := range p {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// NumSteps returns 2^disks - 1.
func NumSteps(disks int) int {
	return 1<<disks - 1
}

// OptimalMoves returns the unique shortest solution moving the tower from
// peg 0 to GoalPeg.
func OptimalMoves(disks int) []Move {
	if disks < 1 {
		return nil
	}
	moves := make([]Move, 0, NumSteps(disks))
	var walk func(n, from, to, via int)
	walk = func(n, from, to, via int) {
		if n == 0 {
			return
		}
		walk(n-1, from, via, to)
		moves = append(moves, Move{Disk: n, From: from, To: to})
		walk(n-1, via, to, from)
	}
	walk(disks, 0, GoalPeg, 1)
	return moves
}

// Verify replays moves from the initial state and checks they solve the
// puzzle.
func Verify(disks int, moves []Move) error {
	s, err := NewState(disks)
	if err != nil {
		return err
	}
	for i, m := range moves {
		if s, err = s.Apply(m); err != nil {
			return fmt.Errorf("move %d: %w", i, err)
		}
	}
	if !s.Solved() {
		return fmt.Errorf("hanoi: not solved after %d moves: %s", len(moves), s)
	}
	return nil
}
