package hanoi

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/maker/internal/voting"
)

// Simulator is an offline generator with a known per-sample success rate.
// With probability P it answers the optimal move for the current step.
// Otherwise it answers a wrong move or, with probability RambleRate of the
// failures, a long unformatted response the red-flag filter discards.
type Simulator struct {
	P          float64
	RambleRate float64

	moves []Move

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator returns a simulator for disks disks seeded with seed.
func NewSimulator(disks int, p float64, seed uint64) (*Simulator, error) {
	if disks < 1 || disks > MaxDisks {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDisks, disks)
	}
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("hanoi: simulator success rate must be in [0, 1], got %v", p)
	}
	return &Simulator{
		P:          p,
		RambleRate: 0.25,
		moves:      OptimalMoves(disks),
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Generate implements voting.Generator. It is safe for concurrent use.
func (s *Simulator) Generate(ctx context.Context, state State) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if state.Step < 0 || state.Step >= len(s.moves) {
		return "", fmt.Errorf("hanoi: no move for step %d", state.Step)
	}
	correct := s.moves[state.Step]

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() < s.P {
		return s.encode(correct), nil
	}
	if s.rng.Float64() < s.RambleRate {
		return ramble(correct), nil
	}
	return s.encode(s.wrongMove(state.Disks, correct)), nil
}

// encode alternates key order so equal moves arrive as different text.
func (s *Simulator) encode(m Move) string {
	if s.rng.IntN(2) == 0 {
		return EncodeMove(m)
	}
	return fmt.Sprintf(`{"to": %d, "from": %d, "disk": %d}`, m.To, m.From, m.Disk)
}

func (s *Simulator) wrongMove(disks int, correct Move) Move {
	for {
		from := s.rng.IntN(NumPegs)
		to := (from + 1 + s.rng.IntN(NumPegs-1)) % NumPegs
		m := Move{Disk: 1 + s.rng.IntN(disks), From: from, To: to}
		if m != correct {
			return m
		}
	}
}

func ramble(m Move) string {
	return "Let me think about this carefully. " +
		strings.Repeat("Considering the constraints of the puzzle and the position of every disk, ", 80) +
		fmt.Sprintf("I believe the answer might be disk %d.", m.Disk)
}

var _ voting.Generator[State] = (*Simulator)(nil)
