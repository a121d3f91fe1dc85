package voting

// Tally counts accepted votes for one step.
//
// A Tally is not safe for concurrent use. The engine owns it for the duration
// of a step and discards it once the step is decided.
type Tally[S State[S], A Action] struct {
	entries map[string]*tallyEntry[S, A]
	order   []string
	total   int
}

type tallyEntry[S State[S], A Action] struct {
	action A
	next   S
	count  int
}

// Standing is the leader of a tally and its margin.
type Standing[S State[S], A Action] struct {
	Action   A
	Next     S
	Key      string
	Votes    int
	RunnerUp int
	Lead     int
}

// NewTally returns an empty tally.
func NewTally[S State[S], A Action]() *Tally[S, A] {
	return &Tally[S, A]{entries: make(map[string]*tallyEntry[S, A])}
}

// Add records one vote for action with the given next state.
//
// The first vote for an action fixes its next state. A later vote for the same
// action with a different next state returns a *ConflictError and leaves the
// tally unchanged.
func (t *Tally[S, A]) Add(action A, next S) error {
	key := action.VoteKey()
	if e, ok := t.entries[key]; ok {
		if !e.next.Equal(next) {
			return &ConflictError{Key: key}
		}
		e.count++
		t.total++
		return nil
	}
	t.entries[key] = &tallyEntry[S, A]{action: action, next: next, count: 1}
	t.order = append(t.order, key)
	t.total++
	return nil
}

// Leader returns the action with the most votes, the runner-up count and the
// lead. Ties at the top resolve to the action seen first, with a lead of zero.
// ok is false for an empty tally.
func (t *Tally[S, A]) Leader() (Standing[S, A], bool) {
	var (
		best     *tallyEntry[S, A]
		bestKey  string
		runnerUp int
	)
	for _, key := range t.order {
		e := t.entries[key]
		switch {
		case best == nil:
			best, bestKey = e, key
		case e.count > best.count:
			runnerUp = best.count
			best, bestKey = e, key
		case e.count > runnerUp:
			runnerUp = e.count
		}
	}
	if best == nil {
		return Standing[S, A]{}, false
	}
	return Standing[S, A]{
		Action:   best.action,
		Next:     best.next,
		Key:      bestKey,
		Votes:    best.count,
		RunnerUp: runnerUp,
		Lead:     best.count - runnerUp,
	}, true
}

// Decided reports whether the leader is at least k votes ahead.
func (t *Tally[S, A]) Decided(k int) bool {
	s, ok := t.Leader()
	return ok && s.Lead >= k
}

// Count returns the votes for key.
func (t *Tally[S, A]) Count(key string) int {
	if e, ok := t.entries[key]; ok {
		return e.count
	}
	return 0
}

// Total returns the number of accepted votes.
func (t *Tally[S, A]) Total() int { return t.total }

// Len returns the number of distinct actions.
func (t *Tally[S, A]) Len() int { return len(t.order) }

// Snapshot copies the counts keyed by vote key.
func (t *Tally[S, A]) Snapshot() map[string]int {
	out := make(map[string]int, len(t.entries))
	for k, e := range t.entries {
		out[k] = e.count
	}
	return out
}
