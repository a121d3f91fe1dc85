package hanoi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/maker/internal/voting"
)

// MaxResponseWords is the red-flag length limit for move responses.
const MaxResponseWords = 750

var errMissingField = errors.New("missing field")

// decodeMove reads a response that must be exactly one JSON object with
// integer disk, from and to fields.
func decodeMove(raw string) (Move, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Move{}, err
	}
	if dec.More() {
		return Move{}, errors.New("trailing data after move")
	}

	var vals [3]int
	for i, name := range []string{"disk", "from", "to"} {
		v, ok := fields[name]
		if !ok {
			return Move{}, fmt.Errorf("%w %q", errMissingField, name)
		}
		n, ok := v.(json.Number)
		if !ok {
			return Move{}, fmt.Errorf("field %q is not a number", name)
		}
		i64, err := n.Int64()
		if err != nil {
			return Move{}, fmt.Errorf("field %q is not an integer", name)
		}
		vals[i] = int(i64)
	}
	return Move{Disk: vals[0], From: vals[1], To: vals[2]}, nil
}

// Validator accepts responses that are a single move object with the disk
// in [1, disks], both pegs in range and distinct pegs.
func Validator(disks int) voting.FormatValidator {
	return func(raw string) bool {
		m, err := decodeMove(raw)
		if err != nil {
			return false
		}
		return m.Disk >= 1 && m.Disk <= disks &&
			m.From >= 0 && m.From < NumPegs &&
			m.To >= 0 && m.To < NumPegs &&
			m.From != m.To
	}
}

// Filter is the red-flag policy for a puzzle with the given disk count.
func Filter(disks int) voting.FilterConfig {
	return voting.FilterConfig{
		MaxLength: MaxResponseWords,
		Validator: Validator(disks),
	}
}

// Parser decodes move responses. The next state is the current state with
// the move applied, so an illegal move fails to parse.
type Parser struct{}

// ParseAction implements voting.Parser.
func (Parser) ParseAction(raw string) (Move, error) {
	m, err := decodeMove(raw)
	if err != nil {
		return Move{}, fmt.Errorf("%w: %v", voting.ErrParse, err)
	}
	return m, nil
}

// ParseNextState implements voting.Parser.
func (p Parser) ParseNextState(raw string, current State) (State, error) {
	m, err := p.ParseAction(raw)
	if err != nil {
		return State{}, err
	}
	next, err := current.Apply(m)
	if err != nil {
		return State{}, errors.Join(voting.ErrParse, err)
	}
	return next, nil
}

// EncodeMove renders m the way a well-behaved model answers.
func EncodeMove(m Move) string {
	b, _ := json.Marshal(m)
	return string(b)
}

var _ voting.Parser[State, Move] = Parser{}
