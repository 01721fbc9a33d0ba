package engine

import (
	"errors"
	"fmt"
)

// Seat identifies one of the two playing positions in a session
type Seat int

const (
	First Seat = iota
	Second
)

// Result reasons reported by IsTerminal and by sessions ending early
const (
	ReasonCheckmate            = "checkmate"
	ReasonStalemate            = "stalemate"
	ReasonInsufficientMaterial = "insufficient_material"
	ReasonFivefoldRepetition   = "fivefold_repetition"
	ReasonSeventyFiveMoveRule  = "seventy_five_move_rule"
	ReasonDraw                 = "draw"
	ReasonForfeit              = "forfeit"
)

var (
	ErrIllegalMove  = errors.New("illegal move")
	ErrInvalidMove  = errors.New("malformed move")
	ErrInvalidState = errors.New("invalid serialized state")
)

// String returns the wire name of the seat
func (s Seat) String() string {
	switch s {
	case First:
		return "first"
	case Second:
		return "second"
	default:
		return fmt.Sprintf("seat(%d)", int(s))
	}
}

// Opponent returns the other seat
func (s Seat) Opponent() Seat {
	if s == First {
		return Second
	}
	return First
}

// Color returns the piece color played from this seat
func (s Seat) Color() string {
	if s == First {
		return "white"
	}
	return "black"
}

// Label returns the human-facing player name for this seat
func (s Seat) Label() string {
	if s == First {
		return "Player 1"
	}
	return "Player 2"
}

// Move is a candidate move expressed as origin and destination squares
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// Validate checks the shape of a move without consulting any position
func (m Move) Validate() error {
	if !validSquare(m.From) {
		return fmt.Errorf("%w: bad origin square %q", ErrInvalidMove, m.From)
	}
	if !validSquare(m.To) {
		return fmt.Errorf("%w: bad destination square %q", ErrInvalidMove, m.To)
	}
	if m.From == m.To {
		return fmt.Errorf("%w: origin equals destination", ErrInvalidMove)
	}
	switch m.Promotion {
	case "", "q", "r", "b", "n":
	default:
		return fmt.Errorf("%w: bad promotion piece %q", ErrInvalidMove, m.Promotion)
	}
	return nil
}

// String returns the move in UCI long algebraic form, e.g. e7e8q
func (m Move) String() string {
	return m.From + m.To + m.Promotion
}

// Result describes how a finished game ended. Winner is nil for draws.
type Result struct {
	Winner *Seat  `json:"winner,omitempty"`
	Draw   bool   `json:"draw"`
	Reason string `json:"reason"`
}

// WinFor builds a decisive result in favour of seat
func WinFor(seat Seat, reason string) *Result {
	return &Result{Winner: &seat, Reason: reason}
}

// DrawBy builds a drawn result
func DrawBy(reason string) *Result {
	return &Result{Draw: true, Reason: reason}
}

// String renders the result in PGN score notation
func (r *Result) String() string {
	if r == nil {
		return "*"
	}
	if r.Draw || r.Winner == nil {
		return "1/2-1/2"
	}
	if *r.Winner == First {
		return "1-0"
	}
	return "0-1"
}

func validSquare(sq string) bool {
	return len(sq) == 2 && sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}

// MarshalText encodes the seat by name so results read as "first"/"second"
func (s Seat) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a seat name
func (s *Seat) UnmarshalText(text []byte) error {
	switch string(text) {
	case "first":
		*s = First
	case "second":
		*s = Second
	default:
		return fmt.Errorf("unknown seat %q", string(text))
	}
	return nil
}
