package engine

import (
	"fmt"

	"github.com/notnil/chess"
)

// State is an engine-owned position. Callers treat it as opaque and only
// hand it back to the Engine that produced it.
type State any

// Engine is the rules contract a session plays through
type Engine interface {
	// InitialState returns the starting position
	InitialState() State

	// ApplyMove returns the position after move, or ErrIllegalMove.
	// The given state is never modified.
	ApplyMove(state State, move Move) (State, error)

	// SideToMove reports which seat must play next
	SideToMove(state State) Seat

	// IsTerminal reports whether the game is over and how it ended
	IsTerminal(state State) (*Result, bool)

	// Serialize and Deserialize convert positions to and from a string
	Serialize(state State) string
	Deserialize(s string) (State, error)
}

// Chess implements Engine with standard chess rules
type Chess struct{}

// NewChess creates a chess rules engine
func NewChess() *Chess {
	return &Chess{}
}

// InitialState returns the standard starting position
func (c *Chess) InitialState() State {
	return chess.NewGame()
}

// ApplyMove validates move against the position and plays it on a copy
func (c *Chess) ApplyMove(state State, move Move) (State, error) {
	game, err := asGame(state)
	if err != nil {
		return nil, err
	}
	if err := move.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	if game.Outcome() != chess.NoOutcome {
		return nil, fmt.Errorf("%w: game is already over", ErrIllegalMove)
	}

	decoded, err := chess.UCINotation{}.Decode(game.Position(), move.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIllegalMove, move, err)
	}

	next := game.Clone()
	if err := next.Move(decoded); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, move)
	}
	return next, nil
}

// SideToMove maps the color to move onto a seat
func (c *Chess) SideToMove(state State) Seat {
	game, err := asGame(state)
	if err != nil {
		return First
	}
	if game.Position().Turn() == chess.Black {
		return Second
	}
	return First
}

// IsTerminal reports checkmate and the draws the library detects on its own
func (c *Chess) IsTerminal(state State) (*Result, bool) {
	game, err := asGame(state)
	if err != nil {
		return nil, false
	}

	switch game.Outcome() {
	case chess.WhiteWon:
		return WinFor(First, methodReason(game.Method())), true
	case chess.BlackWon:
		return WinFor(Second, methodReason(game.Method())), true
	case chess.Draw:
		return DrawBy(methodReason(game.Method())), true
	default:
		return nil, false
	}
}

// Serialize returns the FEN of the position
func (c *Chess) Serialize(state State) string {
	game, err := asGame(state)
	if err != nil {
		return ""
	}
	return game.FEN()
}

// Deserialize parses a FEN string into a position
func (c *Chess) Deserialize(s string) (State, error) {
	fen, err := chess.FEN(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return chess.NewGame(fen), nil
}

func asGame(state State) (*chess.Game, error) {
	game, ok := state.(*chess.Game)
	if !ok || game == nil {
		return nil, fmt.Errorf("%w: %T is not a chess position", ErrInvalidState, state)
	}
	return game, nil
}

func methodReason(m chess.Method) string {
	switch m {
	case chess.Checkmate:
		return ReasonCheckmate
	case chess.Stalemate:
		return ReasonStalemate
	case chess.InsufficientMaterial:
		return ReasonInsufficientMaterial
	case chess.FivefoldRepetition:
		return ReasonFivefoldRepetition
	case chess.SeventyFiveMoveRule:
		return ReasonSeventyFiveMoveRule
	default:
		return ReasonDraw
	}
}
