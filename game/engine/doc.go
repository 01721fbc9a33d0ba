// Package engine provides the chess rules used by every session.
//
// The engine package implements:
//   - Legal move validation, including castling, en passant and promotion
//   - Check, checkmate and automatic draw detection
//   - Side-to-move reporting in terms of session seats
//   - FEN serialization of positions
//
// Core Types:
//
// The Engine interface is the contract sessions depend on. It is a pure
// state machine: ApplyMove never mutates the state it is given and returns
// a new State on success. Chess implements Engine on top of
// github.com/notnil/chess.
//
// Seats:
//
// The First seat plays white and always moves first; the Second seat plays
// black.
//
// Usage:
//
//	eng := engine.NewChess()
//	state := eng.InitialState()
//
//	next, err := eng.ApplyMove(state, engine.Move{From: "e2", To: "e4"})
//	if errors.Is(err, engine.ErrIllegalMove) {
//		// state is unchanged
//	}
//
//	if result, over := eng.IsTerminal(next); over {
//		fmt.Println(result.Reason)
//	}
package engine
