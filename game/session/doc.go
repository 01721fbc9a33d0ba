// Package session provides matchmaking and per-game state for chess sessions.
//
// The session package implements:
//   - Seat assignment for anonymous connections
//   - The waiting, active and terminated lifecycle of a game
//   - Turn enforcement on top of the rules engine
//   - Chat attribution and validation
//   - Disconnect handling under a configurable policy
//
// Core Types:
//
// Registry owns every live Session. Assign places a connection in the
// oldest session that still has an empty seat, first seat before second,
// and creates a new session named room-N only when all existing sessions
// are full. A session never holds more than two seated connections.
// Release empties a seat and removes the session once both seats are empty.
//
// Session owns one rules-engine state and the two seats. Moves are only
// accepted while the session is active, from the connection seated on the
// side to move.
//
// Observers:
//
// When enabled with WithObservers, a connection may attach to a named
// session without a seat. Observers receive session broadcasts and may
// chat, but cannot move or restart.
//
// Concurrency:
//
// The Registry guards its map with one lock and each Session guards its
// own state. Registry methods may lock a Session while holding the
// registry lock; Session methods never take the registry lock.
//
// Usage:
//
//	registry := session.NewRegistry(engine.NewChess())
//
//	placement, sess := registry.Assign(connID)
//	outcome, err := sess.SubmitMove(connID, engine.Move{From: "e2", To: "e4"})
//	if errors.Is(err, session.ErrNotYourTurn) {
//		// tell the sender only
//	}
//
//	left := sess.Leave(connID, session.PolicyForfeit)
//	removed := registry.Release(placement.SessionID, left.Seat)
package session
