package service

import (
	"time"

	"github.com/prajjwaltripathi07/chess/game/engine"
	"github.com/prajjwaltripathi07/chess/game/session"
)

// SessionInfo summarises a live session
type SessionInfo struct {
	ID        string            `json:"id"`
	Phase     session.Phase     `json:"phase"`
	Seats     session.SeatsInfo `json:"seats"`
	Observers int               `json:"observers"`
	Ply       int               `json:"ply"`
	Result    *engine.Result    `json:"result,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	StartedAt time.Time         `json:"started_at,omitzero"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// GameState is the board of a live session
type GameState struct {
	SessionID  string         `json:"session_id"`
	Phase      session.Phase  `json:"phase"`
	Board      string         `json:"board"`
	SideToMove engine.Seat    `json:"side_to_move"`
	Moves      []string       `json:"moves"`
	Result     *engine.Result `json:"result,omitempty"`
}

// Stats describes the server as a whole
type Stats struct {
	Sessions         int                      `json:"sessions"`
	Connections      int                      `json:"connections"`
	ObserversEnabled bool                     `json:"observers_enabled"`
	DisconnectPolicy session.DisconnectPolicy `json:"disconnect_policy"`
	ArchiveEnabled   bool                     `json:"archive_enabled"`
}

func sessionInfo(snap session.Snapshot) *SessionInfo {
	return &SessionInfo{
		ID:        snap.ID,
		Phase:     snap.Phase,
		Seats:     snap.Seats,
		Observers: snap.Observers,
		Ply:       len(snap.Moves),
		Result:    snap.Result,
		CreatedAt: snap.CreatedAt,
		StartedAt: snap.StartedAt,
		UpdatedAt: snap.UpdatedAt,
	}
}

func gameState(snap session.Snapshot) *GameState {
	return &GameState{
		SessionID:  snap.ID,
		Phase:      snap.Phase,
		Board:      snap.Board,
		SideToMove: snap.SideToMove,
		Moves:      snap.Moves,
		Result:     snap.Result,
	}
}
