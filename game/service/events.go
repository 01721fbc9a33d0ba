package service

import (
	"encoding/json"
	"fmt"

	"github.com/prajjwaltripathi07/chess/game/engine"
	"github.com/prajjwaltripathi07/chess/game/session"
)

// Inbound event types
const (
	EventMove    = "move"
	EventChat    = "chat"
	EventRestart = "restart"
)

// Outbound message types
const (
	MsgRole         = "role"
	MsgState        = "state"
	MsgGameStart    = "game_start"
	MsgMoveApplied  = "move_applied"
	MsgMoveRejected = "move_rejected"
	MsgGameOver     = "game_over"
	MsgChat         = "chat"
	MsgRestarted    = "restarted"
	MsgOpponentLeft = "opponent_left"
	MsgSessionClose = "session_closed"
	MsgError        = "error"
)

// Event is a validated inbound client event. The concrete types are
// MoveEvent, ChatEvent and RestartEvent.
type Event interface {
	Kind() string
}

// MoveEvent carries a candidate move
type MoveEvent struct {
	Move engine.Move
}

// ChatEvent carries raw chat text
type ChatEvent struct {
	Text string
}

// RestartEvent asks for the board to be reset
type RestartEvent struct{}

func (MoveEvent) Kind() string    { return EventMove }
func (ChatEvent) Kind() string    { return EventChat }
func (RestartEvent) Kind() string { return EventRestart }

type inboundFrame struct {
	Type string       `json:"type"`
	Move *engine.Move `json:"move,omitempty"`
	Text *string      `json:"text,omitempty"`
}

// DecodeEvent parses and shape-checks a client frame. Every failure wraps
// session.ErrMalformedEvent.
func DecodeEvent(data []byte) (Event, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrMalformedEvent, err)
	}

	switch frame.Type {
	case EventMove:
		if frame.Move == nil {
			return nil, fmt.Errorf("%w: move event without move", session.ErrMalformedEvent)
		}
		if err := frame.Move.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrMalformedEvent, err)
		}
		return MoveEvent{Move: *frame.Move}, nil

	case EventChat:
		if frame.Text == nil {
			return nil, fmt.Errorf("%w: chat event without text", session.ErrMalformedEvent)
		}
		return ChatEvent{Text: *frame.Text}, nil

	case EventRestart:
		return RestartEvent{}, nil

	case "":
		return nil, fmt.Errorf("%w: missing event type", session.ErrMalformedEvent)

	default:
		return nil, fmt.Errorf("%w: unknown event type %q", session.ErrMalformedEvent, frame.Type)
	}
}

// Message is an outbound frame
type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// RolePayload tells a connection where it sits
type RolePayload struct {
	ConnectionID string `json:"connection_id"`
	Seat         string `json:"seat"`
	Role         string `json:"role"`
	Color        string `json:"color,omitempty"`
}

// MoveRejectedPayload explains a rejected move to its sender
type MoveRejectedPayload struct {
	Move    engine.Move `json:"move"`
	Reason  string      `json:"reason"`
	Message string      `json:"message"`
}

// GameOverPayload announces a finished game
type GameOverPayload struct {
	Score  string         `json:"score"`
	Result *engine.Result `json:"result"`
}

// OpponentLeftPayload tells the remaining members a seat-holder left
type OpponentLeftPayload struct {
	Seat       engine.Seat    `json:"seat"`
	Forfeit    *engine.Result `json:"forfeit,omitempty"`
	Terminated bool           `json:"terminated"`
}

// ErrorPayload reports a rejected or ignored event to its sender
type ErrorPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func roleMessage(connID string, p session.Placement) *Message {
	payload := RolePayload{ConnectionID: connID, Role: p.Label()}
	if p.Observer {
		payload.Seat = "observer"
	} else {
		payload.Seat = p.Seat.String()
		payload.Color = p.Seat.Color()
	}
	return &Message{Type: MsgRole, SessionID: p.SessionID, Data: payload}
}

func stateMessage(snap session.Snapshot) *Message {
	return &Message{Type: MsgState, SessionID: snap.ID, Data: snap}
}

func errorMessage(sessionID string, err error) *Message {
	return &Message{
		Type:      MsgError,
		SessionID: sessionID,
		Data:      ErrorPayload{Reason: session.RejectReason(err), Message: err.Error()},
	}
}

func gameOverMessage(sessionID string, result *engine.Result) *Message {
	return &Message{
		Type:      MsgGameOver,
		SessionID: sessionID,
		Data:      GameOverPayload{Score: result.String(), Result: result},
	}
}
