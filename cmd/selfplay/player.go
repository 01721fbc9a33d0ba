package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"
	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/prajjwaltripathi07/chess/game/engine"
	"github.com/prajjwaltripathi07/chess/game/service"
	"github.com/prajjwaltripathi07/chess/game/session"
)

var errRejected = errors.New("server rejected a move")

// envelope is an outbound server frame with its payload left raw
type envelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data"`
}

// Report is what one player saw of its game
type Report struct {
	SessionID string
	Seat      engine.Seat
	Score     string
	Reason    string
	Plies     int
	Capped    bool
}

// Player plays random legal moves over one WebSocket connection
type Player struct {
	conn     *websocket.Conn
	rng      *rand.Rand
	maxPlies int
	logger   *zap.Logger

	seat    engine.Seat
	seated  bool
	session string
	plies   int
}

// Dial connects a new player to the relay at url and waits until it is
// seated, so players dialled one after another are paired in that order
func Dial(ctx context.Context, url string, rng *rand.Rand, maxPlies int, logger *zap.Logger) (*Player, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	p := &Player{conn: conn, rng: rng, maxPlies: maxPlies, logger: logger}

	var frame envelope
	if err := conn.ReadJSON(&frame); err != nil {
		conn.Close()
		return nil, fmt.Errorf("waiting for seat: %w", err)
	}
	if frame.Type != service.MsgRole {
		conn.Close()
		return nil, fmt.Errorf("expected %s frame, got %s", service.MsgRole, frame.Type)
	}
	if _, err := p.handle(frame); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// Close drops the connection
func (p *Player) Close() error {
	return p.conn.Close()
}

// Play reads server frames and answers with moves until the game ends,
// the ply cap is reached or ctx is done
func (p *Player) Play(ctx context.Context) (*Report, error) {
	stop := context.AfterFunc(ctx, func() {
		p.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		var frame envelope
		if err := p.conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read: %w", err)
		}

		report, err := p.handle(frame)
		if err != nil || report != nil {
			return report, err
		}
	}
}

func (p *Player) handle(frame envelope) (*Report, error) {
	switch frame.Type {
	case service.MsgRole:
		var role service.RolePayload
		if err := json.Unmarshal(frame.Data, &role); err != nil {
			return nil, err
		}
		if err := p.seat.UnmarshalText([]byte(role.Seat)); err != nil {
			return nil, err
		}
		p.seated = true
		p.session = frame.SessionID
		p.logger.Debug("seated", zap.String("session", p.session), zap.Stringer("seat", p.seat))

	case service.MsgState, service.MsgGameStart, service.MsgRestarted:
		var snap session.Snapshot
		if err := json.Unmarshal(frame.Data, &snap); err != nil {
			return nil, err
		}
		p.plies = len(snap.Moves)
		if snap.Phase == session.PhaseActive {
			return nil, p.maybeMove(snap.Board, snap.SideToMove)
		}

	case service.MsgMoveApplied:
		var outcome session.MoveOutcome
		if err := json.Unmarshal(frame.Data, &outcome); err != nil {
			return nil, err
		}
		p.plies = outcome.Ply
		if outcome.Result != nil {
			// game_over follows
			return nil, nil
		}
		if p.maxPlies > 0 && p.plies >= p.maxPlies {
			return p.report("*", "", true), nil
		}
		return nil, p.maybeMove(outcome.Board, outcome.SideToMove)

	case service.MsgGameOver:
		var over service.GameOverPayload
		if err := json.Unmarshal(frame.Data, &over); err != nil {
			return nil, err
		}
		reason := ""
		if over.Result != nil {
			reason = over.Result.Reason
		}
		return p.report(over.Score, reason, false), nil

	case service.MsgOpponentLeft:
		return p.report("*", engine.ReasonForfeit, false), nil

	case service.MsgMoveRejected, service.MsgError:
		return nil, fmt.Errorf("%w: %s", errRejected, frame.Data)
	}

	return nil, nil
}

func (p *Player) report(score, reason string, capped bool) *Report {
	return &Report{
		SessionID: p.session,
		Seat:      p.seat,
		Score:     score,
		Reason:    reason,
		Plies:     p.plies,
		Capped:    capped,
	}
}

// maybeMove sends a random legal move if it is this player's turn
func (p *Player) maybeMove(board string, toMove engine.Seat) error {
	if !p.seated || toMove != p.seat {
		return nil
	}

	move, err := randomMove(board, p.rng)
	if err != nil {
		return err
	}

	p.logger.Debug("moving", zap.String("session", p.session), zap.Stringer("move", move))
	return p.conn.WriteJSON(map[string]interface{}{
		"type": service.EventMove,
		"move": move,
	})
}

// randomMove picks a legal move in the FEN position
func randomMove(fen string, rng *rand.Rand) (engine.Move, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return engine.Move{}, fmt.Errorf("bad board from server: %w", err)
	}
	game := chess.NewGame(opt)

	moves := game.ValidMoves()
	if len(moves) == 0 {
		return engine.Move{}, fmt.Errorf("no legal moves in %s", fen)
	}

	uci := chess.UCINotation{}.Encode(game.Position(), moves[rng.Intn(len(moves))])
	return engine.Move{From: uci[0:2], To: uci[2:4], Promotion: uci[4:]}, nil
}
