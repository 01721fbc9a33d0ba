package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prajjwaltripathi07/chess/game/archive"
	"github.com/prajjwaltripathi07/chess/game/engine"
	"github.com/prajjwaltripathi07/chess/game/session"
)

// archiveTimeout bounds a single archive write
const archiveTimeout = 5 * time.Second

// Conn is a live client connection as seen by the gateway. Send must not
// block; transports queue or drop.
type Conn interface {
	ID() string
	Send(msg *Message)
}

type binding struct {
	conn      Conn
	placement session.Placement
}

// Gateway binds connections to sessions and translates client events into
// session operations. Every outbound message is scoped to the members of
// one session.
type Gateway struct {
	registry *session.Registry
	archive  archive.Archive
	policy   session.DisconnectPolicy
	maxChat  int
	logger   *zap.Logger

	mu    sync.Mutex
	conns map[string]*binding

	pending sync.WaitGroup
}

// GatewayOption configures a Gateway
type GatewayOption func(*Gateway)

// WithArchive records finished games in a
func WithArchive(a archive.Archive) GatewayOption {
	return func(g *Gateway) {
		g.archive = a
	}
}

// WithDisconnectPolicy sets what happens to a game when a player leaves
func WithDisconnectPolicy(p session.DisconnectPolicy) GatewayOption {
	return func(g *Gateway) {
		g.policy = p
	}
}

// WithMaxChatLength caps chat messages in characters. Zero means no limit.
func WithMaxChatLength(n int) GatewayOption {
	return func(g *Gateway) {
		g.maxChat = n
	}
}

// WithLogger sets the gateway logger
func WithLogger(l *zap.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = l
	}
}

// NewGateway creates a gateway over registry
func NewGateway(registry *session.Registry, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		registry: registry,
		policy:   session.PolicyForfeit,
		logger:   zap.NewNop(),
		conns:    make(map[string]*binding),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Connect seats conn and tells it where it sits. If the connection
// completes a pair, both players receive game_start.
func (g *Gateway) Connect(conn Conn) session.Placement {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.conns[conn.ID()]; ok {
		return b.placement
	}

	placement, s := g.registry.Assign(conn.ID())
	g.conns[conn.ID()] = &binding{conn: conn, placement: placement}

	snap := s.Snapshot()
	conn.Send(roleMessage(conn.ID(), placement))
	conn.Send(stateMessage(snap))

	g.logger.Info("connection seated",
		zap.String("conn", conn.ID()),
		zap.String("session", placement.SessionID),
		zap.Stringer("seat", placement.Seat),
		zap.String("phase", string(snap.Phase)))

	if snap.Phase == session.PhaseActive {
		g.broadcast(s, &Message{Type: MsgGameStart, SessionID: s.ID, Data: snap})
	}

	return placement
}

// Observe attaches conn to sessionID as a read-only observer
func (g *Gateway) Observe(conn Conn, sessionID string) (session.Placement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.conns[conn.ID()]; ok {
		return b.placement, nil
	}

	placement, s, err := g.registry.Observe(conn.ID(), sessionID)
	if err != nil {
		conn.Send(errorMessage(sessionID, err))
		g.logger.Debug("observe rejected",
			zap.String("conn", conn.ID()),
			zap.String("session", sessionID),
			zap.Error(err))
		return session.Placement{}, err
	}

	g.conns[conn.ID()] = &binding{conn: conn, placement: placement}
	conn.Send(roleMessage(conn.ID(), placement))
	conn.Send(stateMessage(s.Snapshot()))

	g.logger.Info("observer attached",
		zap.String("conn", conn.ID()),
		zap.String("session", sessionID))

	return placement, nil
}

// Message handles one raw frame from connID. Rejections go to the sender
// only; accepted events are broadcast to the session.
func (g *Gateway) Message(connID string, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.conns[connID]
	if !ok {
		g.logger.Debug("frame from unbound connection dropped", zap.String("conn", connID))
		return
	}

	event, err := DecodeEvent(data)
	if err != nil {
		g.logger.Debug("malformed event", zap.String("conn", connID), zap.Error(err))
		b.conn.Send(errorMessage(b.placement.SessionID, err))
		return
	}

	s, err := g.registry.Lookup(b.placement.SessionID)
	if err != nil {
		g.logger.Warn("event for missing session",
			zap.String("conn", connID),
			zap.String("session", b.placement.SessionID),
			zap.Error(err))
		b.conn.Send(errorMessage(b.placement.SessionID, err))
		return
	}

	switch ev := event.(type) {
	case MoveEvent:
		g.handleMove(b, s, ev.Move)
	case ChatEvent:
		g.handleChat(b, s, ev.Text)
	case RestartEvent:
		g.handleRestart(b, s)
	}
}

// Disconnect removes connID from its session. Calling it again for the
// same connection is a no-op.
func (g *Gateway) Disconnect(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.conns[connID]
	if !ok {
		return
	}
	delete(g.conns, connID)

	sessionID := b.placement.SessionID
	s, err := g.registry.Lookup(sessionID)
	if err != nil {
		return
	}

	left := s.Leave(connID, g.policy)
	if !left.Found {
		return
	}
	if left.Observer {
		g.logger.Info("observer detached", zap.String("conn", connID), zap.String("session", sessionID))
		return
	}

	g.logger.Info("player left",
		zap.String("conn", connID),
		zap.String("session", sessionID),
		zap.Stringer("seat", left.Seat),
		zap.String("policy", string(g.policy)),
		zap.Bool("terminated", left.Terminated))

	g.broadcast(s, &Message{
		Type:      MsgOpponentLeft,
		SessionID: sessionID,
		Data: OpponentLeftPayload{
			Seat:       left.Seat,
			Forfeit:    left.Forfeit,
			Terminated: left.Terminated,
		},
	})
	if left.Terminated {
		g.broadcast(s, gameOverMessage(sessionID, left.Forfeit))
		g.archiveGame(s, left.Forfeit)
	}

	if !g.registry.Release(sessionID, left.Seat) {
		g.broadcast(s, stateMessage(s.Snapshot()))
		return
	}

	// The session is gone; whoever is left is an observer
	for _, id := range s.Members() {
		if ob, ok := g.conns[id]; ok {
			ob.conn.Send(&Message{Type: MsgSessionClose, SessionID: sessionID})
			delete(g.conns, id)
		}
	}
	g.logger.Info("session removed", zap.String("session", sessionID))
}

// Shutdown unbinds every connection and frees every seat. Nobody forfeits
// and nothing is archived: members are told the session closed.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for connID, b := range g.conns {
		b.conn.Send(&Message{Type: MsgSessionClose, SessionID: b.placement.SessionID})
		delete(g.conns, connID)

		s, err := g.registry.Lookup(b.placement.SessionID)
		if err != nil {
			continue
		}
		left := s.Leave(connID, session.PolicyRelease)
		if left.Found && !left.Observer {
			g.registry.Release(b.placement.SessionID, left.Seat)
		}
	}
	g.logger.Info("gateway shut down", zap.Int("sessions", g.registry.Count()))
}

// ConnectionCount returns the number of bound connections
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Wait blocks until pending archive writes finish or ctx is done
func (g *Gateway) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) handleMove(b *binding, s *session.Session, move engine.Move) {
	var err error
	var outcome *session.MoveOutcome
	if b.placement.Observer {
		err = session.ErrReadOnly
	} else {
		outcome, err = s.SubmitMove(b.conn.ID(), move)
	}

	if err != nil {
		g.logger.Debug("move rejected",
			zap.String("conn", b.conn.ID()),
			zap.String("session", s.ID),
			zap.Stringer("move", move),
			zap.Error(err))
		b.conn.Send(&Message{
			Type:      MsgMoveRejected,
			SessionID: s.ID,
			Data: MoveRejectedPayload{
				Move:    move,
				Reason:  session.RejectReason(err),
				Message: err.Error(),
			},
		})
		return
	}

	g.broadcast(s, &Message{Type: MsgMoveApplied, SessionID: s.ID, Data: outcome})

	if outcome.GameOver() {
		g.logger.Info("game over",
			zap.String("session", s.ID),
			zap.String("score", outcome.Result.String()),
			zap.String("reason", outcome.Result.Reason))
		g.broadcast(s, gameOverMessage(s.ID, outcome.Result))
		g.archiveGame(s, outcome.Result)
	}
}

func (g *Gateway) handleChat(b *binding, s *session.Session, text string) {
	line, err := s.Chat(b.conn.ID(), text, g.maxChat)
	if err != nil {
		b.conn.Send(errorMessage(s.ID, err))
		return
	}
	g.broadcast(s, &Message{Type: MsgChat, SessionID: s.ID, Data: line})
}

func (g *Gateway) handleRestart(b *binding, s *session.Session) {
	if b.placement.Observer {
		b.conn.Send(errorMessage(s.ID, session.ErrReadOnly))
		return
	}

	snap := s.Restart()
	g.logger.Info("board restarted",
		zap.String("session", s.ID),
		zap.String("by", b.placement.Label()))

	g.broadcast(s, &Message{Type: MsgRestarted, SessionID: s.ID, Data: snap})
	g.broadcast(s, stateMessage(snap))
}

// broadcast sends msg to every bound member of s. Callers hold g.mu.
func (g *Gateway) broadcast(s *session.Session, msg *Message) {
	for _, id := range s.Members() {
		if b, ok := g.conns[id]; ok {
			b.conn.Send(msg)
		}
	}
}

// archiveGame stores a finished game without blocking the caller
func (g *Gateway) archiveGame(s *session.Session, result *engine.Result) {
	if g.archive == nil || result == nil {
		return
	}

	snap := s.Snapshot()
	record := archive.NewRecord(snap.ID, result, snap.Moves, snap.Board, snap.StartedAt, snap.UpdatedAt)

	g.pending.Add(1)
	go func() {
		defer g.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		if err := g.archive.Save(ctx, record); err != nil {
			level := zap.ErrorLevel
			if errors.Is(err, archive.ErrInvalidRecord) {
				level = zap.WarnLevel
			}
			g.logger.Log(level, "failed to archive game",
				zap.String("session", record.SessionID),
				zap.Error(err))
			return
		}
		g.logger.Info("game archived",
			zap.String("session", record.SessionID),
			zap.String("game", record.ID))
	}()
}
