package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/prajjwaltripathi07/chess/game/archive"
	"github.com/prajjwaltripathi07/chess/game/engine"
	"github.com/prajjwaltripathi07/chess/game/session"
)

// recordingConn captures everything the gateway sends to it
type recordingConn struct {
	id string

	mu   sync.Mutex
	msgs []*Message
}

func newConn(id string) *recordingConn {
	return &recordingConn{id: id}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *recordingConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, len(c.msgs))
	for i, m := range c.msgs {
		types[i] = m.Type
	}
	return types
}

func (c *recordingConn) last() *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.msgs) == 0 {
		return nil
	}
	return c.msgs[len(c.msgs)-1]
}

func (c *recordingConn) find(msgType string) *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if c.msgs[i].Type == msgType {
			return c.msgs[i]
		}
	}
	return nil
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

func newTestGateway(t *testing.T, regOpts []session.Option, opts ...GatewayOption) (*Gateway, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry(engine.NewChess(), regOpts...)
	opts = append([]GatewayOption{WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewGateway(registry, opts...), registry
}

func moveFrame(from, to string) []byte {
	data, _ := json.Marshal(map[string]any{
		"type": "move",
		"move": map[string]string{"from": from, "to": to},
	})
	return data
}

func chatFrame(text string) []byte {
	data, _ := json.Marshal(map[string]string{"type": "chat", "text": text})
	return data
}

func TestGateway_Scenario(t *testing.T) {
	g, registry := newTestGateway(t, nil)
	a, b, c := newConn("a"), newConn("b"), newConn("c")

	pa := g.Connect(a)
	pb := g.Connect(b)
	pc := g.Connect(c)

	assert.Equal(t, "room-1", pa.SessionID)
	assert.Equal(t, engine.First, pa.Seat)
	assert.Equal(t, "room-1", pb.SessionID)
	assert.Equal(t, engine.Second, pb.Seat)
	assert.Equal(t, "room-2", pc.SessionID)
	assert.Equal(t, engine.First, pc.Seat)

	assert.Equal(t, []string{MsgRole, MsgState, MsgGameStart}, a.types())
	assert.Equal(t, []string{MsgRole, MsgState, MsgGameStart}, b.types())
	assert.Equal(t, []string{MsgRole, MsgState}, c.types())

	a.reset()
	b.reset()
	c.reset()

	// A opens
	g.Message("a", moveFrame("e2", "e4"))
	assert.Equal(t, []string{MsgMoveApplied}, a.types())
	assert.Equal(t, []string{MsgMoveApplied}, b.types())
	assert.Empty(t, c.types())

	applied := b.last().Data.(*session.MoveOutcome)
	assert.Equal(t, engine.First, applied.Seat)
	assert.Equal(t, engine.Second, applied.SideToMove)

	// B replies, then tries to move again
	g.Message("b", moveFrame("e7", "e5"))
	a.reset()
	b.reset()

	s, err := registry.Lookup("room-1")
	require.NoError(t, err)
	before := s.Snapshot().Board

	g.Message("b", moveFrame("d7", "d5"))
	assert.Empty(t, a.types())
	require.Equal(t, []string{MsgMoveRejected}, b.types())
	rejected := b.last().Data.(MoveRejectedPayload)
	assert.Equal(t, session.ReasonNotYourTurn, rejected.Reason)
	assert.Equal(t, before, s.Snapshot().Board)

	// A leaves; B is told and wins by forfeit
	b.reset()
	g.Disconnect("a")

	left := b.find(MsgOpponentLeft)
	require.NotNil(t, left)
	payload := left.Data.(OpponentLeftPayload)
	assert.Equal(t, engine.First, payload.Seat)
	assert.True(t, payload.Terminated)
	require.NotNil(t, payload.Forfeit)
	assert.Equal(t, engine.Second, *payload.Forfeit.Winner)

	over := b.find(MsgGameOver)
	require.NotNil(t, over)
	assert.Equal(t, "0-1", over.Data.(GameOverPayload).Score)
	assert.Empty(t, c.types())

	s, err = registry.Lookup("room-1")
	require.NoError(t, err, "session stays while B remains")
	assert.Equal(t, session.PhaseTerminated, s.Phase())
	assert.Equal(t, "", s.Occupant(engine.First))

	// B leaves; the session goes away
	g.Disconnect("b")
	_, err = registry.Lookup("room-1")
	assert.ErrorIs(t, err, session.ErrUnknownSession)
	assert.Equal(t, 1, registry.Count())
	assert.Equal(t, 1, g.ConnectionCount())
}

func TestGateway_ConnectIsIdempotent(t *testing.T) {
	g, registry := newTestGateway(t, nil)
	a := newConn("a")

	first := g.Connect(a)
	second := g.Connect(a)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, registry.Count())
	assert.Equal(t, "", registry.List()[0].Occupant(engine.Second))
}

func TestGateway_DisconnectTwice(t *testing.T) {
	g, registry := newTestGateway(t, nil)
	a, b := newConn("a"), newConn("b")
	g.Connect(a)
	g.Connect(b)

	g.Disconnect("a")
	b.reset()
	g.Disconnect("a")

	assert.Empty(t, b.types())
	assert.Equal(t, 1, registry.Count())
}

func TestGateway_MalformedEvents(t *testing.T) {
	g, _ := newTestGateway(t, nil)
	a, b := newConn("a"), newConn("b")
	g.Connect(a)
	g.Connect(b)
	a.reset()
	b.reset()

	frames := [][]byte{
		[]byte("not json"),
		[]byte(`{"type":"teleport"}`),
		[]byte(`{"type":"move"}`),
		[]byte(`{"type":"move","move":{"from":"z9","to":"e4"}}`),
		[]byte(`{"type":"chat"}`),
		chatFrame("   "),
	}
	for _, frame := range frames {
		g.Message("a", frame)
	}

	assert.Empty(t, b.types(), "nothing is broadcast for malformed events")
	require.Len(t, a.types(), len(frames))
	for _, msg := range a.msgs {
		assert.Equal(t, MsgError, msg.Type)
		assert.Equal(t, session.ReasonMalformedEvent, msg.Data.(ErrorPayload).Reason)
	}
}

func TestGateway_UnboundConnection(t *testing.T) {
	g, registry := newTestGateway(t, nil)

	g.Message("ghost", moveFrame("e2", "e4"))
	g.Disconnect("ghost")

	assert.Equal(t, 0, registry.Count())
}

func TestGateway_MoveWhileWaiting(t *testing.T) {
	g, _ := newTestGateway(t, nil)
	a := newConn("a")
	g.Connect(a)
	a.reset()

	g.Message("a", moveFrame("e2", "e4"))

	require.Equal(t, []string{MsgMoveRejected}, a.types())
	assert.Equal(t, session.ReasonNotActive, a.last().Data.(MoveRejectedPayload).Reason)
}

func TestGateway_IllegalMove(t *testing.T) {
	g, _ := newTestGateway(t, nil)
	a, b := newConn("a"), newConn("b")
	g.Connect(a)
	g.Connect(b)
	a.reset()
	b.reset()

	g.Message("a", moveFrame("e2", "e5"))

	assert.Empty(t, b.types())
	require.Equal(t, []string{MsgMoveRejected}, a.types())
	assert.Equal(t, session.ReasonIllegalMove, a.last().Data.(MoveRejectedPayload).Reason)
}

func TestGateway_Chat(t *testing.T) {
	g, _ := newTestGateway(t, nil, WithMaxChatLength(5))
	a, b, c := newConn("a"), newConn("b"), newConn("c")
	g.Connect(a)
	g.Connect(b)
	g.Connect(c)
	a.reset()
	b.reset()
	c.reset()

	g.Message("b", chatFrame("  gl  "))

	for _, conn := range []*recordingConn{a, b} {
		msg := conn.last()
		require.NotNil(t, msg)
		require.Equal(t, MsgChat, msg.Type)
		line := msg.Data.(*session.ChatLine)
		assert.Equal(t, "Player 2", line.Sender)
		assert.Equal(t, "gl", line.Text)
	}
	assert.Empty(t, c.types())

	b.reset()
	g.Message("b", chatFrame("too long"))
	assert.Equal(t, []string{MsgChat}, a.types())
	assert.Equal(t, []string{MsgError}, b.types())
}

func TestGateway_CheckmateArchives(t *testing.T) {
	store, err := archive.NewFileArchive(t.TempDir())
	require.NoError(t, err)

	g, _ := newTestGateway(t, nil, WithArchive(store))
	a, b := newConn("a"), newConn("b")
	g.Connect(a)
	g.Connect(b)

	g.Message("a", moveFrame("f2", "f3"))
	g.Message("b", moveFrame("e7", "e5"))
	g.Message("a", moveFrame("g2", "g4"))
	g.Message("b", moveFrame("d8", "h4"))

	over := a.find(MsgGameOver)
	require.NotNil(t, over)
	assert.Equal(t, "0-1", over.Data.(GameOverPayload).Score)
	assert.Equal(t, engine.ReasonCheckmate, over.Data.(GameOverPayload).Result.Reason)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.Wait(ctx))

	records, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "room-1", records[0].SessionID)
	assert.Equal(t, []string{"f2f3", "e7e5", "g2g4", "d8h4"}, records[0].Moves)

	// Further moves are refused until someone restarts
	a.reset()
	g.Message("a", moveFrame("a2", "a3"))
	assert.Equal(t, session.ReasonNotActive, a.last().Data.(MoveRejectedPayload).Reason)

	b.reset()
	g.Message("a", []byte(`{"type":"restart"}`))
	assert.Equal(t, []string{MsgRestarted, MsgState}, b.types())
	snap := b.last().Data.(session.Snapshot)
	assert.Equal(t, session.PhaseActive, snap.Phase)
	assert.Empty(t, snap.Moves)
}

func TestGateway_DisconnectPolicies(t *testing.T) {
	tests := []struct {
		name       string
		policy     session.DisconnectPolicy
		phase      session.Phase
		terminated bool
		moves      int
	}{
		{"forfeit", session.PolicyForfeit, session.PhaseTerminated, true, 1},
		{"reset", session.PolicyReset, session.PhaseWaiting, false, 0},
		{"release", session.PolicyRelease, session.PhaseWaiting, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, registry := newTestGateway(t, nil, WithDisconnectPolicy(tt.policy))
			a, b := newConn("a"), newConn("b")
			g.Connect(a)
			g.Connect(b)
			g.Message("a", moveFrame("d2", "d4"))
			b.reset()

			g.Disconnect("a")

			left := b.find(MsgOpponentLeft)
			require.NotNil(t, left)
			assert.Equal(t, tt.terminated, left.Data.(OpponentLeftPayload).Terminated)
			assert.NotNil(t, left.Data.(OpponentLeftPayload).Forfeit)

			s, err := registry.Lookup("room-1")
			require.NoError(t, err)
			snap := s.Snapshot()
			assert.Equal(t, tt.phase, snap.Phase)
			assert.Len(t, snap.Moves, tt.moves)

			// A newcomer fills the empty seat
			c := newConn("c")
			placement := g.Connect(c)
			assert.Equal(t, "room-1", placement.SessionID)
			assert.Equal(t, engine.First, placement.Seat)
			assert.Equal(t, session.PhaseActive, s.Phase())
		})
	}
}

func TestGateway_Observers(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		g, _ := newTestGateway(t, nil)
		a, o := newConn("a"), newConn("o")
		g.Connect(a)

		_, err := g.Observe(o, "room-1")
		assert.ErrorIs(t, err, session.ErrObserversDisabled)
		assert.Equal(t, session.ReasonObserversDisabled, o.last().Data.(ErrorPayload).Reason)
		assert.Equal(t, 1, g.ConnectionCount())
	})

	t.Run("unknown session", func(t *testing.T) {
		g, _ := newTestGateway(t, []session.Option{session.WithObservers(true)})
		o := newConn("o")

		_, err := g.Observe(o, "room-9")
		assert.ErrorIs(t, err, session.ErrUnknownSession)
	})

	t.Run("read only", func(t *testing.T) {
		g, _ := newTestGateway(t, []session.Option{session.WithObservers(true)})
		a, b, o := newConn("a"), newConn("b"), newConn("o")
		g.Connect(a)
		g.Connect(b)

		placement, err := g.Observe(o, "room-1")
		require.NoError(t, err)
		assert.True(t, placement.Observer)
		assert.Equal(t, []string{MsgRole, MsgState}, o.types())
		assert.Equal(t, "observer", o.msgs[0].Data.(RolePayload).Seat)

		a.reset()
		o.reset()
		g.Message("o", moveFrame("e2", "e4"))
		g.Message("o", []byte(`{"type":"restart"}`))
		assert.Empty(t, a.types())
		assert.Equal(t, []string{MsgMoveRejected, MsgError}, o.types())
		assert.Equal(t, session.ReasonReadOnly, o.msgs[0].Data.(MoveRejectedPayload).Reason)

		// Observers see moves and may chat
		o.reset()
		g.Message("a", moveFrame("e2", "e4"))
		g.Message("o", chatFrame("nice"))
		assert.Equal(t, []string{MsgMoveApplied, MsgChat}, o.types())
		assert.Equal(t, session.ObserverLabel, a.last().Data.(*session.ChatLine).Sender)
	})

	t.Run("session closed", func(t *testing.T) {
		g, registry := newTestGateway(t, []session.Option{session.WithObservers(true)})
		a, o := newConn("a"), newConn("o")
		g.Connect(a)
		_, err := g.Observe(o, "room-1")
		require.NoError(t, err)

		g.Disconnect("a")

		assert.Equal(t, 0, registry.Count())
		assert.Equal(t, MsgSessionClose, o.last().Type)
		assert.Equal(t, 0, g.ConnectionCount())

		o.reset()
		g.Message("o", chatFrame("anyone?"))
		assert.Empty(t, o.types())
	})
}

func TestGateway_Shutdown(t *testing.T) {
	store, err := archive.NewFileArchive(t.TempDir())
	require.NoError(t, err)

	g, registry := newTestGateway(t, []session.Option{session.WithObservers(true)}, WithArchive(store))
	a, b, c, o := newConn("a"), newConn("b"), newConn("c"), newConn("o")
	g.Connect(a)
	g.Connect(b)
	g.Connect(c)
	_, err = g.Observe(o, "room-1")
	require.NoError(t, err)
	g.Message("a", moveFrame("e2", "e4"))

	for _, conn := range []*recordingConn{a, b, c, o} {
		conn.reset()
	}
	g.Shutdown()

	for _, conn := range []*recordingConn{a, b, c, o} {
		assert.Equal(t, []string{MsgSessionClose}, conn.types(), conn.id)
	}
	assert.Equal(t, 0, g.ConnectionCount())
	assert.Equal(t, 0, registry.Count())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.Wait(ctx))

	records, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, records, "an interrupted game is not a finished game")

	// Late disconnects from the transport are no-ops
	g.Disconnect("a")
	assert.Equal(t, []string{MsgSessionClose}, b.types())
}

func TestGateway_ConcurrentConnections(t *testing.T) {
	g, registry := newTestGateway(t, nil)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := newConn(string(rune('A'+i%26)) + string(rune('a'+i/26)))
			g.Connect(conn)
			g.Message(conn.ID(), chatFrame("hi"))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n/2, registry.Count())
	assert.Equal(t, n, g.ConnectionCount())
	for _, s := range registry.List() {
		assert.Equal(t, session.PhaseActive, s.Phase())
	}
}
