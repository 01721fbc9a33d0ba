package main

import (
	"bytes"
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prajjwaltripathi07/chess/game/config"
	"github.com/prajjwaltripathi07/chess/game/engine"
	"github.com/prajjwaltripathi07/chess/game/service"
	"github.com/prajjwaltripathi07/chess/game/session"
	"github.com/prajjwaltripathi07/chess/transport/websocket"
)

func startRelay(t *testing.T) string {
	t.Helper()

	registry := session.NewRegistry(engine.NewChess())
	gateway := service.NewGateway(registry)
	hub := websocket.NewHub(gateway, config.Default().WebSocket, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		server.Close()
		cancel()
		<-stopped
	})
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestRandomMove(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	eng := engine.NewChess()

	start := eng.Serialize(eng.InitialState())
	for i := 0; i < 20; i++ {
		move, err := randomMove(start, rng)
		require.NoError(t, err)
		_, err = eng.ApplyMove(eng.InitialState(), move)
		assert.NoError(t, err, "move %s", move)
	}

	move, err := randomMove("k7/P7/1K6/8/8/8/8/8 w - - 0 1", rng)
	require.NoError(t, err)
	assert.NoError(t, move.Validate())

	_, err = randomMove("rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", rng)
	assert.Error(t, err, "checkmated side has no moves")

	_, err = randomMove("garbage", rng)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	url := startRelay(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reports, err := run(ctx, options{url: url, games: 2, maxPlies: 40, seed: 7}, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.NotEqual(t, reports[0].SessionID, reports[1].SessionID)
	for _, r := range reports {
		assert.Equal(t, engine.First, r.Seat)
		assert.Greater(t, r.Plies, 0)
		assert.LessOrEqual(t, r.Plies, 40)
		assert.NotEmpty(t, r.Score)
	}

	var buf bytes.Buffer
	printReports(&buf, reports)
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestRun_DialFailure(t *testing.T) {
	_, err := run(context.Background(), options{url: "ws://127.0.0.1:1/ws", games: 1}, zap.NewNop())
	assert.Error(t, err)
}
