package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajjwaltripathi07/chess/game/archive"
	"github.com/prajjwaltripathi07/chess/game/engine"
	"github.com/prajjwaltripathi07/chess/game/service"
	"github.com/prajjwaltripathi07/chess/game/session"
)

const afterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

// fakeAPI serves canned REST responses keyed by request URI
func fakeAPI(t *testing.T, routes map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.RequestURI()]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "unknown session: " + r.URL.Path})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func callTool(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:3000/")

	assert.Equal(t, "http://localhost:3000", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.GetMCPServer())
}

func TestClient_ListSessions(t *testing.T) {
	created := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	server := fakeAPI(t, map[string]interface{}{
		"/api/sessions?phase=active": map[string]interface{}{
			"total": 1,
			"sessions": []service.SessionInfo{
				{ID: "room-1", Phase: session.PhaseActive, Seats: session.SeatsInfo{First: true, Second: true}, Ply: 7, CreatedAt: created},
			},
		},
	})
	client := NewClient(server.URL)

	result, err := client.handleListSessions(context.Background(), callTool(map[string]interface{}{"phase": "active"}))
	require.NoError(t, err)
	text := resultText(t, result)

	assert.Contains(t, text, "Live Sessions (1)")
	assert.Contains(t, text, "room-1 (active, seats xx, ply 7, created 15:04:05)")
}

func TestClient_GetSession(t *testing.T) {
	server := fakeAPI(t, map[string]interface{}{
		"/api/sessions/room-2": service.SessionInfo{
			ID:     "room-2",
			Phase:  session.PhaseTerminated,
			Seats:  session.SeatsInfo{Second: true},
			Result: engine.WinFor(engine.Second, engine.ReasonForfeit),
		},
	})
	client := NewClient(server.URL)

	result, err := client.handleGetSession(context.Background(), callTool(map[string]interface{}{"session_id": "room-2"}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Phase: terminated")
	assert.Contains(t, text, "Player 1 seated: false")
	assert.Contains(t, text, "Result: 0-1 (forfeit)")

	result, err = client.handleGetSession(context.Background(), callTool(map[string]interface{}{"session_id": "room-9"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "unknown session")

	result, err = client.handleGetSession(context.Background(), callTool(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestClient_SessionState(t *testing.T) {
	server := fakeAPI(t, map[string]interface{}{
		"/api/sessions/room-1/state": service.GameState{
			SessionID:  "room-1",
			Phase:      session.PhaseActive,
			Board:      afterE4,
			SideToMove: engine.Second,
			Moves:      []string{"e2e4"},
		},
	})
	client := NewClient(server.URL)

	result, err := client.handleSessionState(context.Background(), callTool(map[string]interface{}{"session_id": "room-1"}))
	require.NoError(t, err)
	text := resultText(t, result)

	assert.Contains(t, text, "To move: black")
	assert.Contains(t, text, "FEN: "+afterE4)
	assert.Contains(t, text, "Moves: e2e4")
	assert.Contains(t, text, drawBoard(afterE4))
}

func TestClient_Games(t *testing.T) {
	ended := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	record := &archive.Record{
		ID:         "5f0c4c1e-3b1a-4a52-9d7e-2d1c2f6b8a11",
		SessionID:  "room-4",
		Score:      "0-1",
		Result:     engine.WinFor(engine.Second, engine.ReasonCheckmate),
		Moves:      []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		FinalBoard: "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
		StartedAt:  ended.Add(-time.Minute),
		EndedAt:    ended,
	}
	server := fakeAPI(t, map[string]interface{}{
		"/api/games?limit=5": map[string]interface{}{
			"total": 1,
			"games": []*archive.Record{record},
		},
		"/api/games/" + record.ID: record,
	})
	client := NewClient(server.URL)

	result, err := client.handleListGames(context.Background(), callTool(map[string]interface{}{"limit": float64(5)}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Finished Games (1)")
	assert.Contains(t, text, record.ID+" 0-1 by checkmate in room-4, 4 plies")

	result, err = client.handleGetGame(context.Background(), callTool(map[string]interface{}{"game_id": record.ID}))
	require.NoError(t, err)
	text = resultText(t, result)
	assert.Contains(t, text, "Reason: checkmate")
	assert.Contains(t, text, "Moves (4): f2f3 e7e5 g2g4 d8h4")
}

func TestClient_ServerStats(t *testing.T) {
	server := fakeAPI(t, map[string]interface{}{
		"/api/health": map[string]interface{}{
			"status": "healthy",
			"stats":  service.Stats{Sessions: 2, Connections: 3, DisconnectPolicy: session.PolicyForfeit},
		},
	})
	client := NewClient(server.URL)

	result, err := client.handleServerStats(context.Background(), callTool(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Sessions: 2")
	assert.Contains(t, text, "Disconnect policy: forfeit")
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	err := client.apiCall(context.Background(), "/api/health", nil)
	assert.Error(t, err)
}

func TestClient_HandleHTTP(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	w := httptest.NewRecorder()
	client.HandleHTTP(w, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	msg := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	w = httptest.NewRecorder()
	client.HandleHTTP(w, httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(msg)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"server_stats", "list_sessions", "get_session", "session_state", "list_games", "get_game",
	}, names)
}
