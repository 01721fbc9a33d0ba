package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/notnil/chess"

	"github.com/prajjwaltripathi07/chess/game/archive"
	"github.com/prajjwaltripathi07/chess/game/service"
)

// Version is reported to MCP clients
const Version = "1.0.0"

// Client is a thin MCP server that proxies read-only tools to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Chess Relay",
		Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Chess Relay - MCP Interface

Read-only view of an anonymous two-player chess server. Players are paired
automatically over WebSocket; these tools cannot move pieces.

AVAILABLE TOOLS:
- server_stats: Session and connection counters
- list_sessions: List live sessions and their phase
- get_session: Details of one session
- session_state: Board (FEN and diagram), side to move and moves of one session
- list_games: Finished games from the archive, newest first
- get_game: One finished game with its full move list`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get server counters and settings",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List live chess sessions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"phase": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"waiting", "active", "terminated"},
					"description": "Only list sessions in this phase (optional)",
				},
			},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID, e.g. room-1",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "session_state",
		Description: "Get the board of a live session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID, e.g. room-1",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleSessionState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_games",
		Description: "List finished games, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of games (default 20)",
					"minimum":     1,
				},
			},
		},
	}, c.handleListGames)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_game",
		Description: "Get one finished game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID from list_games",
				},
			},
			Required: []string{"game_id"},
		},
	}, c.handleGetGame)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// HandleHTTP answers a single JSON-RPC message posted to /mcp
func (c *Client) HandleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)
	if response == nil {
		// Notifications have no reply
		w.WriteHeader(http.StatusAccepted)
		return
	}

	responseData, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(responseData)
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Status string        `json:"status"`
		Stats  service.Stats `json:"stats"`
	}
	if err := c.apiCall(ctx, "/api/health", &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s := response.Stats
	result := fmt.Sprintf("Status: %s\nSessions: %d\nConnections: %d\nDisconnect policy: %s\nObservers: %t\nArchive: %t\n",
		response.Status, s.Sessions, s.Connections, s.DisconnectPolicy, s.ObserversEnabled, s.ArchiveEnabled)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/sessions"
	if phase := stringArg(request, "phase"); phase != "" {
		path += "?phase=" + url.QueryEscape(phase)
	}

	var response struct {
		Total    int                   `json:"total"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, path, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Live Sessions (%d):\n\n", response.Total)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s (%s, seats %s, ply %d, created %s)\n",
			s.ID, s.Phase, seatSummary(s), s.Ply, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request, "session_id")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "/api/sessions/"+url.PathEscape(sessionID), &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleSessionState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request, "session_id")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var state service.GameState
	if err := c.apiCall(ctx, "/api/sessions/"+url.PathEscape(sessionID)+"/state", &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(request, "limit", 20)
	if limit < 1 {
		limit = 20
	}

	var response struct {
		Total int               `json:"total"`
		Games []*archive.Record `json:"games"`
	}
	if err := c.apiCall(ctx, fmt.Sprintf("/api/games?limit=%d", limit), &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Finished Games (%d):\n\n", response.Total)
	for _, g := range response.Games {
		reason := ""
		if g.Result != nil {
			reason = g.Result.Reason
		}
		result += fmt.Sprintf("- %s %s by %s in %s, %d plies (ended %s)\n",
			g.ID, g.Score, reason, g.SessionID, len(g.Moves), g.EndedAt.Format("2006-01-02 15:04"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID := stringArg(request, "game_id")
	if gameID == "" {
		return mcp.NewToolResultError("game_id is required"), nil
	}

	var record archive.Record
	if err := c.apiCall(ctx, "/api/games/"+url.PathEscape(gameID), &record); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRecord(&record)), nil
}

// Argument helpers

func stringArg(request mcp.CallToolRequest, key string) string {
	args, _ := request.Params.Arguments.(map[string]interface{})
	value, _ := args[key].(string)
	return strings.TrimSpace(value)
}

func intArg(request mcp.CallToolRequest, key string, fallback int) int {
	args, _ := request.Params.Arguments.(map[string]interface{})
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// Formatting helpers

func seatSummary(s service.SessionInfo) string {
	mark := func(taken bool) string {
		if taken {
			return "x"
		}
		return "_"
	}
	return mark(s.Seats.First) + mark(s.Seats.Second)
}

func formatSessionInfo(s *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nPhase: %s\n", s.ID, s.Phase)
	fmt.Fprintf(&b, "Player 1 seated: %t\nPlayer 2 seated: %t\nObservers: %d\n", s.Seats.First, s.Seats.Second, s.Observers)
	fmt.Fprintf(&b, "Ply: %d\nCreated: %s\n", s.Ply, s.CreatedAt.Format("2006-01-02 15:04:05"))
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started: %s\n", s.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if s.Result != nil {
		fmt.Fprintf(&b, "Result: %s (%s)\n", s.Result.String(), s.Result.Reason)
	}
	return b.String()
}

func formatGameState(state *service.GameState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nPhase: %s\n", state.SessionID, state.Phase)
	fmt.Fprintf(&b, "To move: %s\nFEN: %s\n\n", state.SideToMove.Color(), state.Board)
	if diagram := drawBoard(state.Board); diagram != "" {
		b.WriteString(diagram)
		b.WriteString("\n")
	}
	if len(state.Moves) > 0 {
		fmt.Fprintf(&b, "Moves: %s\n", strings.Join(state.Moves, " "))
	}
	if state.Result != nil {
		fmt.Fprintf(&b, "Result: %s (%s)\n", state.Result.String(), state.Result.Reason)
	}
	return b.String()
}

func formatRecord(r *archive.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Game: %s\nSession: %s\nScore: %s\n", r.ID, r.SessionID, r.Score)
	if r.Result != nil {
		fmt.Fprintf(&b, "Reason: %s\n", r.Result.Reason)
	}
	fmt.Fprintf(&b, "Started: %s\nEnded: %s\n",
		r.StartedAt.Format("2006-01-02 15:04:05"), r.EndedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Moves (%d): %s\n\n", len(r.Moves), strings.Join(r.Moves, " "))
	if diagram := drawBoard(r.FinalBoard); diagram != "" {
		b.WriteString(diagram)
	}
	return b.String()
}

// drawBoard renders a FEN as a text diagram, or "" if it does not parse
func drawBoard(fen string) string {
	opt, err := chess.FEN(fen)
	if err != nil {
		return ""
	}
	return chess.NewGame(opt).Position().Board().Draw()
}
