// Package mcp exposes the chess relay to MCP clients.
//
// The tools are read-only. Each one calls the REST API and formats the
// answer as text:
//   - server_stats: counters and settings from /api/health
//   - list_sessions: live sessions, optionally filtered by phase
//   - get_session: one session's seats, phase and result
//   - session_state: FEN, a board diagram and the move list
//   - list_games: finished games from the archive
//   - get_game: one finished game
//
// Transport Modes:
//   - Stdio: GetMCPServer with server.ServeStdio
//   - HTTP: HandleHTTP mounted at POST /mcp
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:3000")
//	router.HandleFunc("/mcp", client.HandleHTTP)
package mcp
