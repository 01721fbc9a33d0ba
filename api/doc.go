// Package api provides the HTTP REST API for the chess relay.
//
// The api package implements:
//   - Read-only endpoints for live sessions and archived games
//   - A health endpoint with server statistics
//   - WebSocket upgrade routing to the hub
//   - Optional static file serving
//
// Endpoints:
//
//   - GET /api/health - Status and counters
//   - GET /api/sessions - List live sessions (optional ?phase=waiting|active|terminated)
//   - GET /api/sessions/{id} - Get one session
//   - GET /api/sessions/{id}/state - Board, side to move and move list
//   - GET /api/games - List finished games, newest first (?limit=N, 0 for all)
//   - GET /api/games/{id} - Get one finished game
//   - GET /ws - WebSocket upgrade (?observe=<session> to watch)
//
// Play happens only over /ws. Nothing in this package changes a session.
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status code:
//
//	{"error": "unknown session: room-9"}
//
// Unknown sessions and games map to 404, a disabled archive to 503.
//
// Usage:
//
//	server := api.NewServer(gameService, hub,
//		api.WithLogger(logger.Named("api")),
//		api.WithStaticDir("static"))
//	http.ListenAndServe(":3000", server)
package api
