// Package websocket provides the WebSocket transport for the chess relay.
//
// The websocket package implements:
//   - Connection upgrade with an optional origin allow-list
//   - One read pump and one write pump per connection
//   - Ping/pong keepalive and per-frame size limits
//   - Observer attachment via the ?observe=<session> query parameter
//
// Architecture:
//
// A central Hub owns every Client. Pumps never touch game state; they post
// register, unregister and inbound-frame requests to the hub, and the hub's
// Run loop hands them to the gateway one at a time. Messages from the
// gateway are queued on the client's send channel and written by its
// write pump. A client that falls behind far enough to fill that channel
// is closed and then disconnected like any other.
//
// Usage:
//
//	hub := websocket.NewHub(gateway, cfg.WebSocket, logger.Named("hub"))
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects, gets an id and is registered with the hub
// 2. The gateway seats it (or attaches it as an observer) and sends role and state
// 3. Client sends move, chat and restart frames and receives session broadcasts
// 4. Disconnection or a failed write unregisters it and the gateway applies the disconnect policy
package websocket
