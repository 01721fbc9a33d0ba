// Package service connects transports to chess sessions.
//
// The service package implements:
//   - The Gateway, which binds connections to sessions and relays events
//   - The inbound event codec and the outbound message envelope
//   - A read-only GameService for the REST API and MCP tools
//
// Core Types:
//
// Gateway receives three things from a transport: a new connection, a raw
// frame from a connection, and a closed connection. It never writes to a
// socket itself; it calls Conn.Send, and every message it sends goes either
// to the connection that caused it or to the members of that connection's
// session. Handlers run one at a time, so the events of one session are
// applied and broadcast in the order the gateway received them.
//
// Events:
//
// Clients send JSON frames with a type field:
//
//	{"type":"move","move":{"from":"e2","to":"e4"}}
//	{"type":"chat","text":"good luck"}
//	{"type":"restart"}
//
// The server answers with {"type":..., "session_id":..., "data":...}
// envelopes. Rejections (move_rejected, error) reach the sender only.
//
// Archive:
//
// When configured WithArchive, each finished game is written to the
// archive in the background. Call Wait during shutdown to flush writes.
//
// Usage:
//
//	registry := session.NewRegistry(engine.NewChess())
//	gateway := service.NewGateway(registry,
//		service.WithDisconnectPolicy(session.PolicyForfeit),
//		service.WithLogger(logger))
//
//	gateway.Connect(conn)
//	gateway.Message(conn.ID(), frame)
//	gateway.Disconnect(conn.ID())
package service
