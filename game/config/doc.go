// Package config loads the server configuration.
//
// Settings are layered in this order, later layers winning:
//  1. Built-in defaults (Default)
//  2. A YAML file passed with --config
//  3. CHESS_* environment variables, plus the NGROK_* variables
//  4. Command-line flags that were set explicitly
//
// Example file:
//
//	http:
//	  host: 0.0.0.0
//	  port: 3000
//	game:
//	  disconnect_policy: forfeit   # forfeit, reset or release
//	  observers: true
//	archive:
//	  driver: sqlite               # none, file or sqlite
//	  path: games.db
//
// Validate reports every problem at once so a bad file can be fixed in a
// single pass.
package config
