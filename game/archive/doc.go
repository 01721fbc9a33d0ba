// Package archive records finished games.
//
// Live sessions are never stored; only games that reached a result
// (checkmate, draw or forfeit) are written, once, when they end. Two
// backends are provided:
//   - FileArchive writes one indented JSON file per game
//   - SQLiteArchive stores games in a single SQLite table
//
// Both implement Archive and are safe for concurrent use.
package archive
