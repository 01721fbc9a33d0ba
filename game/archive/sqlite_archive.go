package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/prajjwaltripathi07/chess/game/engine"
)

const gamesSchema = `
CREATE TABLE IF NOT EXISTS games (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	score       TEXT NOT NULL,
	winner      TEXT,
	draw        INTEGER NOT NULL DEFAULT 0,
	reason      TEXT NOT NULL,
	moves       TEXT NOT NULL,
	final_board TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	ended_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_games_ended_at ON games(ended_at);
`

// SQLiteArchive implements Archive on a SQLite database file
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens (or creates) the database at path and ensures the schema
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(gamesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create archive schema: %w", err)
	}

	return &SQLiteArchive{db: db}, nil
}

// Save inserts the record
func (sa *SQLiteArchive) Save(ctx context.Context, record *Record) error {
	if err := record.validate(); err != nil {
		return err
	}

	moves, err := json.Marshal(record.Moves)
	if err != nil {
		return fmt.Errorf("failed to marshal moves: %w", err)
	}

	var winner sql.NullString
	if record.Result.Winner != nil {
		winner = sql.NullString{String: record.Result.Winner.String(), Valid: true}
	}

	_, err = sa.db.ExecContext(ctx, `
		INSERT INTO games (id, session_id, score, winner, draw, reason, moves, final_board, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.SessionID,
		record.Score,
		winner,
		record.Result.Draw,
		record.Result.Reason,
		string(moves),
		record.FinalBoard,
		record.StartedAt.UnixMilli(),
		record.EndedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert game record: %w", err)
	}

	return nil
}

// Load fetches one record by ID
func (sa *SQLiteArchive) Load(ctx context.Context, id string) (*Record, error) {
	row := sa.db.QueryRowContext(ctx, `
		SELECT id, session_id, score, winner, draw, reason, moves, final_board, started_at, ended_at
		FROM games WHERE id = ?`, id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// List returns records ordered by end time, newest first
func (sa *SQLiteArchive) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite reads a negative LIMIT as unbounded
	}

	rows, err := sa.db.QueryContext(ctx, `
		SELECT id, session_id, score, winner, draw, reason, moves, final_board, started_at, ended_at
		FROM games ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query game records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate game records: %w", err)
	}

	return records, nil
}

// Close closes the database
func (sa *SQLiteArchive) Close() error {
	return sa.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record         Record
		winner         sql.NullString
		draw           bool
		reason         string
		moves          string
		started, ended int64
	)

	err := row.Scan(&record.ID, &record.SessionID, &record.Score, &winner, &draw, &reason,
		&moves, &record.FinalBoard, &started, &ended)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan game record: %w", err)
	}

	if err := json.Unmarshal([]byte(moves), &record.Moves); err != nil {
		return nil, fmt.Errorf("failed to unmarshal moves: %w", err)
	}

	record.Result = &engine.Result{Draw: draw, Reason: reason}
	if winner.Valid {
		var seat engine.Seat
		if err := seat.UnmarshalText([]byte(winner.String)); err != nil {
			return nil, fmt.Errorf("failed to decode winner: %w", err)
		}
		record.Result.Winner = &seat
	}

	record.StartedAt = time.UnixMilli(started).UTC()
	record.EndedAt = time.UnixMilli(ended).UTC()

	return &record, nil
}
