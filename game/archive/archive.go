package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prajjwaltripathi07/chess/game/engine"
)

var (
	ErrRecordNotFound = errors.New("game record not found")
	ErrInvalidRecord  = errors.New("invalid game record")
)

// Archive stores finished games. It never holds live sessions.
type Archive interface {
	// Save stores a finished game
	Save(ctx context.Context, record *Record) error

	// Load retrieves a finished game by record ID
	Load(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records, most recently finished first.
	// A limit of zero or less returns everything.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Close releases the underlying storage
	Close() error
}

// Record is the archived form of one finished game
type Record struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Score      string         `json:"score"`
	Result     *engine.Result `json:"result"`
	Moves      []string       `json:"moves"`
	FinalBoard string         `json:"final_board"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    time.Time      `json:"ended_at"`
}

// NewRecord builds a record with a fresh ID
func NewRecord(sessionID string, result *engine.Result, moves []string, finalBoard string, startedAt, endedAt time.Time) *Record {
	return &Record{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Score:      result.String(),
		Result:     result,
		Moves:      moves,
		FinalBoard: finalBoard,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
	}
}

func (r *Record) validate() error {
	if r == nil {
		return fmt.Errorf("%w: record cannot be nil", ErrInvalidRecord)
	}
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("%w: bad id: %v", ErrInvalidRecord, err)
	}
	if r.Result == nil {
		return fmt.Errorf("%w: record has no result", ErrInvalidRecord)
	}
	return nil
}
