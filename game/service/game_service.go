package service

import (
	"context"
	"errors"

	"github.com/prajjwaltripathi07/chess/game/archive"
	"github.com/prajjwaltripathi07/chess/game/session"
)

// ErrArchiveDisabled is returned by archive queries when no archive is configured
var ErrArchiveDisabled = errors.New("game archive is disabled")

// GameService is the read-only view used by the REST API and MCP tools.
// Play happens only over the gateway.
type GameService interface {
	// Live sessions
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	GetGameState(ctx context.Context, sessionID string) (*GameState, error)

	// Finished games
	ListGames(ctx context.Context, limit int) ([]*archive.Record, error)
	GetGame(ctx context.Context, gameID string) (*archive.Record, error)

	Stats(ctx context.Context) (*Stats, error)
}

type gameService struct {
	registry *session.Registry
	gateway  *Gateway
	archive  archive.Archive
}

// NewGameService creates the read-only service. arch may be nil.
func NewGameService(registry *session.Registry, gateway *Gateway, arch archive.Archive) GameService {
	return &gameService{
		registry: registry,
		gateway:  gateway,
		archive:  arch,
	}
}

func (s *gameService) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.registry.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionInfo(sess.Snapshot()))
	}
	return result, nil
}

func (s *gameService) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.registry.Lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return sessionInfo(sess.Snapshot()), nil
}

func (s *gameService) GetGameState(ctx context.Context, sessionID string) (*GameState, error) {
	sess, err := s.registry.Lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return gameState(sess.Snapshot()), nil
}

func (s *gameService) ListGames(ctx context.Context, limit int) ([]*archive.Record, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.List(ctx, limit)
}

func (s *gameService) GetGame(ctx context.Context, gameID string) (*archive.Record, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.Load(ctx, gameID)
}

func (s *gameService) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Sessions:         s.registry.Count(),
		ObserversEnabled: s.registry.ObserversEnabled(),
		ArchiveEnabled:   s.archive != nil,
	}
	if s.gateway != nil {
		stats.Connections = s.gateway.ConnectionCount()
		stats.DisconnectPolicy = s.gateway.policy
	}
	return stats, nil
}
