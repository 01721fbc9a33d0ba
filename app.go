package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/prajjwaltripathi07/chess/api"
	"github.com/prajjwaltripathi07/chess/game/archive"
	"github.com/prajjwaltripathi07/chess/game/config"
	"github.com/prajjwaltripathi07/chess/game/engine"
	"github.com/prajjwaltripathi07/chess/game/service"
	"github.com/prajjwaltripathi07/chess/game/session"
	"github.com/prajjwaltripathi07/chess/transport/mcp"
	"github.com/prajjwaltripathi07/chess/transport/websocket"
)

// application holds the wired server components
type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	archive archive.Archive

	registry *session.Registry
	gateway  *service.Gateway
	hub      *websocket.Hub
	service  service.GameService
}

// newApplication builds every component from cfg. The caller runs the hub
// and must call close.
func newApplication(cfg *config.Config, logger *zap.Logger) (*application, error) {
	store, err := openArchive(cfg.Archive)
	if err != nil {
		return nil, err
	}

	registry := session.NewRegistry(engine.NewChess(),
		session.WithObservers(cfg.Game.Observers))

	gateway := service.NewGateway(registry,
		service.WithArchive(store),
		service.WithDisconnectPolicy(cfg.Policy()),
		service.WithMaxChatLength(cfg.Game.MaxChatLength),
		service.WithLogger(logger.Named("gateway")),
	)

	return &application{
		cfg:      cfg,
		logger:   logger,
		archive:  store,
		registry: registry,
		gateway:  gateway,
		hub:      websocket.NewHub(gateway, cfg.WebSocket, logger.Named("hub")),
		service:  service.NewGameService(registry, gateway, store),
	}, nil
}

// openArchive returns nil when archiving is disabled
func openArchive(cfg config.ArchiveConfig) (archive.Archive, error) {
	switch cfg.Driver {
	case config.ArchiveFile:
		fa, err := archive.NewFileArchive(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file archive: %w", err)
		}
		return fa, nil
	case config.ArchiveSQLite:
		sa, err := archive.NewSQLiteArchive(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite archive: %w", err)
		}
		return sa, nil
	case config.ArchiveNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}

// handler returns the REST API and WebSocket routes plus an /mcp endpoint
// whose tools call the API at baseURL
func (a *application) handler(baseURL string) http.Handler {
	apiOpts := []api.Option{api.WithLogger(a.logger.Named("api"))}
	if a.cfg.HTTP.StaticDir != "" {
		apiOpts = append(apiOpts, api.WithStaticDir(a.cfg.HTTP.StaticDir))
	}
	apiServer := api.NewServer(a.service, a.hub, apiOpts...)

	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpClient.HandleHTTP)
	return mainRouter
}

// close flushes pending archive writes and releases the archive
func (a *application) close(ctx context.Context) error {
	err := a.gateway.Wait(ctx)
	if a.archive != nil {
		err = multierr.Append(err, a.archive.Close())
	}
	return err
}
