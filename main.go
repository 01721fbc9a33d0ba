// Command chess-relay pairs anonymous players into two-seat chess sessions
// and relays their moves and chat over WebSocket.
//
// It supports three commands:
//  1. "serve" (default) runs the HTTP server exposing the REST API, WebSocket and an /mcp endpoint
//  2. "stdio-mcp" runs an MCP stdio server against a running API, or an internal one if none answers
//  3. "check-config" prints the effective configuration and validates it
//
// Settings come from defaults, then an optional YAML file, then CHESS_*
// environment variables (a .env file is loaded first), then explicit flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/prajjwaltripathi07/chess/game/config"
	"github.com/prajjwaltripathi07/chess/transport/mcp"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Chess Relay Server"
)

// shutdownTimeout bounds graceful shutdown
const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "chess-relay",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 3000, Usage: "HTTP server port"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.StringFlag{Name: "disconnect-policy", Value: "forfeit", Usage: "What happens when a player leaves: forfeit, reset or release"},
			&cli.BoolFlag{Name: "observers", Usage: "Allow read-only observers via /ws?observe=<session>"},
			&cli.StringFlag{Name: "archive-driver", Value: config.ArchiveNone, Usage: "Finished game archive: none, file or sqlite"},
			&cli.StringFlag{Name: "archive-path", Usage: "Archive directory (file) or database path (sqlite)"},
			&cli.StringFlag{Name: "static-dir", Usage: "Serve a web client from this directory"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (or use NGROK_AUTHTOKEN env var)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)"},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  runServe,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Usage: "REST API to proxy (default: probe host:port, else start an internal server)"},
				},
				Action: runStdioMCP,
			},
			{
				Name:   "check-config",
				Usage:  "Print the effective configuration and validate it",
				Action: runCheckConfig,
			},
		},
	}
}

// loadConfig layers flags that were explicitly set over file and environment
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		cfg.HTTP.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		port, err := cast.ToIntE(cmd.Value("port"))
		if err != nil {
			return nil, fmt.Errorf("%w: port: %v", config.ErrInvalidConfig, err)
		}
		cfg.HTTP.Port = port
	}
	if cmd.IsSet("disconnect-policy") {
		cfg.Game.DisconnectPolicy = cmd.String("disconnect-policy")
	}
	if cmd.IsSet("observers") {
		cfg.Game.Observers = cmd.Bool("observers")
	}
	if cmd.IsSet("archive-driver") {
		cfg.Archive.Driver = cmd.String("archive-driver")
	}
	if cmd.IsSet("archive-path") {
		cfg.Archive.Path = cmd.String("archive-path")
	}
	if cmd.IsSet("static-dir") {
		cfg.HTTP.StaticDir = cmd.String("static-dir")
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	return cfg, cfg.Validate()
}

// newLogger returns a production logger, or a development one with debug
func newLogger(debug bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg = zap.NewDevelopmentConfig()
	}
	return zcfg.Build()
}

// runServe starts the HTTP server with REST API, WebSocket hub, and an /mcp
// proxy endpoint. If ngrok is enabled it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	app, err := newApplication(cfg, logger)
	if err != nil {
		return err
	}

	addr := cfg.Addr()
	handler := app.handler("http://" + addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	logger.Info("starting",
		zap.String("app", AppName),
		zap.String("version", Version),
		zap.String("addr", addr),
		zap.String("disconnect_policy", cfg.Game.DisconnectPolicy),
		zap.Bool("observers", cfg.Game.Observers),
		zap.String("archive", cfg.Archive.Driver))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("HTTP server listening",
			zap.String("rest", "http://"+addr+"/api"),
			zap.String("websocket", "ws://"+addr+"/ws"),
			zap.String("mcp", "http://"+addr+"/mcp"))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	if cfg.Ngrok.Enabled {
		g.Go(func() error {
			return runNgrok(gctx, cfg.Ngrok, handler, logger.Named("ngrok"))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = multierr.Append(err, app.close(closeCtx))

	logger.Info("server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, cfg config.NgrokConfig, handler http.Handler, logger *zap.Logger) error {
	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		logger.Info("using custom ngrok domain", zap.String("domain", cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		// The local server keeps running without a tunnel
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return nil
	}

	publicURL := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", publicURL),
		zap.String("websocket", strings.Replace(publicURL, "https://", "wss://", 1)+"/ws"))

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		tunnelServer.Close()
	}()

	if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
	return nil
}

// runStdioMCP runs an MCP stdio server. Without --api-url it tries the API
// at host:port; if that does not answer, it starts an internal server on a
// random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	baseURL := cmd.String("api-url")
	if baseURL == "" {
		external := "http://" + cfg.Addr()
		if apiAvailable(ctx, external) {
			logger.Info("using external API server", zap.String("url", external))
			baseURL = external
		}
	}

	if baseURL == "" {
		internalURL, shutdown, err := startInternalServer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer shutdown()
		baseURL = internalURL
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready", zap.String("api", baseURL))

	return server.ServeStdio(mcpClient.GetMCPServer())
}

// apiAvailable reports whether a chess relay API answers at baseURL
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// startInternalServer serves the API on a random loopback port
func startInternalServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (string, func(), error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}

	app, err := newApplication(cfg, logger)
	if err != nil {
		listener.Close()
		return "", nil, err
	}

	baseURL := "http://" + listener.Addr().String()
	hubCtx, cancelHub := context.WithCancel(ctx)
	hubStopped := make(chan struct{})
	go func() {
		defer close(hubStopped)
		app.hub.Run(hubCtx)
	}()

	httpServer := &http.Server{Handler: app.handler(baseURL)}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("internal HTTP server error", zap.Error(err))
		}
	}()

	logger.Info("started internal HTTP server for MCP stdio", zap.String("url", baseURL))

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		cancelHub()

		// The hub unbinds its clients on the way out; archive only after that
		select {
		case <-hubStopped:
		case <-shutdownCtx.Done():
			err = multierr.Append(err, shutdownCtx.Err())
		}
		err = multierr.Append(err, app.close(shutdownCtx))
		if err != nil {
			logger.Warn("internal server shutdown", zap.Error(err))
		}
	}
	return baseURL, shutdown, nil
}

// runCheckConfig prints the effective configuration with secrets masked
func runCheckConfig(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if cfg == nil {
		return err
	}

	out, yerr := cfg.YAML()
	if yerr != nil {
		return yerr
	}

	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprint(w, out)

	if err != nil {
		return err
	}
	fmt.Fprintln(w, "# configuration is valid")
	return nil
}
