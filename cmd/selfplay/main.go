// Command selfplay connects pairs of bots to a running chess relay and has
// them play random legal moves against each other. It is a smoke test for
// pairing, turn order and game endings.
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "selfplay",
		Usage: "Play random games against a chess relay",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "ws://localhost:3000/ws", Usage: "Relay WebSocket URL"},
			&cli.IntFlag{Name: "games", Value: 1, Usage: "Number of games to play at once"},
			&cli.IntFlag{Name: "max-plies", Value: 300, Usage: "Stop a game after this many plies (0 for no limit)"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "Random seed"},
			&cli.BoolFlag{Name: "debug", Usage: "Log every move"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := zap.NewNop()
			if cmd.Bool("debug") {
				var err error
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}
			defer logger.Sync()

			reports, err := run(ctx, options{
				url:      cmd.String("url"),
				games:    int(cmd.Int("games")),
				maxPlies: int(cmd.Int("max-plies")),
				seed:     int64(cmd.Int("seed")),
			}, logger)
			printReports(os.Stdout, reports)
			return err
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	url      string
	games    int
	maxPlies int
	seed     int64
}

// run dials both players of every game before any moves are made, so the
// relay pairs them in dial order, then plays all games concurrently. It
// returns the first seat's report for each game.
func run(ctx context.Context, opts options, logger *zap.Logger) ([]*Report, error) {
	if opts.games < 1 {
		opts.games = 1
	}

	players := make([]*Player, 0, 2*opts.games)
	defer func() {
		for _, p := range players {
			p.Close()
		}
	}()

	for i := 0; i < 2*opts.games; i++ {
		rng := rand.New(rand.NewSource(opts.seed + int64(i)))
		p, err := Dial(ctx, opts.url, rng, opts.maxPlies, logger.With(zap.Int("player", i)))
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}

	reports := make([]*Report, len(players))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range players {
		g.Go(func() error {
			report, err := p.Play(gctx)
			reports[i] = report
			return err
		})
	}
	err := g.Wait()

	games := make([]*Report, 0, opts.games)
	for i := 0; i < len(reports); i += 2 {
		if reports[i] != nil {
			games = append(games, reports[i])
		}
	}
	return games, err
}

func printReports(w io.Writer, reports []*Report) {
	for _, r := range reports {
		status := r.Score
		if r.Reason != "" {
			status += " by " + r.Reason
		}
		if r.Capped {
			status = "stopped at ply cap"
		}
		fmt.Fprintf(w, "%s: %s after %d plies\n", r.SessionID, status, r.Plies)
	}
}
