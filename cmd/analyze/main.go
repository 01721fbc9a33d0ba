// Command analyze prints a human-readable summary of archived games: how
// many ended in each way, how long they ran and which first moves were
// played most often.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/prajjwaltripathi07/chess/game/archive"
	"github.com/prajjwaltripathi07/chess/game/config"
	"github.com/prajjwaltripathi07/chess/game/engine"
)

// Summary aggregates a set of archived games
type Summary struct {
	Games       int
	WhiteWins   int
	BlackWins   int
	Draws       int
	Reasons     map[string]int
	TotalPlies  int
	Longest     *archive.Record
	Openings    map[string]int
	TotalLength time.Duration
}

func main() {
	cmd := &cli.Command{
		Name:  "analyze",
		Usage: "Summarize archived chess games",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "driver", Value: config.ArchiveFile, Usage: "Archive driver: file or sqlite"},
			&cli.StringFlag{Name: "path", Value: "games", Usage: "Archive directory (file) or database path (sqlite)"},
			&cli.IntFlag{Name: "limit", Value: 0, Usage: "Only the most recent N games (0 for all)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := openArchive(cmd.String("driver"), cmd.String("path"))
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(ctx, int(cmd.Int("limit")))
			if err != nil {
				return err
			}

			printSummary(os.Stdout, summarize(records))
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openArchive(driver, path string) (archive.Archive, error) {
	switch driver {
	case config.ArchiveFile:
		return archive.NewFileArchive(path)
	case config.ArchiveSQLite:
		return archive.NewSQLiteArchive(path)
	default:
		return nil, fmt.Errorf("unknown archive driver %q", driver)
	}
}

func summarize(records []*archive.Record) *Summary {
	s := &Summary{
		Reasons:  make(map[string]int),
		Openings: make(map[string]int),
	}

	for _, r := range records {
		s.Games++
		s.TotalPlies += len(r.Moves)

		if r.Result != nil {
			s.Reasons[r.Result.Reason]++
			switch {
			case r.Result.Draw:
				s.Draws++
			case r.Result.Winner != nil && *r.Result.Winner == engine.First:
				s.WhiteWins++
			case r.Result.Winner != nil:
				s.BlackWins++
			}
		}

		if len(r.Moves) > 0 {
			s.Openings[r.Moves[0]]++
		}
		if s.Longest == nil || len(r.Moves) > len(s.Longest.Moves) {
			s.Longest = r
		}
		if !r.StartedAt.IsZero() && r.EndedAt.After(r.StartedAt) {
			s.TotalLength += r.EndedAt.Sub(r.StartedAt)
		}
	}

	return s
}

// ranked returns map keys by descending count, then name
func ranked(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func printSummary(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "Games: %d\n", s.Games)
	if s.Games == 0 {
		return
	}

	fmt.Fprintf(w, "White wins: %d\nBlack wins: %d\nDraws: %d\n", s.WhiteWins, s.BlackWins, s.Draws)
	fmt.Fprintf(w, "Average plies: %.1f\n", float64(s.TotalPlies)/float64(s.Games))
	fmt.Fprintf(w, "Average duration: %s\n", (s.TotalLength / time.Duration(s.Games)).Round(time.Second))

	fmt.Fprintln(w, "\nEndings:")
	for _, reason := range ranked(s.Reasons) {
		fmt.Fprintf(w, "  %-24s %d\n", reason, s.Reasons[reason])
	}

	if len(s.Openings) > 0 {
		fmt.Fprintln(w, "\nFirst moves:")
		for i, move := range ranked(s.Openings) {
			if i == 5 {
				fmt.Fprintf(w, "  ... and %d more\n", len(s.Openings)-5)
				break
			}
			fmt.Fprintf(w, "  %-6s %d\n", move, s.Openings[move])
		}
	}

	if s.Longest != nil {
		fmt.Fprintf(w, "\nLongest game: %s (%d plies, %s, %s)\n",
			s.Longest.ID, len(s.Longest.Moves), s.Longest.Score, s.Longest.SessionID)
	}
}
