package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajjwaltripathi07/chess/game/engine"
)

func testRecord(sessionID string, ended time.Time, result *engine.Result) *Record {
	return NewRecord(sessionID, result,
		[]string{"f2f3", "e7e5", "g2g4", "d8h4"},
		"rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
		ended.Add(-time.Minute), ended)
}

func archives(t *testing.T) map[string]Archive {
	t.Helper()

	files, err := NewFileArchive(filepath.Join(t.TempDir(), "games"))
	require.NoError(t, err)

	db, err := NewSQLiteArchive(filepath.Join(t.TempDir(), "games.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, files.Close())
		assert.NoError(t, db.Close())
	})

	return map[string]Archive{"file": files, "sqlite": db}
}

func TestArchive_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	ended := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			record := testRecord("room-1", ended, engine.WinFor(engine.Second, engine.ReasonCheckmate))
			require.NoError(t, a.Save(ctx, record))

			loaded, err := a.Load(ctx, record.ID)
			require.NoError(t, err)

			assert.Equal(t, record.ID, loaded.ID)
			assert.Equal(t, "room-1", loaded.SessionID)
			assert.Equal(t, "0-1", loaded.Score)
			assert.Equal(t, record.Moves, loaded.Moves)
			assert.Equal(t, record.FinalBoard, loaded.FinalBoard)
			require.NotNil(t, loaded.Result.Winner)
			assert.Equal(t, engine.Second, *loaded.Result.Winner)
			assert.Equal(t, engine.ReasonCheckmate, loaded.Result.Reason)
			assert.True(t, ended.Equal(loaded.EndedAt))
			assert.True(t, ended.Add(-time.Minute).Equal(loaded.StartedAt))
		})
	}
}

func TestArchive_LoadMissing(t *testing.T) {
	ctx := context.Background()
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			_, err := a.Load(ctx, "6f1c1c2e-4d7a-4f5e-9a51-0b8c3f0d2e11")
			assert.ErrorIs(t, err, ErrRecordNotFound)

			_, err = a.Load(ctx, "../../etc/passwd")
			assert.ErrorIs(t, err, ErrRecordNotFound)
		})
	}
}

func TestArchive_List(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			first := testRecord("room-1", base, engine.DrawBy(engine.ReasonStalemate))
			second := testRecord("room-2", base.Add(time.Hour), engine.WinFor(engine.First, engine.ReasonForfeit))
			third := testRecord("room-1", base.Add(2*time.Hour), engine.WinFor(engine.Second, engine.ReasonCheckmate))
			for _, r := range []*Record{second, first, third} {
				require.NoError(t, a.Save(ctx, r))
			}

			all, err := a.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, third.ID, all[0].ID)
			assert.Equal(t, second.ID, all[1].ID)
			assert.Equal(t, first.ID, all[2].ID)
			assert.True(t, all[2].Result.Draw)
			assert.Nil(t, all[2].Result.Winner)
			assert.Equal(t, "1/2-1/2", all[2].Score)

			limited, err := a.List(ctx, 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)
		})
	}
}

func TestArchive_RejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, a.Save(ctx, nil), ErrInvalidRecord)

			noResult := testRecord("room-1", time.Now(), engine.DrawBy(engine.ReasonDraw))
			noResult.Result = nil
			assert.ErrorIs(t, a.Save(ctx, noResult), ErrInvalidRecord)

			badID := testRecord("room-1", time.Now(), engine.DrawBy(engine.ReasonDraw))
			badID.ID = "room-1"
			assert.ErrorIs(t, a.Save(ctx, badID), ErrInvalidRecord)
		})
	}
}

func TestFileArchive_SkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFileArchive(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0755))

	record := testRecord("room-1", time.Now().UTC(), engine.DrawBy(engine.ReasonDraw))
	require.NoError(t, a.Save(context.Background(), record))

	records, err := a.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)
}
