package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// FileArchive implements Archive with one JSON file per game
type FileArchive struct {
	dir string
}

// NewFileArchive creates a file-based archive rooted at dir
func NewFileArchive(dir string) (*FileArchive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &FileArchive{dir: dir}, nil
}

// Save writes the record to <dir>/<id>.json
func (fa *FileArchive) Save(ctx context.Context, record *Record) error {
	if err := record.validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal game record: %w", err)
	}

	if err := os.WriteFile(fa.path(record.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write game record: %w", err)
	}

	return nil
}

// Load reads a single record
func (fa *FileArchive) Load(ctx context.Context, id string) (*Record, error) {
	// Only UUIDs are valid names, which also keeps lookups inside dir
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRecordNotFound
	}

	data, err := os.ReadFile(fa.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to read game record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game record: %w", err)
	}

	return &record, nil
}

// List reads every record in the directory
func (fa *FileArchive) List(ctx context.Context, limit int) ([]*Record, error) {
	entries, err := os.ReadDir(fa.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	records := make([]*Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := fa.Load(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// Skip files that are not game records
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].EndedAt.After(records[j].EndedAt)
	})

	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	return records, nil
}

// Close is a no-op for file storage
func (fa *FileArchive) Close() error {
	return nil
}

func (fa *FileArchive) path(id string) string {
	return filepath.Join(fa.dir, id+".json")
}
