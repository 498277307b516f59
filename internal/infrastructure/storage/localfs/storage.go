package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Storage keeps incoming files awaiting ingestion and moves them into
// a processed directory once indexed.
type Storage struct {
	incomingDir  string
	processedDir string
}

func New(incomingDir, processedDir string) (*Storage, error) {
	if incomingDir == "" {
		incomingDir = "./data/incoming"
	}
	if processedDir == "" {
		processedDir = "./data/processed"
	}
	for _, dir := range []string{incomingDir, processedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &Storage{incomingDir: incomingDir, processedDir: processedDir}, nil
}

func (s *Storage) SaveIncoming(_ context.Context, name string, data io.Reader) error {
	path := filepath.Join(s.incomingDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create incoming file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write incoming file: %w", err)
	}
	return nil
}

func (s *Storage) IncomingPath(name string) string {
	return filepath.Join(s.incomingDir, name)
}

// ListIncoming returns the names of regular files waiting in the
// incoming directory, sorted for deterministic batch runs.
func (s *Storage) ListIncoming(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.incomingDir)
	if err != nil {
		return nil, fmt.Errorf("read incoming dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Storage) MoveToProcessed(_ context.Context, name string) error {
	src := filepath.Join(s.incomingDir, name)
	dst := filepath.Join(s.processedDir, name)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move to processed: %w", err)
	}
	return nil
}
