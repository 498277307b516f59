package localfs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newStorage(t *testing.T) *Storage {
	t.Helper()
	base := t.TempDir()
	s, err := New(filepath.Join(base, "incoming"), filepath.Join(base, "processed"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSaveAndListIncoming(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	for _, name := range []string{"b.txt", "a.txt"} {
		if err := s.SaveIncoming(ctx, name, bytes.NewReader([]byte("content of "+name))); err != nil {
			t.Fatalf("SaveIncoming(%s): %v", name, err)
		}
	}

	names, err := s.ListIncoming(ctx)
	if err != nil {
		t.Fatalf("ListIncoming: %v", err)
	}
	if len(names) != 2 || names[0] != "a.txt" || names[1] != "b.txt" {
		t.Fatalf("expected sorted names, got %v", names)
	}

	raw, err := os.ReadFile(s.IncomingPath("a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "content of a.txt" {
		t.Errorf("unexpected content %q", raw)
	}
}

func TestMoveToProcessed(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	if err := s.SaveIncoming(ctx, "done.txt", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatal(err)
	}
	if err := s.MoveToProcessed(ctx, "done.txt"); err != nil {
		t.Fatalf("MoveToProcessed: %v", err)
	}

	names, err := s.ListIncoming(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty incoming dir, got %v", names)
	}
	if _, err := os.Stat(filepath.Join(s.processedDir, "done.txt")); err != nil {
		t.Errorf("processed file missing: %v", err)
	}
}

func TestMoveMissingFile(t *testing.T) {
	s := newStorage(t)
	if err := s.MoveToProcessed(context.Background(), "absent.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestListSkipsDirectories(t *testing.T) {
	s := newStorage(t)
	if err := os.Mkdir(filepath.Join(s.incomingDir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	names, err := s.ListIncoming(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Fatalf("directories must be skipped, got %v", names)
	}
}
