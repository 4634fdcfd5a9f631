package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScanFolder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":     "cat cat dog",
		"b.csv":     "cat,bird\n",
		"c.bin":     "cat cat cat",
		"Upper.TXT": "cat",
		"sub/a.txt": "cat cat cat cat",
		"z/bad.pdf": "not really a pdf, cat",
	})

	var stages []string
	s := NewScanner(nil, nil)
	s.OnProgress = func(stage string, processed, total int, path string) {
		stages = append(stages, stage)
	}

	result, err := s.ScanFolder(context.Background(), root, "cat")
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}

	want := []struct {
		name   string
		count  int
		failed bool
	}{
		{"a.txt", 2, false},
		{"b.csv", 1, false},
		{"bad.pdf", 0, true},
	}
	if len(result.Records) != len(want) {
		t.Fatalf("got %d records (%+v), want %d", len(result.Records), result.Records, len(want))
	}
	for i, w := range want {
		rec := result.Records[i]
		if rec.Name != w.name || rec.Count != w.count || rec.Failed() != w.failed {
			t.Errorf("record %d = {%s %d failed=%v}, want {%s %d failed=%v}", i, rec.Name, rec.Count, rec.Failed(), w.name, w.count, w.failed)
		}
	}

	if result.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", result.TotalCount)
	}
	if len(result.Duplicates) != 1 || filepath.Base(filepath.Dir(result.Duplicates[0])) != "sub" {
		t.Errorf("Duplicates = %v, want [sub/a.txt]", result.Duplicates)
	}
	if len(result.Failed()) != 1 {
		t.Errorf("Failed() = %d records, want 1", len(result.Failed()))
	}
	if len(stages) == 0 || stages[len(stages)-1] != "counting" {
		t.Errorf("progress stages = %v", stages)
	}
}

func TestScanFolderDeduplicatesAcrossDirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"one/notes.txt": "cat",
		"two/notes.txt": "cat cat",
	})

	result, err := NewScanner(nil, nil).ScanFolder(context.Background(), root, "cat")
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("records = %+v, want exactly one", result.Records)
	}
	if result.Records[0].Count != 1 || result.TotalCount != 1 {
		t.Errorf("first occurrence should win: %+v total=%d", result.Records[0], result.TotalCount)
	}
}

func TestScanFolderIgnoresUnsupported(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"data.bin": "cat",
		"x.pdf.gz": "cat",
	})

	result, err := NewScanner(nil, nil).ScanFolder(context.Background(), root, "cat")
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}
	if len(result.Records) != 0 || result.TotalCount != 0 {
		t.Errorf("unsupported files counted: %+v", result)
	}
}

func TestScanFolderZeroCountStillRecorded(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"empty.txt": ""})

	result, err := NewScanner(nil, nil).ScanFolder(context.Background(), root, "cat")
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}
	if len(result.Records) != 1 || result.Records[0].Count != 0 || result.Records[0].Failed() {
		t.Errorf("records = %+v", result.Records)
	}
}

func TestScanFolderMissingRoot(t *testing.T) {
	_, err := NewScanner(nil, nil).ScanFolder(context.Background(), filepath.Join(t.TempDir(), "nope"), "cat")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not exist", err)
	}
}

func TestScanFolderCancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "cat"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewScanner(nil, nil).ScanFolder(ctx, root, "cat"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
