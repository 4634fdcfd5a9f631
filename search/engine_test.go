package search

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"count-words/archive"
	"count-words/config"
)

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	settings := config.Defaults()
	settings.WorkspaceRoot = root
	e, err := NewEngine(settings, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, root
}

func TestEngineRunEndToEnd(t *testing.T) {
	e, root := newTestEngine(t)
	data := zipOf(t, map[string]string{
		"docs/a.txt": "cat cat dog",
		"docs/b.csv": "cat,bird\n",
		"docs/c.bin": "cat",
	})

	report, err := e.RunBytes(context.Background(), "docs.zip", data, "cat")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Result.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", report.Result.TotalCount)
	}
	want := []struct {
		name  string
		count int
	}{{"a.txt", 2}, {"b.csv", 1}}
	if len(report.Result.Records) != len(want) {
		t.Fatalf("records = %+v", report.Result.Records)
	}
	for i, w := range want {
		if got := report.Result.Records[i]; got.Name != w.name || got.Count != w.count {
			t.Errorf("record %d = (%s, %d), want (%s, %d)", i, got.Name, got.Count, w.name, w.count)
		}
	}
	if len(report.Extraction.Folders) != 1 || report.Extraction.Folders[0] != "docs" {
		t.Errorf("Folders = %v, want [docs]", report.Extraction.Folders)
	}

	wantLines := []string{
		`Found "cat" 3 times in total`,
		`File: a.txt, contains "cat" 2 times`,
		`File: b.csv, contains "cat" 1 time`,
	}
	if got := report.String(); got != strings.Join(wantLines, "\n") {
		t.Errorf("String() =\n%s\nwant\n%s", got, strings.Join(wantLines, "\n"))
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace not removed: %v", entries)
	}
}

func TestEngineKeepWorkspace(t *testing.T) {
	e, root := newTestEngine(t)
	e.KeepWorkspace = true

	if _, err := e.RunBytes(context.Background(), "a.zip", zipOf(t, map[string]string{"a.txt": "cat"}), "cat"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "count-words-") {
		t.Errorf("workspace entries = %v, want one count-words-* dir", entries)
	}
}

func TestEngineConcurrentRunsAreIsolated(t *testing.T) {
	e, _ := newTestEngine(t)
	first := zipOf(t, map[string]string{"same.txt": "cat"})
	second := zipOf(t, map[string]string{"same.txt": "cat cat cat"})

	type outcome struct {
		total int
		err   error
	}
	results := make(chan outcome, 2)
	for _, data := range [][]byte{first, second} {
		go func(data []byte) {
			r, err := e.RunBytes(context.Background(), "x.zip", data, "cat")
			if err != nil {
				results <- outcome{err: err}
				return
			}
			results <- outcome{total: r.Result.TotalCount}
		}(data)
	}

	seen := map[int]bool{}
	for range 2 {
		o := <-results
		if o.err != nil {
			t.Fatalf("Run: %v", o.err)
		}
		seen[o.total] = true
	}
	if !seen[1] || !seen[3] {
		t.Errorf("totals = %v, want 1 and 3", seen)
	}
}

func TestEngineRunErrors(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	valid := zipOf(t, map[string]string{"a.txt": "cat"})

	if _, err := e.RunBytes(ctx, "a.zip", valid, ""); !errors.Is(err, ErrEmptyTerm) {
		t.Errorf("empty term err = %v", err)
	}
	if _, err := e.RunBytes(ctx, "a.7z", valid, "cat"); !errors.Is(err, config.ErrUnsupportedArchive) {
		t.Errorf("unsupported err = %v", err)
	}
	if _, err := e.RunBytes(ctx, "a.zip", []byte("garbage"), "cat"); !errors.Is(err, archive.ErrCorruptArchive) {
		t.Errorf("corrupt err = %v", err)
	}
	if _, err := e.RunFile(ctx, filepath.Join(t.TempDir(), "missing.zip"), "cat"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v", err)
	}
}

func TestEngineNoContentReturnsReport(t *testing.T) {
	e, _ := newTestEngine(t)
	data := zipOf(t, map[string]string{"only/dirs/": ""})

	report, err := e.RunBytes(context.Background(), "empty.zip", data, "cat")
	if !errors.Is(err, archive.ErrNoContent) {
		t.Fatalf("err = %v, want ErrNoContent", err)
	}
	if report == nil || report.Extraction == nil {
		t.Fatal("expected a report with the extraction")
	}
	if report.Lines() != nil {
		t.Errorf("Lines() = %v, want nil", report.Lines())
	}
}

func TestEngineRunFile(t *testing.T) {
	e, _ := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "upload.ZIP")
	if err := os.WriteFile(path, zipOf(t, map[string]string{"notes.txt": "cat"}), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := e.RunFile(context.Background(), path, "cat")
	if err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if report.ArchiveName != "upload.ZIP" || report.Result.TotalCount != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}

	if got := formatNumber(1234567); got != "1,234,567" {
		t.Errorf("formatNumber = %q", got)
	}
	if got := times(1); got != "1 time" {
		t.Errorf("times(1) = %q", got)
	}
	if got := times(1500); got != "1,500 times" {
		t.Errorf("times(1500) = %q", got)
	}
}

func TestEngineExtractLimit(t *testing.T) {
	root := t.TempDir()
	settings := config.Defaults()
	settings.WorkspaceRoot = root
	settings.MaxExtractMB = 1
	e, err := NewEngine(settings, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	data := zipOf(t, map[string]string{"zeros.txt": strings.Repeat("0", 2<<20)})
	if _, err := e.RunBytes(context.Background(), "bomb.zip", data, "cat"); !errors.Is(err, archive.ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace left behind: %v", entries)
	}
}
