package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStringLiterals(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		max    int
		want   string
	}{
		{"simple", "BT /F1 12 Tf (Hello) Tj ET", 100, "Hello "},
		{"nested", "(a (b) c) Tj", 100, "a (b) c "},
		{"escaped", `(say \(hi\)) Tj`, 100, "say (hi) "},
		{"capped", "(abcdef) Tj", 3, "abc"},
		{"no literals", "q 1 0 0 1 0 0 cm Q", 100, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stringLiterals(tt.stream, tt.max); got != tt.want {
				t.Errorf("stringLiterals() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeSpace(t *testing.T) {
	got := normalizeSpace("cat\x00\x01  dog\t\n中文")
	if got != "cat dog 中文" {
		t.Errorf("normalizeSpace() = %q", got)
	}
	if strings.Contains(normalizeSpace("a�b"), "�") {
		t.Error("replacement rune should be dropped")
	}
}

func TestExtractPagesRejectsGarbage(t *testing.T) {
	if _, err := ExtractPages(strings.NewReader("not a pdf at all"), nil, 0); err == nil {
		t.Error("expected an error for non-PDF input")
	}
}

func TestPageNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"doc_Content_page_1.txt", 1, true},
		{"doc_Content_page_10.txt", 10, true},
		{"doc_Content_page_0.txt", 0, false},
		{"notes.txt", 0, false},
		{"doc_Content_page_x.txt", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pageNumber(tt.name)
			if got != tt.want || ok != tt.ok {
				t.Errorf("pageNumber(%q) = %d, %v; want %d, %v", tt.name, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestReadPagesKeysByPageNumber(t *testing.T) {
	dir := t.TempDir()
	// Lexical order of these names is 1, 10, 2
	for n, stream := range map[int]string{
		1:  "BT (one) Tj ET",
		2:  "BT (two) Tj ET",
		10: "BT (ten) Tj ET",
	} {
		name := filepath.Join(dir, fmt.Sprintf("doc_Content_page_%d.txt", n))
		if err := os.WriteFile(name, []byte(stream), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	texts, err := readPages(dir, DefaultPerPageCap)
	if err != nil {
		t.Fatalf("readPages: %v", err)
	}
	want := map[int]string{1: "one", 2: "two", 10: "ten"}
	if len(texts) != len(want) {
		t.Fatalf("texts = %v", texts)
	}
	for n, w := range want {
		if texts[n] != w {
			t.Errorf("page %d = %q, want %q", n, texts[n], w)
		}
	}
}
