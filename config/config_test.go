package config

import (
	"errors"
	"testing"
)

func TestKindForFile(t *testing.T) {
	tests := []struct {
		name   string
		want   Kind
		wantOK bool
	}{
		{"report.pdf", KindPDF, true},
		{"notes.txt", KindTXT, true},
		{"dir/data.csv", KindCSV, true},
		{"letter.docx", KindDOCX, true},
		{"SCAN.PDF", "", false},
		{"data.bin", "", false},
		{"README", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := KindForFile(tt.name)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("KindForFile(%q) = %q, %v, want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestArchiveKindForFile(t *testing.T) {
	if k, err := ArchiveKindForFile("docs.ZIP"); err != nil || k != ArchiveZIP {
		t.Errorf("docs.ZIP = %q, %v", k, err)
	}
	if k, err := ArchiveKindForFile("docs.rar"); err != nil || k != ArchiveRAR {
		t.Errorf("docs.rar = %q, %v", k, err)
	}
	if _, err := ArchiveKindForFile("docs.7z"); !errors.Is(err, ErrUnsupportedArchive) {
		t.Errorf("docs.7z err = %v, want ErrUnsupportedArchive", err)
	}
}

func TestFromLookup(t *testing.T) {
	env := map[string]string{
		EnvAddr:              "127.0.0.1:9000",
		EnvMaxUploadMB:       "8",
		EnvMaxExtractMB:      "16",
		EnvLogLevel:          "DEBUG",
		EnvFilenameEncodings: " big5 , gbk,",
	}
	s, err := FromLookup(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	if s.Addr != "127.0.0.1:9000" {
		t.Errorf("Addr = %q", s.Addr)
	}
	if s.MaxUploadBytes() != 8<<20 {
		t.Errorf("MaxUploadBytes = %d", s.MaxUploadBytes())
	}
	if s.MaxExtractBytes() != 16<<20 {
		t.Errorf("MaxExtractBytes = %d", s.MaxExtractBytes())
	}
	if s.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", s.LogLevel)
	}
	if len(s.FilenameEncodings) != 2 || s.FilenameEncodings[0] != "big5" || s.FilenameEncodings[1] != "gbk" {
		t.Errorf("FilenameEncodings = %v", s.FilenameEncodings)
	}
	if s.WorkspaceRoot == "" {
		t.Error("WorkspaceRoot should default to the temp dir")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero upload", func(s *Settings) { s.MaxUploadMB = 0 }},
		{"zero extract", func(s *Settings) { s.MaxExtractMB = 0 }},
		{"bad level", func(s *Settings) { s.LogLevel = "loud" }},
		{"bad encoding", func(s *Settings) { s.FilenameEncodings = []string{"klingon"} }},
	}

	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
