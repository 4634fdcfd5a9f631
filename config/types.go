package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind identifies a supported document format
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindTXT  Kind = "txt"
	KindCSV  Kind = "csv"
	KindDOCX Kind = "docx"
)

// DocumentTypes maps the exact (case-sensitive) extension to its kind.
// Files with any other extension are ignored by the scanner.
var DocumentTypes = map[string]Kind{
	".pdf":  KindPDF,
	".txt":  KindTXT,
	".csv":  KindCSV,
	".docx": KindDOCX,
}

// ArchiveKind identifies a supported upload container
type ArchiveKind string

const (
	ArchiveZIP ArchiveKind = "zip"
	ArchiveRAR ArchiveKind = "rar"
)

// ErrUnsupportedArchive is returned for uploads that are neither .zip nor .rar
var ErrUnsupportedArchive = errors.New("unsupported archive type")

var archiveTypes = map[string]ArchiveKind{
	".zip": ArchiveZIP,
	".rar": ArchiveRAR,
}

// KindForFile returns the document kind for a bare or full filename
func KindForFile(filename string) (Kind, bool) {
	kind, ok := DocumentTypes[filepath.Ext(filename)]
	return kind, ok
}

// ArchiveKindForFile detects the archive type from the upload's filename suffix
func ArchiveKindForFile(filename string) (ArchiveKind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if kind, ok := archiveTypes[ext]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedArchive, filename)
}

// ArchiveExtensions lists the accepted upload suffixes (with dot)
func ArchiveExtensions() []string {
	return []string{".zip", ".rar"}
}

// GetFileTypeDescription returns a human-readable description of scanned file types
func GetFileTypeDescription() string {
	return "documents (pdf, txt, csv, docx)"
}
