package search

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/charmbracelet/log"

	"count-words/config"
)

// FileRecord is the outcome for one scanned document
type FileRecord struct {
	// Name is the bare filename, unique within a ScanResult
	Name  string
	Path  string
	Kind  config.Kind
	Count int
	// Err is set when the document could not be read; Count is then 0
	Err error
}

// Failed reports whether extraction failed for this file
func (r FileRecord) Failed() bool {
	return r.Err != nil
}

// ScanResult aggregates the counts of one scan
type ScanResult struct {
	Term       string
	TotalCount int
	// Records are in visiting order
	Records []FileRecord
	// Duplicates are paths skipped because their bare name was already seen
	Duplicates []string
}

// Failed returns the records whose extraction failed
func (r *ScanResult) Failed() []FileRecord {
	var out []FileRecord
	for _, rec := range r.Records {
		if rec.Failed() {
			out = append(out, rec)
		}
	}
	return out
}

// candidate is a supported file selected during discovery
type candidate struct {
	name string
	path string
	kind config.Kind
}

// Scanner walks an extracted tree and counts a term in every supported document
type Scanner struct {
	registry *ExtractorRegistry
	logger   *log.Logger

	// Optional progress callback (nil if unused)
	OnProgress ProgressFunc
}

// NewScanner creates a scanner; nil arguments select defaults
func NewScanner(registry *ExtractorRegistry, logger *log.Logger) *Scanner {
	if registry == nil {
		registry = NewExtractorRegistry()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Scanner{registry: registry, logger: logger}
}

// ScanFolder walks root in lexical order. The first file with a given bare
// name wins; later files with the same name are skipped. Only the exact
// extensions in config.DocumentTypes are read, everything else is ignored.
func (s *Scanner) ScanFolder(ctx context.Context, root, term string) (*ScanResult, error) {
	result := &ScanResult{Term: term, Records: []FileRecord{}}

	candidates, err := s.discover(ctx, root, result)
	if err != nil {
		return nil, err
	}

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.progress("counting", i+1, len(candidates), c.path)

		rec := FileRecord{Name: c.name, Path: c.path, Kind: c.kind}
		text, err := s.registry.ExtractFile(c.path, c.kind)
		if err != nil {
			rec.Err = err
			s.logger.Warn("could not read document", "file", c.name, "kind", c.kind, "err", err)
		} else {
			rec.Count = CountOccurrences(text, term)
		}

		result.TotalCount += rec.Count
		result.Records = append(result.Records, rec)
	}

	s.logger.Debug("scan finished", "root", root, "files", len(result.Records), "total", result.TotalCount, "duplicates", len(result.Duplicates))
	return result, nil
}

// discover lists the files to count, applying de-duplication and the
// extension filter
func (s *Scanner) discover(ctx context.Context, root string, result *ScanResult) ([]candidate, error) {
	seen := make(map[string]bool)
	var candidates []candidate

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.logger.Warn("skipping unreadable path", "path", path, "err", err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		name := d.Name()
		kind, supported := config.KindForFile(name)
		if seen[name] {
			if supported {
				result.Duplicates = append(result.Duplicates, path)
				s.logger.Debug("skipping duplicate filename", "file", name, "path", path)
			}
			return nil
		}
		seen[name] = true

		if !supported {
			return nil
		}
		candidates = append(candidates, candidate{name: name, path: path, kind: kind})
		s.progress("discovery", len(candidates), 0, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return candidates, nil
}

func (s *Scanner) progress(stage string, processed, total int, path string) {
	if s.OnProgress != nil {
		s.OnProgress(stage, processed, total, path)
	}
}
