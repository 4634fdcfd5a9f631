package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"count-words/archive"
	"count-words/config"
)

// ErrEmptyTerm is returned when a run is started without a search word
var ErrEmptyTerm = errors.New("search word is empty")

// ProgressFunc is an optional callback to report progress like: processed, total, path
type ProgressFunc func(stage string, processed, total int, path string)

// Request is one upload plus the word to count
type Request struct {
	// ArchiveName is the uploaded filename; its suffix selects ZIP or RAR
	ArchiveName string
	Archive     io.ReaderAt
	Size        int64
	Term        string
}

// Report is everything a front end needs to render one run
type Report struct {
	ArchiveName string
	Term        string
	Result      *ScanResult
	Extraction  *archive.Extraction
	Elapsed     time.Duration
}

// Lines renders the report as text: the total first, then one line per
// scanned file in scan order.
func (r *Report) Lines() []string {
	if r.Result == nil {
		return nil
	}
	lines := make([]string, 0, len(r.Result.Records)+1)
	lines = append(lines, fmt.Sprintf("Found %q %s in total", r.Term, times(r.Result.TotalCount)))
	for _, rec := range r.Result.Records {
		line := fmt.Sprintf("File: %s, contains %q %s", rec.Name, r.Term, times(rec.Count))
		if rec.Failed() {
			line += fmt.Sprintf(" (unreadable: %v)", rec.Err)
		}
		lines = append(lines, line)
	}
	return lines
}

// String joins Lines with newlines
func (r *Report) String() string {
	return strings.Join(r.Lines(), "\n")
}

func times(n int) string {
	if n == 1 {
		return "1 time"
	}
	return formatNumber(n) + " times"
}

// Engine runs the extract, scan and report pipeline. Every run gets its own
// workspace below WorkspaceRoot, so an Engine may serve concurrent requests.
type Engine struct {
	WorkspaceRoot string
	// KeepWorkspace leaves the extracted tree on disk after a run
	KeepWorkspace bool

	unpacker *archive.Unpacker
	scanner  *Scanner
	logger   *log.Logger
}

// NewEngine wires an engine from settings
func NewEngine(settings config.Settings, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	decoder, err := archive.NewDecoder(settings.FilenameEncodings...)
	if err != nil {
		return nil, err
	}
	unpacker := archive.NewUnpacker(decoder, logger.WithPrefix("unpack"))
	unpacker.MaxBytes = settings.MaxExtractBytes()
	return &Engine{
		WorkspaceRoot: settings.WorkspaceRoot,
		unpacker:      unpacker,
		scanner:       NewScanner(NewExtractorRegistry(), logger.WithPrefix("scan")),
		logger:        logger,
	}, nil
}

// SetProgress installs a progress callback for subsequent runs
func (e *Engine) SetProgress(fn ProgressFunc) {
	e.scanner.OnProgress = fn
}

// Run executes one request. ErrNoContent is returned together with a
// report so callers can still show what was extracted.
func (e *Engine) Run(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()

	if req.Term == "" {
		return nil, ErrEmptyTerm
	}
	kind, err := config.ArchiveKindForFile(req.ArchiveName)
	if err != nil {
		return nil, err
	}

	workspace, err := e.newWorkspace()
	if err != nil {
		return nil, err
	}
	if !e.KeepWorkspace {
		defer func() {
			if err := os.RemoveAll(workspace); err != nil {
				e.logger.Warn("could not remove workspace", "dir", workspace, "err", err)
			}
		}()
	}

	report := &Report{ArchiveName: req.ArchiveName, Term: req.Term}

	e.logger.Info("extracting archive", "archive", req.ArchiveName, "kind", kind, "size", FormatFileSize(req.Size))
	ex, err := e.unpacker.Unpack(ctx, req.Archive, req.Size, kind, workspace)
	report.Extraction = ex
	if err != nil {
		report.Elapsed = time.Since(start)
		if errors.Is(err, archive.ErrNoContent) {
			e.logger.Info("nothing to scan", "archive", req.ArchiveName)
			return report, err
		}
		return nil, fmt.Errorf("extract %s: %w", req.ArchiveName, err)
	}

	result, err := e.scanner.ScanFolder(ctx, ex.Root, req.Term)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", req.ArchiveName, err)
	}
	report.Result = result
	report.Elapsed = time.Since(start)

	e.logger.Info("search complete",
		"archive", req.ArchiveName,
		"term", req.Term,
		"files", len(result.Records),
		"total", result.TotalCount,
		"failed", len(result.Failed()),
		"elapsed", report.Elapsed.Round(time.Millisecond),
	)
	return report, nil
}

// RunFile runs a request for an archive on disk
func (e *Engine) RunFile(ctx context.Context, path, term string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	return e.Run(ctx, Request{
		ArchiveName: filepath.Base(path),
		Archive:     f,
		Size:        stat.Size(),
		Term:        term,
	})
}

// RunBytes runs a request for an in-memory upload
func (e *Engine) RunBytes(ctx context.Context, name string, data []byte, term string) (*Report, error) {
	return e.Run(ctx, Request{
		ArchiveName: name,
		Archive:     bytes.NewReader(data),
		Size:        int64(len(data)),
		Term:        term,
	})
}

func (e *Engine) newWorkspace() (string, error) {
	root := e.WorkspaceRoot
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create workspace root: %w", err)
	}
	dir, err := os.MkdirTemp(root, "count-words-*")
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return dir, nil
}

// FormatFileSize formats a byte count for display
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// formatNumber formats a number with thousands separators
func formatNumber(n int) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	for i, digit := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	return result.String()
}
