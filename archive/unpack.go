package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/nwaples/rardecode/v2"

	"count-words/config"
)

var (
	// ErrNoContent means the archive extracted without a single regular file
	ErrNoContent = errors.New("archive contains no files")

	// ErrCorruptArchive wraps reader errors for payloads that cannot be parsed
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrTooLarge means the entries add up to more than the unpacker's MaxBytes
	ErrTooLarge = errors.New("archive expands beyond the extraction limit")
)

// zipFlagUTF8 is general purpose bit 11: the entry name is UTF-8
const zipFlagUTF8 = 0x800

// Extraction describes what an archive left on disk
type Extraction struct {
	// Root is the directory the scanner should walk
	Root string
	// Folders are the immediate child directories of Root, sorted
	Folders []string
	// Files is the number of distinct regular files written
	Files int
	// Bytes is the total size of everything written
	Bytes int64
	// Skipped lists entry names refused because they escape Root
	Skipped []string

	written map[string]struct{}
}

// Unpacker extracts uploaded archives into a destination directory
type Unpacker struct {
	// MaxBytes caps the bytes one archive may write; <= 0 means no cap
	MaxBytes int64

	decoder *Decoder
	logger  *log.Logger
}

// NewUnpacker creates an unpacker; nil arguments select defaults
func NewUnpacker(decoder *Decoder, logger *log.Logger) *Unpacker {
	if decoder == nil {
		decoder = DefaultDecoder()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Unpacker{decoder: decoder, logger: logger}
}

// UnpackFile opens the archive at path and extracts it into destDir
func (u *Unpacker) UnpackFile(ctx context.Context, path string, kind config.ArchiveKind, destDir string) (*Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	return u.Unpack(ctx, f, stat.Size(), kind, destDir)
}

// Unpack extracts every entry of src into destDir. The caller owns destDir
// and must give each independent run its own directory.
func (u *Unpacker) Unpack(ctx context.Context, src io.ReaderAt, size int64, kind config.ArchiveKind, destDir string) (*Extraction, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	ex := &Extraction{Root: destDir, written: make(map[string]struct{})}

	var err error
	switch kind {
	case config.ArchiveZIP:
		err = u.unpackZIP(ctx, src, size, ex)
	case config.ArchiveRAR:
		err = u.unpackRAR(ctx, io.NewSectionReader(src, 0, size), ex)
	default:
		err = fmt.Errorf("%w: %q", config.ErrUnsupportedArchive, kind)
	}
	if err != nil {
		return ex, err
	}

	if ex.Files == 0 {
		return ex, ErrNoContent
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		return ex, fmt.Errorf("read destination: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			ex.Folders = append(ex.Folders, e.Name())
		}
	}

	u.logger.Debug("archive extracted", "kind", kind, "files", ex.Files, "bytes", ex.Bytes, "folders", len(ex.Folders), "skipped", len(ex.Skipped))
	return ex, nil
}

func (u *Unpacker) unpackZIP(ctx context.Context, src io.ReaderAt, size int64, ex *Extraction) error {
	zr, err := zip.NewReader(src, size)
	// Non-local names are refused per entry below
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := f.Name
		if f.Flags&zipFlagUTF8 == 0 {
			name = u.decoder.Decode(name)
		}

		isDir := f.FileInfo().IsDir() || strings.HasSuffix(name, "/")
		err := u.writeEntry(ex, name, isDir, func() (io.ReadCloser, error) { return f.Open() })
		if err != nil {
			return err
		}
	}
	return nil
}

func (u *Unpacker) unpackRAR(ctx context.Context, src io.Reader, ex *Extraction) error {
	rr, err := rardecode.NewReader(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
		}

		name := u.decoder.Decode(hdr.Name)
		err = u.writeEntry(ex, name, hdr.IsDir, func() (io.ReadCloser, error) { return io.NopCloser(rr), nil })
		if err != nil {
			return err
		}
	}
}

// writeEntry materializes one entry below ex.Root
func (u *Unpacker) writeEntry(ex *Extraction, name string, isDir bool, open func() (io.ReadCloser, error)) error {
	rel := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if rel == "" {
		return nil
	}
	if !filepath.IsLocal(rel) {
		u.logger.Warn("skipping entry outside destination", "entry", name)
		ex.Skipped = append(ex.Skipped, name)
		return nil
	}
	target := filepath.Join(ex.Root, rel)

	if isDir {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", name, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", name, err)
	}

	rc, err := open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrCorruptArchive, name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	body := io.Reader(rc)
	remaining := u.MaxBytes - ex.Bytes
	if u.MaxBytes > 0 {
		// One byte past the budget is enough to know it was exceeded
		body = io.LimitReader(rc, remaining+1)
	}
	n, err := io.Copy(out, body)
	ex.Bytes += n
	if err != nil {
		out.Close()
		return fmt.Errorf("%w: extract %s: %w", ErrCorruptArchive, name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if u.MaxBytes > 0 && n > remaining {
		return fmt.Errorf("%w: %s passes %d bytes", ErrTooLarge, name, u.MaxBytes)
	}

	// A later entry with the same path replaces the earlier file on disk
	if _, dup := ex.written[target]; dup {
		u.logger.Warn("entry replaces an earlier one", "entry", name)
		return nil
	}
	ex.written[target] = struct{}{}
	ex.Files++
	return nil
}
