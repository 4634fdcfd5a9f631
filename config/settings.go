package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Environment variable names
const (
	EnvAddr              = "COUNTWORDS_ADDR"
	EnvWorkspace         = "COUNTWORDS_WORKSPACE"
	EnvMaxUploadMB       = "COUNTWORDS_MAX_UPLOAD_MB"
	EnvMaxExtractMB      = "COUNTWORDS_MAX_EXTRACT_MB"
	EnvLogLevel          = "COUNTWORDS_LOG_LEVEL"
	EnvFilenameEncodings = "COUNTWORDS_FILENAME_ENCODINGS"
)

// DefaultFilenameEncodings is the order in which legacy codepages are tried
// for archive entry names that are not valid UTF-8.
var DefaultFilenameEncodings = []string{"gbk", "big5", "shift_jis", "euc-kr"}

// KnownFilenameEncodings lists every name accepted in the encodings setting
var KnownFilenameEncodings = []string{"gbk", "gb18030", "big5", "shift_jis", "euc-jp", "euc-kr", "cp437"}

// Settings holds runtime configuration shared by all front ends
type Settings struct {
	Addr              string
	WorkspaceRoot     string
	MaxUploadMB       int
	MaxExtractMB      int
	LogLevel          string
	FilenameEncodings []string
}

// Defaults returns settings with no environment applied
func Defaults() Settings {
	return Settings{
		Addr:              ":8080",
		WorkspaceRoot:     os.TempDir(),
		MaxUploadMB:       64,
		MaxExtractMB:      1024,
		LogLevel:          "info",
		FilenameEncodings: append([]string(nil), DefaultFilenameEncodings...),
	}
}

// Load reads .env (if present) and the process environment on top of Defaults
func Load() (Settings, error) {
	// Missing .env is fine
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds settings from an arbitrary variable lookup
func FromLookup(lookup func(string) (string, bool)) (Settings, error) {
	s := Defaults()

	if v, ok := lookup(EnvAddr); ok && v != "" {
		s.Addr = v
	}
	if v, ok := lookup(EnvWorkspace); ok && v != "" {
		s.WorkspaceRoot = v
	}
	if v, ok := lookup(EnvMaxUploadMB); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("%s: %w", EnvMaxUploadMB, err)
		}
		s.MaxUploadMB = n
	}
	if v, ok := lookup(EnvMaxExtractMB); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("%s: %w", EnvMaxExtractMB, err)
		}
		s.MaxExtractMB = n
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		s.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup(EnvFilenameEncodings); ok {
		s.FilenameEncodings = splitList(v)
	}

	return s, s.Validate()
}

// Validate checks settings for values the pipeline cannot work with
func (s Settings) Validate() error {
	if s.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d MB", s.MaxUploadMB)
	}
	if s.MaxExtractMB <= 0 {
		return fmt.Errorf("max extract size must be positive, got %d MB", s.MaxExtractMB)
	}
	if _, err := log.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", s.LogLevel)
	}
	for _, name := range s.FilenameEncodings {
		if !isKnownEncoding(name) {
			return fmt.Errorf("unknown filename encoding %q (known: %s)", name, strings.Join(KnownFilenameEncodings, ", "))
		}
	}
	return nil
}

// MaxUploadBytes returns the upload cap in bytes
func (s Settings) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// MaxExtractBytes returns how much one archive may expand to on disk
func (s Settings) MaxExtractBytes() int64 {
	return int64(s.MaxExtractMB) << 20
}

// Level returns the parsed log level, defaulting to info
func (s Settings) Level() log.Level {
	lvl, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func isKnownEncoding(name string) bool {
	return slices.Contains(KnownFilenameEncodings, name)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
