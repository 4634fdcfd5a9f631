package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"count-words/config"
)

// errCancelled is returned when the user declines or aborts the form
var errCancelled = errors.New("search cancelled")

// searchInput is what the terminal form collects
type searchInput struct {
	Archive   string
	Word      string
	Confirmed bool
}

// validateArchivePath accepts an existing regular file with a .zip or .rar suffix
func validateArchivePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("choose an archive")
	}
	if _, err := config.ArchiveKindForFile(path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot open archive: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a file", path)
	}
	return nil
}

// validateWord rejects an empty search word. Surrounding spaces are part
// of the word and are kept.
func validateWord(s string) error {
	if s == "" {
		return errors.New("search word cannot be empty")
	}
	return nil
}

// promptForSearch runs the file picker, word input and confirm button.
// Fields already set in seed are kept as defaults.
func promptForSearch(seed searchInput) (searchInput, error) {
	in := seed
	in.Confirmed = true

	startDir, err := os.Getwd()
	if err != nil {
		startDir = "."
	}

	var fields []huh.Field
	if in.Archive == "" {
		fields = append(fields, huh.NewFilePicker().
			Title("Archive").
			Description("A .zip or .rar file with the documents to search").
			CurrentDirectory(startDir).
			AllowedTypes(config.ArchiveExtensions()).
			FileAllowed(true).
			DirAllowed(false).
			Value(&in.Archive).
			Validate(validateArchivePath))
	}
	fields = append(fields,
		huh.NewInput().
			Title("Search word").
			Placeholder("word to count").
			Value(&in.Word).
			Validate(validateWord),
		huh.NewConfirm().
			Title("Start counting?").
			Affirmative("Search").
			Negative("Cancel").
			Value(&in.Confirmed),
	)

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return in, errCancelled
		}
		return in, fmt.Errorf("prompt failed: %w", err)
	}
	if !in.Confirmed {
		return in, errCancelled
	}
	if err := validateArchivePath(in.Archive); err != nil {
		return in, err
	}
	return in, nil
}
