// Package store maps the (subject, date) directory layout to audio assets
// and transcript fragments.
//
//	{audioRoot}/{subjectId}/{date}/{baseName}.{ext}
//	{contextRoot}/{subjectId}/{date}/{baseName}.txt
//
// It is the only writer of transcript fragments.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrMalformedRecordID is returned for record ids not shaped "date/baseName"
	ErrMalformedRecordID = errors.New("malformed record identifier")

	// ErrAssetNotFound is returned when no audio file matches a record id
	ErrAssetNotFound = errors.New("audio asset not found")

	// ErrInvalidSubject is returned for non-positive subject ids
	ErrInvalidSubject = errors.New("subject id must be a positive integer")

	// ErrInvalidDate is returned for dates not in YYYY-MM-DD form
	ErrInvalidDate = errors.New("date must be in YYYY-MM-DD format")
)

// ReservedPrefix marks files under the context root that are not fragments
const ReservedPrefix = "_"

// TextExt is the extension of transcript fragments
const TextExt = ".txt"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Store resolves assets and fragments under an audio root and a context root
type Store struct {
	audioRoot   string
	contextRoot string
}

// New creates a store. Both roots are made absolute; they need not exist yet.
func New(audioRoot, contextRoot string) (*Store, error) {
	if audioRoot == "" || contextRoot == "" {
		return nil, fmt.Errorf("audio root and context root are required")
	}

	a, err := filepath.Abs(audioRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audio root: %w", err)
	}
	c, err := filepath.Abs(contextRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve context root: %w", err)
	}

	return &Store{audioRoot: a, contextRoot: c}, nil
}

// AudioRoot returns the absolute audio root
func (s *Store) AudioRoot() string {
	return s.audioRoot
}

// ContextRoot returns the absolute context root
func (s *Store) ContextRoot() string {
	return s.contextRoot
}

// ValidateSubject checks that a subject id is positive
func ValidateSubject(subjectID int64) error {
	if subjectID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSubject, subjectID)
	}
	return nil
}

// ValidateDate checks the YYYY-MM-DD shape of a date directory name
func ValidateDate(date string) error {
	if !datePattern.MatchString(date) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// ParseRecordID splits "date/baseName" into its parts
func ParseRecordID(recordID string) (date, base string, err error) {
	date, base, ok := strings.Cut(recordID, "/")
	if !ok || date == "" || base == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedRecordID, recordID)
	}
	for _, part := range []string{date, base} {
		if part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", "", fmt.Errorf("%w: %q", ErrMalformedRecordID, recordID)
		}
	}
	return date, base, nil
}

// RecordID joins a date and a base name
func RecordID(date, base string) string {
	return date + "/" + base
}

func subjectDir(root string, subjectID int64) string {
	return filepath.Join(root, strconv.FormatInt(subjectID, 10))
}

// DayDir returns {contextRoot}/{subjectId}/{date}
func (s *Store) DayDir(subjectID int64, date string) string {
	return filepath.Join(subjectDir(s.contextRoot, subjectID), date)
}

// TextPath returns the fragment path of a record
func (s *Store) TextPath(subjectID int64, date, base string) string {
	return filepath.Join(s.DayDir(subjectID, date), base+TextExt)
}

// TranscriptPathFor mirrors an audio path under the context root with the
// extension replaced by .txt
func (s *Store) TranscriptPathFor(audioPath string) (string, error) {
	rel, err := filepath.Rel(s.audioRoot, audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", audioPath, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the audio root", audioPath)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + TextExt
	return filepath.Join(s.contextRoot, rel), nil
}

// HasText reports whether path exists with non-zero size
func HasText(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// SaveText writes text verbatim as UTF-8, creating parent directories
func SaveText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create transcript directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}
