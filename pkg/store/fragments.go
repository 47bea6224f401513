package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListFragments returns the transcript fragments of a subject-day sorted by
// name ascending. Files starting with the reserved prefix are excluded. A
// missing directory yields an empty list.
func (s *Store) ListFragments(subjectID int64, date string) ([]string, error) {
	dir := s.DayDir(subjectID, date)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ReservedPrefix) || filepath.Ext(name) != TextExt {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}

	sort.Strings(paths)
	return paths, nil
}
