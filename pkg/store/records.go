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

// Recording is one entry of a subject's recording list
type Recording struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Date     string `json:"date"`
	HasText  bool   `json:"has_text"`
}

// RecordText is the transcript of one recording
type RecordText struct {
	SubjectID int64  `json:"elder_id"`
	RecordID  string `json:"record_id"`
	Text      string `json:"text"`
	Found     bool   `json:"found"`
}

// ListRecordings enumerates the subject's date directories, then the audio
// files beneath each, both descending by name.
func (s *Store) ListRecordings(subjectID int64) ([]Recording, error) {
	dir := subjectDir(s.audioRoot, subjectID)

	dates, err := readDirDesc(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Recording{}, nil
		}
		return nil, fmt.Errorf("failed to read subject directory: %w", err)
	}

	records := []Recording{}
	for _, d := range dates {
		if !d.IsDir() {
			continue
		}
		date := d.Name()

		files, err := readDirDesc(filepath.Join(dir, date))
		if err != nil {
			return nil, fmt.Errorf("failed to read date directory %s: %w", date, err)
		}

		for _, f := range files {
			if !f.Type().IsRegular() || !IsAudioFile(f.Name()) {
				continue
			}
			base := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
			records = append(records, Recording{
				ID:       RecordID(date, base),
				Filename: f.Name(),
				Date:     date,
				HasText:  HasText(s.TextPath(subjectID, date, base)),
			})
		}
	}

	return records, nil
}

func readDirDesc(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() > entries[j].Name()
	})
	return entries, nil
}

// ResolveAudioPath finds the audio file of a record, trying each whitelisted
// extension in turn. Extension case is ignored.
func (s *Store) ResolveAudioPath(subjectID int64, recordID string) (string, error) {
	date, base, err := ParseRecordID(recordID)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(subjectDir(s.audioRoot, subjectID), date)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %d/%s", ErrAssetNotFound, subjectID, recordID)
		}
		return "", fmt.Errorf("failed to read audio directory: %w", err)
	}

	byExt := make(map[string]string)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if strings.TrimSuffix(e.Name(), ext) != base {
			continue
		}
		lower := strings.ToLower(ext)
		if _, seen := byExt[lower]; !seen {
			byExt[lower] = e.Name()
		}
	}

	for _, ext := range AudioExtensions {
		if name, ok := byExt[ext]; ok {
			return filepath.Join(dir, name), nil
		}
	}

	return "", fmt.Errorf("%w: %d/%s", ErrAssetNotFound, subjectID, recordID)
}

// GetText reads the trimmed transcript of a record. A missing transcript is
// reported with Found false and no error.
func (s *Store) GetText(subjectID int64, recordID string) (RecordText, error) {
	result := RecordText{SubjectID: subjectID, RecordID: recordID}

	date, base, err := ParseRecordID(recordID)
	if err != nil {
		return result, err
	}

	data, err := os.ReadFile(s.TextPath(subjectID, date, base))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return result, fmt.Errorf("failed to read transcript: %w", err)
	}

	result.Text = strings.TrimSpace(string(data))
	result.Found = true
	return result, nil
}

// SaveRecordText persists the transcript of a record
func (s *Store) SaveRecordText(subjectID int64, recordID, text string) error {
	date, base, err := ParseRecordID(recordID)
	if err != nil {
		return err
	}
	return SaveText(s.TextPath(subjectID, date, base), text)
}
