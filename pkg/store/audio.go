package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AudioExtensions is the whitelist of audio extensions, in resolution order
var AudioExtensions = []string{".wav", ".mp3", ".m4a", ".amr"}

// AudioAsset is one recording on disk
type AudioAsset struct {
	SubjectID int64
	Date      string
	BaseName  string
	Ext       string
	Path      string
}

// IsAudioFile reports whether name carries a whitelisted extension, ignoring case
func IsAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// WalkAudio calls fn for every audio file under the audio root, in lexical
// order. A missing audio root yields no assets. An error returned by fn stops
// the walk and is returned. An unreadable entry below the root is reported to
// skip, if not nil, and left out of the walk; only an error on the root itself
// stops it.
func (s *Store) WalkAudio(fn func(AudioAsset) error, skip func(path string, err error)) error {
	if _, err := os.Stat(s.audioRoot); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return filepath.WalkDir(s.audioRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.audioRoot {
				return err
			}
			if skip != nil {
				skip(path, err)
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !IsAudioFile(d.Name()) {
			return nil
		}
		return fn(s.assetFor(path))
	})
}

// assetFor derives asset metadata from a path under the audio root. Files not
// at the subject/date depth, or under a non-numeric subject directory, keep a
// zero subject and an empty date.
func (s *Store) assetFor(path string) AudioAsset {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	asset := AudioAsset{
		BaseName: strings.TrimSuffix(name, ext),
		Ext:      ext,
		Path:     path,
	}

	rel, err := filepath.Rel(s.audioRoot, path)
	if err != nil {
		return asset
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return asset
	}
	if id, err := strconv.ParseInt(parts[0], 10, 64); err == nil {
		asset.SubjectID = id
		asset.Date = parts[1]
	}
	return asset
}
