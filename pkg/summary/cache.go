package summary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/eternnoir/elderlisten/pkg/logger"
)

// loadCache reads a cache file. Missing, empty, unparseable or incomplete
// caches are misses. A cache holding list-typed fields is rewritten in
// normalized form.
func (g *Generator) loadCache(path string, log *logger.Logger) (Fields, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to read summary cache")
		}
		return Fields{}, false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Fields{}, false
	}

	var values map[string]Value
	if err := json.Unmarshal(data, &values); err != nil || values == nil {
		log.Warn().Err(err).Str("path", path).Msg("Ignoring unparseable summary cache")
		return Fields{}, false
	}

	for _, key := range RequiredKeys {
		if _, ok := values[key]; !ok {
			log.Warn().Str("path", path).Str("key", key).Msg("Summary cache is missing a field")
			return Fields{}, false
		}
	}

	fields, hadList := Normalize(values)
	if hadList {
		log.Info().Str("path", path).Msg("Rewriting summary cache with list fields")
		if err := writeCache(path, fields); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to rewrite summary cache")
		}
	}
	return fields, true
}

// writeCache stores fields as indented UTF-8 JSON, replacing the file atomically
func writeCache(path string, fields Fields) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fields); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".summary-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace summary: %w", err)
	}
	return nil
}
