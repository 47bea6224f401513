package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrorLogName is the append-only error log under the context root
const ErrorLogName = "_errors.jsonl"

// ErrorRecord is one line of the error log
type ErrorRecord struct {
	File  string `json:"file"`
	Error string `json:"error"`
	Time  string `json:"time"`
}

var errorLogMu sync.Mutex

// ErrorLogPath returns {contextRoot}/_errors.jsonl
func (s *Store) ErrorLogPath() string {
	return filepath.Join(s.contextRoot, ErrorLogName)
}

// AppendError appends one record for file to the error log. The log is never
// truncated or rewritten.
func (s *Store) AppendError(file, message string, at time.Time) error {
	abs, err := filepath.Abs(file)
	if err != nil {
		abs = file
	}

	rec := ErrorRecord{
		File:  abs,
		Error: message,
		Time:  at.UTC().Format(time.RFC3339Nano),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode error record: %w", err)
	}

	errorLogMu.Lock()
	defer errorLogMu.Unlock()

	if err := os.MkdirAll(s.contextRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create context root: %w", err)
	}
	f, err := os.OpenFile(s.ErrorLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open error log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append error record: %w", err)
	}
	return nil
}

// ReadErrors parses every record of the error log
func (s *Store) ReadErrors() ([]ErrorRecord, error) {
	data, err := os.ReadFile(s.ErrorLogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []ErrorRecord
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var rec ErrorRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse error record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
