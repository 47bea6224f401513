package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketTranscribed = "transcribed"
	bucketFailed      = "failed"
)

// boltLedger implements Ledger using BoltDB
type boltLedger struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens or creates the ledger database at dbPath
func Open(dbPath string) (Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketTranscribed, bucketFailed} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &boltLedger{db: db, now: time.Now}, nil
}

// RecordTranscribed records a successful transcription
func (l *boltLedger) RecordTranscribed(audioPath, transcriptPath string, took time.Duration) error {
	fp, size, err := Fingerprint(audioPath)
	if err != nil {
		return fmt.Errorf("failed to fingerprint %s: %w", audioPath, err)
	}

	info := TranscribedInfo{
		Fingerprint:    fp,
		AudioPath:      audioPath,
		TranscriptPath: transcriptPath,
		TranscribedAt:  l.now().UTC(),
		Duration:       took,
		FileSize:       size,
	}

	return l.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("failed to marshal transcribed info: %w", err)
		}
		if err := tx.Bucket([]byte(bucketTranscribed)).Put([]byte(fp), data); err != nil {
			return fmt.Errorf("failed to store transcribed info: %w", err)
		}
		return tx.Bucket([]byte(bucketFailed)).Delete([]byte(fp))
	})
}

// RecordFailed records a failed attempt
func (l *boltLedger) RecordFailed(audioPath string, cause error) error {
	fp, _, err := Fingerprint(audioPath)
	if err != nil {
		return fmt.Errorf("failed to fingerprint %s: %w", audioPath, err)
	}

	info := FailedInfo{
		Fingerprint: fp,
		AudioPath:   audioPath,
		FailedAt:    l.now().UTC(),
		Attempts:    1,
	}
	if cause != nil {
		info.Error = cause.Error()
	}

	return l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketFailed))

		if existing := bucket.Get([]byte(fp)); existing != nil {
			var prev FailedInfo
			if err := json.Unmarshal(existing, &prev); err == nil {
				info.Attempts = prev.Attempts + 1
			}
		}

		data, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("failed to marshal failed info: %w", err)
		}
		if err := bucket.Put([]byte(fp), data); err != nil {
			return fmt.Errorf("failed to store failed info: %w", err)
		}
		return nil
	})
}

// Transcribed retrieves the success entry of an asset
func (l *boltLedger) Transcribed(audioPath string) (*TranscribedInfo, error) {
	fp, _, err := Fingerprint(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint %s: %w", audioPath, err)
	}

	var info *TranscribedInfo
	err = l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketTranscribed)).Get([]byte(fp))
		if data == nil {
			return nil
		}

		var t TranscribedInfo
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to unmarshal transcribed info: %w", err)
		}
		info = &t
		return nil
	})
	return info, err
}

// Failed lists failure entries ordered by audio path
func (l *boltLedger) Failed() ([]FailedInfo, error) {
	var out []FailedInfo
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketFailed)).ForEach(func(_, v []byte) error {
			var info FailedInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return fmt.Errorf("failed to unmarshal failed info: %w", err)
			}
			out = append(out, info)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AudioPath < out[j].AudioPath })
	return out, nil
}

// Close closes the underlying database
func (l *boltLedger) Close() error {
	return l.db.Close()
}
