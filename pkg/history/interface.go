// Package history keeps a persistent ledger of transcription attempts per
// audio asset. It is advisory: transcript presence on disk decides whether
// an asset is done, and the JSONL error log stays the record of failures.
package history

import "time"

// Ledger records transcription attempts
type Ledger interface {
	// RecordTranscribed marks an asset as transcribed and clears any failure entry
	RecordTranscribed(audioPath, transcriptPath string, took time.Duration) error

	// RecordFailed records a failed attempt, incrementing the attempt count
	RecordFailed(audioPath string, cause error) error

	// Transcribed returns the success entry of an asset, or nil
	Transcribed(audioPath string) (*TranscribedInfo, error)

	// Failed lists every asset whose latest attempt failed
	Failed() ([]FailedInfo, error)

	// Close closes the underlying database
	Close() error
}

// TranscribedInfo describes a successful transcription
type TranscribedInfo struct {
	Fingerprint    string        `json:"fingerprint"`
	AudioPath      string        `json:"audio_path"`
	TranscriptPath string        `json:"transcript_path"`
	TranscribedAt  time.Time     `json:"transcribed_at"`
	Duration       time.Duration `json:"duration"`
	FileSize       int64         `json:"file_size"`
}

// FailedInfo describes the latest failed attempt on an asset
type FailedInfo struct {
	Fingerprint string    `json:"fingerprint"`
	AudioPath   string    `json:"audio_path"`
	FailedAt    time.Time `json:"failed_at"`
	Error       string    `json:"error"`
	Attempts    int       `json:"attempts"`
}
