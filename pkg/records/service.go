// Package records serves single recordings: listing, audio lookup, transcript
// lookup and transcription on demand. It shares transcript persistence with
// the batch runner but never takes the job lock.
package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/eternnoir/elderlisten/pkg/logger"
	"github.com/eternnoir/elderlisten/pkg/providers"
	"github.com/eternnoir/elderlisten/pkg/store"
)

// Service answers per-recording queries
type Service struct {
	store *store.Store
}

// NewService creates a service over st
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// List returns the subject's recordings, newest first
func (s *Service) List(ctx context.Context, subjectID int64) ([]store.Recording, error) {
	if err := store.ValidateSubject(subjectID); err != nil {
		return nil, err
	}

	log := s.logger(ctx, subjectID, "")
	recs, err := s.store.ListRecordings(subjectID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list recordings")
		return nil, err
	}
	log.Debug().Int("count", len(recs)).Msg("Listed recordings")
	return recs, nil
}

// AudioPath resolves the audio file of a recording
func (s *Service) AudioPath(ctx context.Context, subjectID int64, recordID string) (string, error) {
	if err := store.ValidateSubject(subjectID); err != nil {
		return "", err
	}

	path, err := s.store.ResolveAudioPath(subjectID, recordID)
	if err != nil {
		s.logger(ctx, subjectID, recordID).Debug().Err(err).Msg("Audio not resolved")
		return "", err
	}
	return path, nil
}

// Text returns the stored transcript of a recording without transcribing
func (s *Service) Text(ctx context.Context, subjectID int64, recordID string) (store.RecordText, error) {
	if err := store.ValidateSubject(subjectID); err != nil {
		return store.RecordText{SubjectID: subjectID, RecordID: recordID}, err
	}
	return s.store.GetText(subjectID, recordID)
}

// GetOrTranscribe returns the stored transcript of a recording, or
// transcribes its audio with recognizer when there is none. A missing audio
// file yields store.ErrAssetNotFound. A recognizer error is returned as is.
// Failing to store a fresh transcript is logged and does not fail the call.
func (s *Service) GetOrTranscribe(ctx context.Context, subjectID int64, recordID string, recognizer providers.SpeechRecognizer) (store.RecordText, error) {
	cached := store.RecordText{SubjectID: subjectID, RecordID: recordID}
	if err := store.ValidateSubject(subjectID); err != nil {
		return cached, err
	}
	if _, _, err := store.ParseRecordID(recordID); err != nil {
		return cached, err
	}

	log := s.logger(ctx, subjectID, recordID)

	stored, err := s.store.GetText(subjectID, recordID)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Stored transcript unreadable, transcribing again")
	case stored.Found && stored.Text != "":
		return stored, nil
	default:
		cached = stored
	}

	if recognizer == nil {
		return cached, fmt.Errorf("speech recognizer is required")
	}

	audioPath, err := s.store.ResolveAudioPath(subjectID, recordID)
	if err != nil {
		log.Warn().Err(err).Msg("Cannot transcribe on demand")
		return cached, err
	}

	log.Info().Str("audio", audioPath).Str("provider", recognizer.Name()).Msg("Transcribing on demand")
	res, err := recognizer.Transcribe(ctx, audioPath)
	if err != nil {
		log.Error().Err(err).Msg("On-demand transcription failed")
		return cached, err
	}
	if res == nil {
		return cached, fmt.Errorf("speech recognizer returned no result")
	}

	if err := s.store.SaveRecordText(subjectID, recordID, res.Text); err != nil {
		log.Error().Err(err).Msg("Failed to save transcript")
	}

	return store.RecordText{
		SubjectID: subjectID,
		RecordID:  recordID,
		Text:      strings.TrimSpace(res.Text),
		Found:     true,
	}, nil
}

func (s *Service) logger(ctx context.Context, subjectID int64, recordID string) *logger.Logger {
	l := logger.FromContext(ctx).WithComponent("records").WithField("subject_id", subjectID)
	if recordID != "" {
		l = l.WithField("record_id", recordID)
	}
	return l
}
