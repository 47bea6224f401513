package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openLedger(t *testing.T) (Ledger, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "ctx", "_history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, dir
}

func writeAudio(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRecordFailedIncrementsAttempts(t *testing.T) {
	l, dir := openLedger(t)
	a := writeAudio(t, dir, "a.wav", "aaaa")
	b := writeAudio(t, dir, "b.wav", "bbbb")

	require.NoError(t, l.RecordFailed(b, errors.New("timeout")))
	require.NoError(t, l.RecordFailed(a, errors.New("first")))
	require.NoError(t, l.RecordFailed(a, errors.New("second")))

	failed, err := l.Failed()
	require.NoError(t, err)
	require.Len(t, failed, 2)
	require.Equal(t, a, failed[0].AudioPath)
	require.Equal(t, 2, failed[0].Attempts)
	require.Equal(t, "second", failed[0].Error)
	require.Equal(t, 1, failed[1].Attempts)
}

func TestRecordTranscribedClearsFailure(t *testing.T) {
	l, dir := openLedger(t)
	a := writeAudio(t, dir, "a.wav", "aaaa")

	require.NoError(t, l.RecordFailed(a, errors.New("boom")))
	require.NoError(t, l.RecordTranscribed(a, "/ctx/a.txt", 3*time.Second))

	failed, err := l.Failed()
	require.NoError(t, err)
	require.Empty(t, failed)

	info, err := l.Transcribed(a)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, "/ctx/a.txt", info.TranscriptPath)
	require.Equal(t, int64(4), info.FileSize)
	require.Equal(t, 3*time.Second, info.Duration)
}

func TestTranscribedUnknownAsset(t *testing.T) {
	l, dir := openLedger(t)
	a := writeAudio(t, dir, "a.wav", "aaaa")

	info, err := l.Transcribed(a)
	require.NoError(t, err)
	require.Nil(t, info)

	_, err = l.Transcribed(filepath.Join(dir, "missing.wav"))
	require.Error(t, err)
}

func TestFingerprintTracksContentAndPath(t *testing.T) {
	dir := t.TempDir()
	a := writeAudio(t, dir, "a.wav", "same")
	b := writeAudio(t, dir, "b.wav", "same")

	fa, size, err := Fingerprint(a)
	require.NoError(t, err)
	require.Equal(t, int64(4), size)
	require.Len(t, fa, 64)

	fb, _, err := Fingerprint(b)
	require.NoError(t, err)
	require.NotEqual(t, fa, fb)

	again, _, err := Fingerprint(a)
	require.NoError(t, err)
	require.Equal(t, fa, again)

	require.NoError(t, os.WriteFile(a, []byte("diff"), 0o644))
	changed, _, err := Fingerprint(a)
	require.NoError(t, err)
	require.NotEqual(t, fa, changed)
}
