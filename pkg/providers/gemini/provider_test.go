package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eternnoir/elderlisten/pkg/providers"
)

func fakeGemini(t *testing.T, reply string, seen *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			*seen = string(body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":` + reply + `}]},"finishReason":"STOP"}]}`))
	}))
}

func TestNewProviderRequiresKey(t *testing.T) {
	_, err := NewProvider(context.Background(), "")
	require.ErrorIs(t, err, providers.ErrMissingCredentials)
}

func TestGenerateUsesSystemInstruction(t *testing.T) {
	var seen string
	srv := fakeGemini(t, `" {\"summary\":\"x\"} "`, &seen)
	defer srv.Close()

	p, err := NewProvider(context.Background(), "key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	gen, err := p.Generate(context.Background(), "merged text", "be careful")
	require.NoError(t, err)
	require.Equal(t, `{"summary":"x"}`, gen.Content)
	require.Contains(t, seen, "be careful")
	require.Contains(t, seen, "merged text")
}

func TestTranscribeSendsInlineAudio(t *testing.T) {
	var seen string
	srv := fakeGemini(t, `"hello there"`, &seen)
	defer srv.Close()

	audio := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("ID3fake"), 0o644))

	p, err := NewProvider(context.Background(), "key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	res, err := p.Transcribe(context.Background(), audio)
	require.NoError(t, err)
	require.Equal(t, "hello there", res.Text)
	require.Contains(t, seen, "audio/mpeg")
}
