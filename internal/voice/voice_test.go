package voice

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuilabs/minami/internal/domain"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{
		APIKey:  "niji-key",
		BaseURL: url,
		Voice:   domain.DefaultPersona,
		Timeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestSynthesize_RawAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/platform/v1/voice-actors/"+domain.DefaultPersona.VoiceActorID+"/generate-voice", r.URL.Path)
		assert.Equal(t, "niji-key", r.Header.Get("x-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "こんばんは", req.Script)
		assert.Equal(t, "0.9", req.Speed)
		assert.Equal(t, "mp3", req.Format)
		assert.Equal(t, 58, req.StyleID)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	audio, err := newTestClient(t, srv.URL).Synthesize(context.Background(), " こんばんは ")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), audio)
}

func TestSynthesize_DownloadURL(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /api/platform/v1/voice-actors/{id}/generate-voice", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"generatedVoice":{"audioFileDownloadUrl":"` + srv.URL + `/audio.mp3"}}`))
	})
	mux.HandleFunc("GET /audio.mp3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mp3bytes"))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	audio, err := newTestClient(t, srv.URL).Synthesize(context.Background(), "やっほー")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3bytes"), audio)
}

func TestSynthesize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimit},
		{"unavailable", http.StatusServiceUnavailable, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).Synthesize(context.Background(), "text")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := newTestClient(t, "http://unused").Synthesize(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyScript)
}

func TestListActors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/voice-actors", r.URL.Path)
		assert.Equal(t, "Bearer niji-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"voiceActors":[{"id":"a1","name":"みなみ"},{"id":"a2","name":"ひかり"}]}`))
	}))
	defer srv.Close()

	actors, err := newTestClient(t, srv.URL).ListActors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Actor{{ID: "a1", Name: "みなみ"}, {ID: "a2", Name: "ひかり"}}, actors)
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, time.Second, EstimateDuration("はい"))
	assert.Equal(t, 1500*time.Millisecond, EstimateDuration("0123456789"))
}
