package stt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhisperTranscribe(t *testing.T) {
	var form struct {
		model, language, format, file string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		form.model = r.FormValue("model")
		form.language = r.FormValue("language")
		form.format = r.FormValue("response_format")
		if f, hdr, err := r.FormFile("file"); err == nil {
			form.file = hdr.Filename
			f.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"task":"transcribe","language":"english","duration":1.5,"text":" Lock the doors. ",
			"segments":[{"id":0,"text":"Lock the doors.","avg_logprob":-0.1,"no_speech_prob":0.0}]}`)
	}))
	defer srv.Close()

	w, err := NewWhisper(WithAPIKey("test-key"), WithBaseURL(srv.URL+"/v1"), WithLanguage("de"))
	require.NoError(t, err)

	res, err := w.Transcribe(context.Background(), &AudioInput{Data: []byte("RIFF...."), Filename: "utterance.wav", Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, "Lock the doors.", res.Text)
	assert.InDelta(t, 0.9048, res.Confidence, 0.001)
	assert.Equal(t, "english", res.Language)
	assert.Equal(t, 1500*time.Millisecond, res.Duration)

	assert.Equal(t, "whisper-1", form.model)
	assert.Equal(t, "en", form.language, "request hint wins over configured default")
	assert.Equal(t, "verbose_json", form.format)
	assert.Equal(t, "utterance.wav", form.file)
}

func TestWhisperRejectsEmptyAudio(t *testing.T) {
	w, err := NewWhisper(WithAPIKey("test-key"))
	require.NoError(t, err)
	_, err = w.Transcribe(context.Background(), &AudioInput{})
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = NewWhisper()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestWhisperRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, `{"error":{"message":"upstream","type":"server_error"}}`)
			return
		}
		io.WriteString(w, `{"text":"honk the horn"}`)
	}))
	defer srv.Close()

	w, err := NewWhisper(WithAPIKey("k"), WithBaseURL(srv.URL+"/v1"), WithRetry(1, time.Millisecond))
	require.NoError(t, err)
	res, err := w.Transcribe(context.Background(), &AudioInput{Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "honk the horn", res.Text)
	assert.Equal(t, 1.0, res.Confidence)
	assert.EqualValues(t, 2, hits.Load())
}

func TestWhisperClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"bad audio","type":"invalid_request_error","code":"invalid_file"}}`)
	}))
	defer srv.Close()

	w, _ := NewWhisper(WithAPIKey("k"), WithBaseURL(srv.URL+"/v1"))
	_, err := w.Transcribe(context.Background(), &AudioInput{Data: []byte("x")})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.False(t, apiErr.IsRetryable())
	assert.Contains(t, apiErr.Error(), "stt [whisper]")
}

func TestSegmentConfidenceBounds(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 1.0, clamp01(3))
	assert.Equal(t, 0.25, clamp01(0.25))
}

// stubCapture hands back a fixed clip or blocks until aborted.
type stubCapture struct {
	clip    *AudioInput
	err     error
	block   bool
	started atomic.Int32
	aborted chan struct{}
}

func newStubCapture() *stubCapture {
	return &stubCapture{aborted: make(chan struct{})}
}

func (s *stubCapture) Start(ctx context.Context) error {
	s.started.Add(1)
	return nil
}

func (s *stubCapture) Wait(ctx context.Context) (*AudioInput, error) {
	if s.block {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.aborted:
			return nil, ErrCancelled
		}
	}
	return s.clip, s.err
}

func (s *stubCapture) Abort() error {
	select {
	case <-s.aborted:
	default:
		close(s.aborted)
	}
	return nil
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()

	t.Run("transcribes the captured clip", func(t *testing.T) {
		capture := newStubCapture()
		capture.clip = &AudioInput{Data: []byte("RIFF")}
		provider := NewMock("Unlock the doors", 0.93)
		rec := NewRecorder(capture, provider, nil)

		require.NoError(t, rec.StartRecording(ctx, "en"))
		assert.ErrorIs(t, rec.StartRecording(ctx, "en"), ErrAlreadyRecording)

		tr, err := rec.StopAndTranscribe(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Unlock the doors", tr.Text)
		assert.Equal(t, 0.93, tr.Confidence)
		assert.Equal(t, "en", capture.clip.Language)
		assert.Equal(t, 1, provider.CallCount("Transcribe"))

		// ready for the next utterance
		require.NoError(t, rec.StartRecording(ctx, ""))
	})

	t.Run("no speech is an empty transcript", func(t *testing.T) {
		capture := newStubCapture()
		capture.err = ErrNoAudio
		provider := NewMock("ignored", 1)
		rec := NewRecorder(capture, provider, nil)

		require.NoError(t, rec.StartRecording(ctx, ""))
		tr, err := rec.StopAndTranscribe(ctx)
		require.NoError(t, err)
		assert.Empty(t, tr.Text)
		assert.Equal(t, 0, provider.CallCount("Transcribe"))
	})

	t.Run("provider errors propagate", func(t *testing.T) {
		capture := newStubCapture()
		capture.clip = &AudioInput{Data: []byte("RIFF")}
		boom := errors.New("boom")
		rec := NewRecorder(capture, WithError(boom), nil)

		require.NoError(t, rec.StartRecording(ctx, ""))
		_, err := rec.StopAndTranscribe(ctx)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancel unblocks the wait", func(t *testing.T) {
		capture := newStubCapture()
		capture.block = true
		rec := NewRecorder(capture, NewMock("x", 1), nil)

		require.NoError(t, rec.StartRecording(ctx, ""))
		errc := make(chan error, 1)
		go func() {
			_, err := rec.StopAndTranscribe(ctx)
			errc <- err
		}()

		time.Sleep(20 * time.Millisecond)
		require.NoError(t, rec.Cancel())

		select {
		case err := <-errc:
			assert.ErrorIs(t, err, ErrCancelled)
		case <-time.After(time.Second):
			t.Fatal("StopAndTranscribe did not return after Cancel")
		}
		assert.NoError(t, rec.Cancel(), "second cancel is a no-op")
	})

	t.Run("stop without start", func(t *testing.T) {
		rec := NewRecorder(newStubCapture(), NewMock("x", 1), nil)
		_, err := rec.StopAndTranscribe(ctx)
		assert.ErrorIs(t, err, ErrNotRecording)
	})

	t.Run("end to end with reader capture", func(t *testing.T) {
		cfg := testCaptureConfig()
		var stream bytes.Buffer
		stream.Write(tone(cfg, 8000, 300*time.Millisecond))
		stream.Write(tone(cfg, 0, 300*time.Millisecond))

		rec := NewRecorder(NewReaderCapture(cfg, nil, &stream), NewMock("Honk the horn", 0.8), nil)
		require.NoError(t, rec.StartRecording(ctx, ""))
		tr, err := rec.StopAndTranscribe(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Honk the horn", tr.Text)
	})
}

func TestInbox(t *testing.T) {
	ctx := context.Background()

	t.Run("submit delivers transcript", func(t *testing.T) {
		in := NewInbox()
		assert.ErrorIs(t, in.Submit("too early", 1), ErrNotRecording)
		opened := in.Opened()

		require.NoError(t, in.StartRecording(ctx, "en"))
		select {
		case <-opened:
		default:
			t.Fatal("Opened should be closed after StartRecording")
		}
		assert.True(t, in.Listening())
		assert.Equal(t, "en", in.Language())

		require.NoError(t, in.Submit("  lock the doors  ", 1.4))
		assert.ErrorIs(t, in.Submit("again", 1), ErrAlreadySubmitted)

		tr, err := in.StopAndTranscribe(ctx)
		require.NoError(t, err)
		assert.Equal(t, "lock the doors", tr.Text)
		assert.Equal(t, 1.0, tr.Confidence)
		assert.False(t, in.Listening())
	})

	t.Run("cancel unblocks", func(t *testing.T) {
		in := NewInbox()
		require.NoError(t, in.StartRecording(ctx, ""))
		assert.ErrorIs(t, in.StartRecording(ctx, ""), ErrAlreadyRecording)

		errc := make(chan error, 1)
		go func() {
			_, err := in.StopAndTranscribe(ctx)
			errc <- err
		}()
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, in.Cancel())
		assert.ErrorIs(t, <-errc, ErrCancelled)
		assert.False(t, in.Listening())
	})

	t.Run("context ends the wait", func(t *testing.T) {
		in := NewInbox()
		require.NoError(t, in.StartRecording(ctx, ""))
		tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err := in.StopAndTranscribe(tctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, in.Listening())
	})
}

func TestLineTranscriber(t *testing.T) {
	ctx := context.Background()
	var prompt bytes.Buffer
	lt := NewLineTranscriber(strings.NewReader("lock the doors\n  what's the weather  \n"), &prompt)

	_, err := lt.StopAndTranscribe(ctx)
	assert.ErrorIs(t, err, ErrNotRecording)

	for _, want := range []string{"lock the doors", "what's the weather"} {
		require.NoError(t, lt.StartRecording(ctx, ""))
		tr, err := lt.StopAndTranscribe(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, tr.Text)
		assert.Equal(t, 1.0, tr.Confidence)
	}
	assert.Contains(t, prompt.String(), "🎤")

	require.NoError(t, lt.StartRecording(ctx, ""))
	_, err = lt.StopAndTranscribe(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineTranscriberCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	lt := NewLineTranscriber(pr, nil)

	require.NoError(t, lt.StartRecording(context.Background(), ""))
	errc := make(chan error, 1)
	go func() {
		_, err := lt.StopAndTranscribe(context.Background())
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, lt.Cancel())
	assert.ErrorIs(t, <-errc, ErrCancelled)
}
