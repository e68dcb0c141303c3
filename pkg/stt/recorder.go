package stt

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-autovoice/pkg/voice"
)

// Recorder implements voice.Transcriber with a Capture and a Provider.
type Recorder struct {
	capture  Capture
	provider Provider
	logger   *slog.Logger

	mu    sync.Mutex
	lang  string
	abort chan struct{}
}

// NewRecorder creates a recorder.
func NewRecorder(capture Capture, provider Provider, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		capture:  capture,
		provider: provider,
		logger:   logger.With("component", "stt.recorder"),
	}
}

// StartRecording begins capturing audio.
func (r *Recorder) StartRecording(ctx context.Context, languageHint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abort != nil {
		return ErrAlreadyRecording
	}
	if err := r.capture.Start(ctx); err != nil {
		return err
	}
	r.lang = languageHint
	r.abort = make(chan struct{})
	return nil
}

// StopAndTranscribe waits for the utterance to end and transcribes it. An
// utterance with no speech yields an empty transcript.
func (r *Recorder) StopAndTranscribe(ctx context.Context) (voice.Transcript, error) {
	r.mu.Lock()
	abort, lang := r.abort, r.lang
	r.mu.Unlock()
	if abort == nil {
		return voice.Transcript{}, ErrNotRecording
	}
	defer r.clear(abort)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-abort:
			cancel()
		case <-ctx.Done():
		}
	}()

	clip, err := r.capture.Wait(ctx)
	if err != nil {
		if isClosed(abort) {
			return voice.Transcript{}, ErrCancelled
		}
		if errors.Is(err, ErrNoAudio) {
			r.logger.Debug("no speech detected")
			return voice.Transcript{}, nil
		}
		return voice.Transcript{}, err
	}
	clip.Language = lang

	result, err := r.provider.Transcribe(ctx, clip)
	if err != nil {
		if isClosed(abort) {
			return voice.Transcript{}, ErrCancelled
		}
		return voice.Transcript{}, err
	}
	return voice.Transcript{Text: result.Text, Confidence: result.Confidence}, nil
}

// Cancel aborts the current recording.
func (r *Recorder) Cancel() error {
	r.mu.Lock()
	abort := r.abort
	r.abort = nil
	r.mu.Unlock()
	if abort == nil {
		return nil
	}
	close(abort)
	return r.capture.Abort()
}

func (r *Recorder) clear(abort chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abort == abort {
		r.abort = nil
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Verify Recorder implements voice.Transcriber at compile time.
var _ voice.Transcriber = (*Recorder)(nil)
