package stt

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/teslashibe/go-autovoice/pkg/voice"
)

// ErrAlreadySubmitted is returned when a transcript is pushed twice for one recording.
var ErrAlreadySubmitted = errors.New("stt: transcript already submitted")

// Inbox is a voice.Transcriber fed from outside, such as the HTTP API or a
// head unit that runs its own recognizer. A recording opens the inbox and
// the next Submit closes it.
type Inbox struct {
	mu    sync.Mutex
	open  bool
	lang  string
	ch    chan voice.Transcript
	abort chan struct{}
	wait  chan struct{}
}

// NewInbox creates a closed inbox.
func NewInbox() *Inbox {
	return &Inbox{wait: make(chan struct{})}
}

// StartRecording opens the inbox.
func (b *Inbox) StartRecording(ctx context.Context, languageHint string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		return ErrAlreadyRecording
	}
	b.open = true
	b.lang = languageHint
	b.ch = make(chan voice.Transcript, 1)
	b.abort = make(chan struct{})
	close(b.wait)
	return nil
}

// Submit delivers a transcript to the open recording.
func (b *Inbox) Submit(text string, confidence float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return ErrNotRecording
	}
	select {
	case b.ch <- voice.Transcript{Text: strings.TrimSpace(text), Confidence: clamp01(confidence)}:
		return nil
	default:
		return ErrAlreadySubmitted
	}
}

// Listening reports whether a recording is waiting for a transcript.
func (b *Inbox) Listening() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Language returns the language hint of the open recording.
func (b *Inbox) Language() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lang
}

// Opened returns a channel that is closed once the next recording starts.
func (b *Inbox) Opened() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wait
}

// StopAndTranscribe waits for Submit.
func (b *Inbox) StopAndTranscribe(ctx context.Context) (voice.Transcript, error) {
	b.mu.Lock()
	if !b.open {
		b.mu.Unlock()
		return voice.Transcript{}, ErrNotRecording
	}
	ch, abort := b.ch, b.abort
	b.mu.Unlock()
	defer b.close(abort)

	select {
	case t := <-ch:
		return t, nil
	case <-abort:
		return voice.Transcript{}, ErrCancelled
	case <-ctx.Done():
		return voice.Transcript{}, ctx.Err()
	}
}

// Cancel closes the inbox without a transcript.
func (b *Inbox) Cancel() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil
	}
	close(b.abort)
	b.reset()
	return nil
}

func (b *Inbox) close(abort chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open && b.abort == abort {
		b.reset()
	}
}

// reset must be called with mu held.
func (b *Inbox) reset() {
	b.open = false
	b.lang = ""
	b.wait = make(chan struct{})
}

// Verify Inbox implements voice.Transcriber at compile time.
var _ voice.Transcriber = (*Inbox)(nil)
