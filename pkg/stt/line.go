package stt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/teslashibe/go-autovoice/pkg/voice"
)

// LineTranscriber treats each line read from a terminal as one utterance.
type LineTranscriber struct {
	prompt io.Writer
	lines  chan string
	errc   chan error

	once sync.Once
	src  io.Reader

	mu    sync.Mutex
	abort chan struct{}
}

// NewLineTranscriber reads utterances from r, printing a prompt to w when
// listening starts. w may be nil.
func NewLineTranscriber(r io.Reader, w io.Writer) *LineTranscriber {
	return &LineTranscriber{
		prompt: w,
		src:    r,
		lines:  make(chan string),
		errc:   make(chan error, 1),
	}
}

func (l *LineTranscriber) scan() {
	sc := bufio.NewScanner(l.src)
	for sc.Scan() {
		l.lines <- sc.Text()
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	l.errc <- err
	close(l.lines)
}

// StartRecording prints the prompt.
func (l *LineTranscriber) StartRecording(ctx context.Context, languageHint string) error {
	l.once.Do(func() { go l.scan() })

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.abort != nil {
		return ErrAlreadyRecording
	}
	l.abort = make(chan struct{})
	if l.prompt != nil {
		fmt.Fprint(l.prompt, "🎤 ")
	}
	return nil
}

// StopAndTranscribe returns the next line. Closed input yields io.EOF.
func (l *LineTranscriber) StopAndTranscribe(ctx context.Context) (voice.Transcript, error) {
	l.mu.Lock()
	abort := l.abort
	l.mu.Unlock()
	if abort == nil {
		return voice.Transcript{}, ErrNotRecording
	}
	defer func() {
		l.mu.Lock()
		if l.abort == abort {
			l.abort = nil
		}
		l.mu.Unlock()
	}()

	select {
	case line, ok := <-l.lines:
		if !ok {
			return voice.Transcript{}, l.readErr()
		}
		return voice.Transcript{Text: strings.TrimSpace(line), Confidence: 1}, nil
	case <-abort:
		return voice.Transcript{}, ErrCancelled
	case <-ctx.Done():
		return voice.Transcript{}, ctx.Err()
	}
}

func (l *LineTranscriber) readErr() error {
	select {
	case err := <-l.errc:
		l.errc <- err
		return err
	default:
		return io.EOF
	}
}

// Cancel abandons the pending line.
func (l *LineTranscriber) Cancel() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.abort != nil {
		close(l.abort)
		l.abort = nil
	}
	return nil
}

// Verify LineTranscriber implements voice.Transcriber at compile time.
var _ voice.Transcriber = (*LineTranscriber)(nil)
