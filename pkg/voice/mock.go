package voice

import (
	"context"
	"sync"
	"time"
)

// MockCall records a collaborator invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// recorder tracks calls made to a mock.
type recorder struct {
	mu    sync.Mutex
	calls []MockCall
}

func (r *recorder) record(method, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, MockCall{Method: method, Text: text, Time: time.Now()})
}

// Calls returns all recorded calls.
func (r *recorder) Calls() []MockCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]MockCall, len(r.calls))
	copy(result, r.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (r *recorder) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, c := range r.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastCall returns the most recent call, or nil if none.
func (r *recorder) LastCall() *MockCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	call := r.calls[len(r.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// MockTranscriber implements Transcriber for testing.
type MockTranscriber struct {
	// StartFunc is called by StartRecording. If nil, recording starts.
	StartFunc func(ctx context.Context, languageHint string) error

	// TranscribeFunc is called by StopAndTranscribe. If nil, an empty transcript is returned.
	TranscribeFunc func(ctx context.Context) (Transcript, error)

	// CancelFunc is called by Cancel. If nil, returns nil.
	CancelFunc func() error

	recorder
}

// NewMockTranscriber returns a transcriber that always hears text.
func NewMockTranscriber(text string, confidence float64) *MockTranscriber {
	return &MockTranscriber{
		TranscribeFunc: func(ctx context.Context) (Transcript, error) {
			return Transcript{Text: text, Confidence: confidence}, nil
		},
	}
}

// NewBlockingTranscriber returns a transcriber whose StopAndTranscribe waits
// until its context ends or Cancel is called. Each StartRecording re-arms it.
func NewBlockingTranscriber() *MockTranscriber {
	var mu sync.Mutex
	cancelled := make(chan struct{})
	armed := func() chan struct{} {
		mu.Lock()
		defer mu.Unlock()
		return cancelled
	}
	return &MockTranscriber{
		StartFunc: func(ctx context.Context, languageHint string) error {
			mu.Lock()
			defer mu.Unlock()
			cancelled = make(chan struct{})
			return nil
		},
		TranscribeFunc: func(ctx context.Context) (Transcript, error) {
			select {
			case <-ctx.Done():
				return Transcript{}, ctx.Err()
			case <-armed():
				return Transcript{}, ErrCancelled
			}
		},
		CancelFunc: func() error {
			mu.Lock()
			defer mu.Unlock()
			select {
			case <-cancelled:
			default:
				close(cancelled)
			}
			return nil
		},
	}
}

func (m *MockTranscriber) StartRecording(ctx context.Context, languageHint string) error {
	m.record("StartRecording", languageHint)
	if m.StartFunc != nil {
		return m.StartFunc(ctx, languageHint)
	}
	return nil
}

func (m *MockTranscriber) StopAndTranscribe(ctx context.Context) (Transcript, error) {
	m.record("StopAndTranscribe", "")
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx)
	}
	return Transcript{}, nil
}

func (m *MockTranscriber) Cancel() error {
	m.record("Cancel", "")
	if m.CancelFunc != nil {
		return m.CancelFunc()
	}
	return nil
}

// MockSynthesizer implements Synthesizer for testing.
type MockSynthesizer struct {
	// SpeakFunc is called by Speak. If nil, speaking succeeds immediately.
	SpeakFunc func(ctx context.Context, text string) error

	// StopFunc is called by Stop. If nil, returns nil.
	StopFunc func() error

	recorder
}

// NewMockSynthesizer returns a synthesizer that speaks instantly.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

func (m *MockSynthesizer) Speak(ctx context.Context, text string) error {
	m.record("Speak", text)
	if m.SpeakFunc != nil {
		return m.SpeakFunc(ctx, text)
	}
	return nil
}

func (m *MockSynthesizer) Stop() error {
	m.record("Stop", "")
	if m.StopFunc != nil {
		return m.StopFunc()
	}
	return nil
}

// MockFallback implements ConversationalFallback for testing.
type MockFallback struct {
	// RespondFunc is called by Respond. If nil, the input is echoed back.
	RespondFunc func(ctx context.Context, text string) (string, error)

	recorder
}

// NewMockFallback returns a fallback that always answers reply.
func NewMockFallback(reply string) *MockFallback {
	return &MockFallback{
		RespondFunc: func(ctx context.Context, text string) (string, error) {
			return reply, nil
		},
	}
}

func (m *MockFallback) Respond(ctx context.Context, text string) (string, error) {
	m.record("Respond", text)
	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, text)
	}
	return text, nil
}

// WithLatency delays every StopAndTranscribe by d, honouring ctx.
func (m *MockTranscriber) WithLatency(d time.Duration) *MockTranscriber {
	original := m.TranscribeFunc
	m.TranscribeFunc = func(ctx context.Context) (Transcript, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return Transcript{}, ctx.Err()
		}
		if original != nil {
			return original(ctx)
		}
		return Transcript{}, nil
	}
	return m
}

// Verify mocks implement the collaborator interfaces at compile time.
var (
	_ Transcriber            = (*MockTranscriber)(nil)
	_ Synthesizer            = (*MockSynthesizer)(nil)
	_ ConversationalFallback = (*MockFallback)(nil)
)
