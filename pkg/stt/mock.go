package stt

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, Transcribe returns an empty transcription.
	TranscribeFunc func(ctx context.Context, audio *AudioInput) (*Transcription, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Bytes  int
	Time   time.Time
}

// NewMock returns a mock that always hears text with the given confidence.
func NewMock(text string, confidence float64) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, audio *AudioInput) (*Transcription, error) {
			if audio == nil || len(audio.Data) == 0 {
				return nil, WrapError("mock", ErrNoAudio)
			}
			return &Transcription{
				Text:       text,
				Confidence: confidence,
				Language:   audio.Language,
				Duration:   audio.Duration,
				LatencyMs:  1,
			}, nil
		},
	}
}

// Transcribe calls TranscribeFunc and records the call.
func (m *Mock) Transcribe(ctx context.Context, audio *AudioInput) (*Transcription, error) {
	n := 0
	if audio != nil {
		n = len(audio.Data)
	}
	m.record("Transcribe", n)
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio)
	}
	return &Transcription{}, nil
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", 0)
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close records the call.
func (m *Mock) Close() error {
	m.record("Close", 0)
	return nil
}

func (m *Mock) record(method string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Bytes: n, Time: time.Now()})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, audio *AudioInput) (*Transcription, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error { return err },
	}
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
