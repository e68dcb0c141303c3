// Package stt turns captured speech into text for the voice orchestrator.
//
// A Provider transcribes a finished clip. Recorder combines a Capture with a
// Provider to implement voice.Transcriber. For hosts without a microphone,
// Inbox accepts transcripts pushed from elsewhere (the HTTP API) and
// LineTranscriber reads them from a terminal.
//
// Example usage:
//
//	provider, _ := stt.NewWhisper(stt.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	capture := stt.NewCommandCapture(stt.DefaultCaptureConfig())
//	rec := stt.NewRecorder(capture, provider)
//	_ = rec.StartRecording(ctx, "en")
//	transcript, _ := rec.StopAndTranscribe(ctx)
package stt

import (
	"context"
	"time"
)

// Provider defines the speech-to-text provider interface.
type Provider interface {
	// Transcribe converts a recorded clip to text.
	Transcribe(ctx context.Context, audio *AudioInput) (*Transcription, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioInput is a complete recorded clip.
type AudioInput struct {
	// Data is the encoded audio, normally a WAV file.
	Data []byte

	// Filename tells the provider which container Data is in, e.g. "clip.wav".
	Filename string

	// Language is an optional ISO-639-1 hint such as "en".
	Language string

	// Duration is the length of the recording, zero when unknown.
	Duration time.Duration
}

// Transcription is the text recognized in a clip.
type Transcription struct {
	Text string

	// Confidence is in [0, 1].
	Confidence float64

	// Language is the detected or hinted language.
	Language string

	// Duration is the audio length reported by the provider.
	Duration time.Duration

	// LatencyMs is the request latency in milliseconds.
	LatencyMs int64
}
