// Package tts turns response text into speech for the voice orchestrator.
//
// A Provider synthesizes audio; a Player renders it. Speaker glues the two into
// a voice.Synthesizer whose playback can be interrupted. Providers can be
// combined with Chain so that a failing backend falls through to the next one.
//
// Example usage:
//
//	provider, _ := tts.NewOpenAI(
//	    tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    tts.WithVoice(tts.VoiceNova),
//	)
//	defer provider.Close()
//
//	speaker := tts.NewSpeaker(provider, tts.NewCommandPlayer("mpg123", "-q", "-"))
//	_ = speaker.Speak(ctx, "Locking the doors.")
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
// All implementations must satisfy this interface for seamless provider switching.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the encoded audio data.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated playback duration, zero when unknown.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request latency in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	EncodingMP3  Encoding = "mp3"
	EncodingOpus Encoding = "opus"
	EncodingAAC  Encoding = "aac"
	EncodingFLAC Encoding = "flac"
	EncodingWAV  Encoding = "wav"
	EncodingPCM  Encoding = "pcm" // 24kHz mono PCM16
)

// Extension returns the file extension for the encoding, without the dot.
func (e Encoding) Extension() string {
	switch e {
	case EncodingPCM:
		return "raw"
	case "":
		return "bin"
	default:
		return string(e)
	}
}

// SampleRateFromEncoding returns the sample rate produced for an encoding.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM, EncodingOpus:
		return 24000
	default:
		return 44100
	}
}
