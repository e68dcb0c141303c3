package voice

import "context"

// Transcript is the text recognized from one recording.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcriber captures speech and turns it into text.
// Implementations handle one recording at a time.
type Transcriber interface {
	// StartRecording begins capturing audio. languageHint may be empty.
	StartRecording(ctx context.Context, languageHint string) error

	// StopAndTranscribe waits for the recording to end and returns its transcript.
	// It must return promptly once ctx is done or Cancel is called.
	StopAndTranscribe(ctx context.Context) (Transcript, error)

	// Cancel aborts the current recording without transcribing it.
	Cancel() error
}

// Synthesizer speaks text aloud.
type Synthesizer interface {
	// Speak plays text and returns when playback finished.
	// It must return promptly once ctx is done or Stop is called.
	Speak(ctx context.Context, text string) error

	// Stop interrupts playback.
	Stop() error
}

// ConversationalFallback answers free text that is not a command.
type ConversationalFallback interface {
	Respond(ctx context.Context, text string) (string, error)
}

// Mode selects how a transcript is handled.
type Mode string

const (
	// ModeCommand classifies the transcript and falls back to conversation on no match.
	ModeCommand Mode = "command"

	// ModeConversational sends the transcript straight to the fallback.
	ModeConversational Mode = "conversational"

	// ModeDictation returns the transcript itself.
	ModeDictation Mode = "dictation"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeCommand, ModeConversational, ModeDictation:
		return true
	}
	return false
}
