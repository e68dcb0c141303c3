package voice

import "errors"

// Caller errors returned synchronously by Start.
var (
	ErrAlreadyInProgress = errors.New("voice: interaction already in progress")
	ErrInvalidMode       = errors.New("voice: invalid interaction mode")
	ErrInvalidTimeout    = errors.New("voice: timeout must not be negative")
	ErrNoFallback        = errors.New("voice: conversational mode requires a fallback")
)

// Interaction errors carried in Result.Err and Result.SpeechErr.
var (
	// ErrStartFailed means recording could not begin.
	ErrStartFailed = errors.New("voice: failed to start recording")

	// ErrTranscriptionFailed means recording finished without a usable transcript.
	ErrTranscriptionFailed = errors.New("voice: transcription failed")

	// ErrEmptyTranscript means the transcriber returned no text.
	ErrEmptyTranscript = errors.New("voice: empty transcript")

	// ErrListenTimeout means no transcript arrived before the listen timeout.
	ErrListenTimeout = errors.New("voice: listen timeout")

	// ErrCancelled means the interaction was cancelled.
	ErrCancelled = errors.New("voice: interaction cancelled")

	// ErrNoMatch means no command matched and no fallback was configured.
	ErrNoMatch = errors.New("voice: no command matched")

	// ErrFallbackFailed means the conversational fallback failed or returned nothing.
	ErrFallbackFailed = errors.New("voice: conversational fallback failed")

	// ErrSynthesisFailed means the response could not be spoken.
	ErrSynthesisFailed = errors.New("voice: speech synthesis failed")

	errEmptyReply = errors.New("empty reply")
)
