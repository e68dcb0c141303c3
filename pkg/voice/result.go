package voice

import (
	"time"

	"github.com/teslashibe/go-autovoice/pkg/command"
)

// Outcome is the terminal classification of an interaction.
type Outcome string

const (
	OutcomeCommand             Outcome = "command"
	OutcomeConversation        Outcome = "conversation"
	OutcomeDictation           Outcome = "dictation"
	OutcomeNoMatch             Outcome = "no-match"
	OutcomeStartFailed         Outcome = "start-failed"
	OutcomeTranscriptionFailed Outcome = "transcription-failed"
	OutcomeCancelled           Outcome = "cancelled"
)

// Request configures one interaction.
type Request struct {
	// Mode defaults to Config.DefaultMode.
	Mode Mode

	// LanguageHint is passed to the transcriber, e.g. "en".
	LanguageHint string

	// Timeout bounds listening. Zero uses Config.ListenTimeout.
	Timeout time.Duration
}

// Result describes a finished interaction.
//
// Outcome always distinguishes success, no match, collaborator failure and
// cancellation. A response that was computed but could not be spoken keeps its
// Outcome and Success and reports the playback error in SpeechErr.
type Result struct {
	ID      string  `json:"id"`
	Mode    Mode    `json:"mode"`
	Outcome Outcome `json:"outcome"`
	Success bool    `json:"success"`

	Transcript           string  `json:"transcript,omitempty"`
	TranscriptConfidence float64 `json:"transcriptConfidence,omitempty"`

	// Command and Confidence are set in command mode, Unknown included.
	Command    command.Variant `json:"command"`
	Confidence float64         `json:"confidence"`
	Params     command.Params  `json:"-"`

	Response   string `json:"response,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Spoken     bool   `json:"spoken"`
	Degraded   bool   `json:"degraded,omitempty"`

	Err       error `json:"-"`
	SpeechErr error `json:"-"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Metrics   Metrics       `json:"metrics"`
}

// Parameters returns the extracted command parameters as a map. It is never nil.
func (r *Result) Parameters() map[string]any {
	if r.Params == nil {
		return map[string]any{}
	}
	return r.Params.Map()
}

// ErrorText returns the text of Err, or "".
func (r *Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (r *Result) fail(outcome Outcome, err error) {
	r.Outcome = outcome
	r.Success = false
	r.Err = err
}
