package web

import (
	"github.com/teslashibe/go-autovoice/pkg/command"
	"github.com/teslashibe/go-autovoice/pkg/session"
	"github.com/teslashibe/go-autovoice/pkg/voice"
)

// ClassifyRequest is the body of POST /api/classify.
type ClassifyRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// ClassifyResponse describes a recognized command.
type ClassifyResponse struct {
	Command         command.Variant      `json:"command"`
	Confidence      float64              `json:"confidence"`
	Success         bool                 `json:"success"`
	OriginalInput   string               `json:"originalInput"`
	NormalizedInput string               `json:"normalizedInput"`
	Parameters      map[string]any       `json:"parameters"`
	Response        string               `json:"response,omitempty"`
	Suggestions     []command.Suggestion `json:"suggestions,omitempty"`
}

// ExtractRequest is the body of POST /api/extract.
type ExtractRequest struct {
	Text    string `json:"text" validate:"max=1000"`
	Command string `json:"command" validate:"required"`
}

// ExtractResponse holds extracted parameters.
type ExtractResponse struct {
	Command    command.Variant `json:"command"`
	Parameters map[string]any  `json:"parameters"`
}

// CommandInfo lists the phrases of one command.
type CommandInfo struct {
	Command command.Variant `json:"command"`
	Phrases []string        `json:"phrases"`
}

// StartRequest is the body of POST /api/interactions.
type StartRequest struct {
	Mode      string `json:"mode" validate:"omitempty,oneof=command conversational dictation"`
	Language  string `json:"language" validate:"omitempty,max=16"`
	TimeoutMs int    `json:"timeoutMs" validate:"gte=0,lte=600000"`

	// Wait blocks the request until the interaction finishes.
	Wait bool `json:"wait"`
}

// StartResponse acknowledges an interaction started in the background.
type StartResponse struct {
	Status string        `json:"status"`
	State  session.State `json:"state"`
}

// TranscriptRequest is the body of POST /api/transcripts.
type TranscriptRequest struct {
	Text       string   `json:"text" validate:"required,max=1000"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
}

// TranscriptResponse acknowledges a submitted transcript.
type TranscriptResponse struct {
	Accepted   bool    `json:"accepted"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	State     session.State `json:"state"`
	Listening bool          `json:"listening"`
}

// ResultResponse is a finished interaction as JSON.
type ResultResponse struct {
	*voice.Result
	Parameters  map[string]any `json:"parameters"`
	Error       string         `json:"error,omitempty"`
	SpeechError string         `json:"speechError,omitempty"`
}

// NewResultResponse renders res.
func NewResultResponse(res *voice.Result) ResultResponse {
	out := ResultResponse{
		Result:     res,
		Parameters: res.Parameters(),
		Error:      res.ErrorText(),
	}
	if res.SpeechErr != nil {
		out.SpeechError = res.SpeechErr.Error()
	}
	return out
}

// MetricsResponse is the body of GET /api/metrics.
type MetricsResponse struct {
	Last    voice.Metrics `json:"last"`
	Average voice.Metrics `json:"average"`
	Count   int           `json:"count"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status       string        `json:"status"`
	Commands     int           `json:"commands"`
	Interactions bool          `json:"interactions"`
	State        session.State `json:"state,omitempty"`
	Clients      int           `json:"clients"`
	CachedInputs int           `json:"cachedInputs"`
}
