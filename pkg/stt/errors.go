package stt

import (
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrNoAudio is returned when a clip contains no audio.
	ErrNoAudio = errors.New("stt: no audio captured")

	// ErrNotRecording is returned by StopAndTranscribe without a prior StartRecording.
	ErrNotRecording = errors.New("stt: not recording")

	// ErrAlreadyRecording is returned when StartRecording is called twice.
	ErrAlreadyRecording = errors.New("stt: already recording")

	// ErrCancelled is returned when a recording was aborted with Cancel.
	ErrCancelled = errors.New("stt: recording cancelled")

	// ErrClosed is returned after the transcriber has been closed.
	ErrClosed = errors.New("stt: closed")
)

// APIError represents an error response from a speech-to-text API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stt [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("stt [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable returns true for rate limits and server errors.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("stt [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

func fromOpenAI(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Code: code, Provider: provider}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Provider: provider}
	}
	return WrapError(provider, err)
}
