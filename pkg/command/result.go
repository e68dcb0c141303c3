package command

import (
	"errors"
	"time"
)

// ErrEmptyInput is set on a Result whose input normalizes to nothing.
var ErrEmptyInput = errors.New("command: empty input")

// Result is the outcome of one recognition call. It is not modified after creation.
type Result struct {
	Command         Variant   `json:"command"`
	OriginalInput   string    `json:"originalInput"`
	NormalizedInput string    `json:"normalizedInput"`
	Params          Params    `json:"-"`
	Confidence      float64   `json:"confidence"`
	Timestamp       time.Time `json:"timestamp"`
	Err             error     `json:"-"`
}

// IsSuccess reports whether a command was recognized without error.
func (r Result) IsSuccess() bool {
	return r.Err == nil && r.Command != Unknown
}

// Parameters returns the extracted parameters as a map. It is never nil.
func (r Result) Parameters() map[string]any {
	if r.Params == nil {
		return map[string]any{}
	}
	return r.Params.Map()
}
