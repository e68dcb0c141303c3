package web

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-autovoice/pkg/stt"
	"github.com/teslashibe/go-autovoice/pkg/voice"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

var (
	errNoOrchestrator = errors.New("web: interactions are not enabled")
	errNoInbox        = errors.New("web: transcript submission is not enabled")
	errNoTranscriber  = errors.New("web: audio transcription is not enabled")
	errNoResult       = errors.New("web: no interaction has finished yet")
	errUnknownCommand = errors.New("web: unknown command")
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{voice.ErrAlreadyInProgress, fiber.StatusConflict, "INTERACTION_IN_PROGRESS"},
	{voice.ErrInvalidMode, fiber.StatusBadRequest, "INVALID_MODE"},
	{voice.ErrInvalidTimeout, fiber.StatusBadRequest, "INVALID_TIMEOUT"},
	{voice.ErrNoFallback, fiber.StatusUnprocessableEntity, "NO_FALLBACK"},
	{stt.ErrNotRecording, fiber.StatusConflict, "NOT_LISTENING"},
	{stt.ErrAlreadySubmitted, fiber.StatusConflict, "ALREADY_SUBMITTED"},
	{stt.ErrNoAudio, fiber.StatusBadRequest, "NO_AUDIO"},
	{errNoOrchestrator, fiber.StatusServiceUnavailable, "INTERACTIONS_DISABLED"},
	{errNoInbox, fiber.StatusServiceUnavailable, "TRANSCRIPTS_DISABLED"},
	{errNoTranscriber, fiber.StatusServiceUnavailable, "TRANSCRIPTION_DISABLED"},
	{errNoResult, fiber.StatusNotFound, "NO_RESULT"},
	{errUnknownCommand, fiber.StatusBadRequest, "UNKNOWN_COMMAND"},
}

// fail maps err to a status and writes an ErrorResponse.
func (s *Server) fail(c *fiber.Ctx, err error, operation string) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			s.logger.Warn("request failed",
				"path", c.Path(),
				"operation", operation,
				"code", m.code,
				"error", err,
			)
			return c.Status(m.status).JSON(ErrorResponse{Error: err.Error(), Code: m.code})
		}
	}

	s.logger.Error("request failed",
		"path", c.Path(),
		"operation", operation,
		"error", err,
	)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
}

// badRequest reports a body that could not be parsed.
func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "invalid request body",
		Code:    "BAD_REQUEST",
		Details: err.Error(),
	})
}

// validationFailed reports the fields that failed validation.
func validationFailed(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return badRequest(c, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" failed "+fe.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "validation failed",
		Code:    "VALIDATION_FAILED",
		Details: strings.Join(fields, "; "),
	})
}
