package web

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-autovoice/pkg/history"
	"github.com/teslashibe/go-autovoice/pkg/hub"
	"github.com/teslashibe/go-autovoice/pkg/session"
	"github.com/teslashibe/go-autovoice/pkg/stt"
	"github.com/teslashibe/go-autovoice/pkg/voice"
)

// maxAudioBytes bounds uploaded recordings.
const maxAudioBytes = 20 * 1024 * 1024

// handleState returns the session state.
func (s *Server) handleState(c *fiber.Ctx) error {
	if s.orch == nil {
		return s.fail(c, errNoOrchestrator, "state")
	}
	resp := StateResponse{State: s.orch.State()}
	if s.inbox != nil {
		resp.Listening = s.inbox.Listening()
	}
	return c.JSON(resp)
}

// handleStartInteraction starts an interaction. It runs in the background
// unless the request sets wait, in which case the finished result is returned.
func (s *Server) handleStartInteraction(c *fiber.Ctx) error {
	if s.orch == nil {
		return s.fail(c, errNoOrchestrator, "start")
	}
	var req StartRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
	}
	if err := s.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}
	vreq := voice.Request{
		Mode:         voice.Mode(req.Mode),
		LanguageHint: req.Language,
		Timeout:      time.Duration(req.TimeoutMs) * time.Millisecond,
	}

	if req.Wait {
		res, err := s.orch.Start(c.UserContext(), vreq)
		if err != nil {
			return s.fail(c, err, "start")
		}
		s.publishResult(c.UserContext(), res)
		return c.JSON(NewResultResponse(res))
	}

	var opened <-chan struct{}
	if s.inbox != nil {
		opened = s.inbox.Opened()
	}
	done, err := s.orch.Begin(s.ctx, vreq)
	if err != nil {
		return s.fail(c, err, "start")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if res, ok := <-done; ok {
			s.publishResult(s.ctx, res)
		}
	}()

	// let a client that posts a transcript right after this response find
	// the inbox open
	if opened != nil {
		select {
		case <-opened:
		case <-time.After(time.Second):
		}
	}
	return c.Status(fiber.StatusAccepted).JSON(StartResponse{
		Status: "started",
		State:  s.orch.State(),
	})
}

// publishResult records a finished interaction and broadcasts it.
func (s *Server) publishResult(ctx context.Context, res *voice.Result) {
	// the interaction is over; store it even if the request went away
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := history.Record(storeCtx, s.history, res); err != nil {
		s.logger.Warn("failed to record interaction", "id", res.ID, "error", err)
	}
	if err := s.stateHub.Publish(hub.EventResult, NewResultResponse(res)); err != nil {
		s.logger.Warn("failed to publish result", "id", res.ID, "error", err)
	}
}

// handleCancelInteraction cancels the running interaction, if any.
func (s *Server) handleCancelInteraction(c *fiber.Ctx) error {
	if s.orch == nil {
		return s.fail(c, errNoOrchestrator, "cancel")
	}
	if err := s.orch.Cancel(); err != nil {
		return s.fail(c, err, "cancel")
	}
	return c.JSON(StateResponse{State: s.orch.State()})
}

// handleLastInteraction returns the most recent finished interaction.
func (s *Server) handleLastInteraction(c *fiber.Ctx) error {
	if s.orch == nil {
		return s.fail(c, errNoOrchestrator, "last")
	}
	res := s.orch.LastResult()
	if res == nil {
		return s.fail(c, errNoResult, "last")
	}
	return c.JSON(NewResultResponse(res))
}

// handleSubmitTranscript pushes recognized text into the open recording.
func (s *Server) handleSubmitTranscript(c *fiber.Ctx) error {
	if s.inbox == nil {
		return s.fail(c, errNoInbox, "transcript")
	}
	var req TranscriptRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	if err := s.inbox.Submit(req.Text, confidence); err != nil {
		return s.fail(c, err, "transcript")
	}
	return c.Status(fiber.StatusAccepted).JSON(TranscriptResponse{
		Accepted:   true,
		Text:       req.Text,
		Confidence: confidence,
	})
}

// handleSubmitAudio transcribes an uploaded recording (form field "audio")
// and pushes the text into the open recording.
func (s *Server) handleSubmitAudio(c *fiber.Ctx) error {
	if s.inbox == nil {
		return s.fail(c, errNoInbox, "audio")
	}
	if s.transcriber == nil {
		return s.fail(c, errNoTranscriber, "audio")
	}
	if !s.inbox.Listening() {
		return s.fail(c, stt.ErrNotRecording, "audio")
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		return badRequest(c, err)
	}
	if fh.Size == 0 {
		return s.fail(c, stt.ErrNoAudio, "audio")
	}
	if fh.Size > maxAudioBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(ErrorResponse{
			Error: "recording too large",
			Code:  "AUDIO_TOO_LARGE",
		})
	}
	f, err := fh.Open()
	if err != nil {
		return s.fail(c, err, "audio")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return s.fail(c, err, "audio")
	}

	tr, err := s.transcriber.Transcribe(c.UserContext(), &stt.AudioInput{
		Data:     data,
		Filename: filepath.Base(fh.Filename),
		Language: s.inbox.Language(),
	})
	if err != nil {
		var apiErr *stt.APIError
		if errors.As(err, &apiErr) {
			return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
				Error: err.Error(),
				Code:  "TRANSCRIPTION_FAILED",
			})
		}
		return s.fail(c, err, "audio")
	}

	if err := s.inbox.Submit(tr.Text, tr.Confidence); err != nil {
		return s.fail(c, err, "audio")
	}
	return c.Status(fiber.StatusAccepted).JSON(TranscriptResponse{
		Accepted:   true,
		Text:       tr.Text,
		Confidence: tr.Confidence,
	})
}

// handleMetrics returns phase timings.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	if s.orch == nil {
		return s.fail(c, errNoOrchestrator, "metrics")
	}
	m := s.orch.Metrics()
	return c.JSON(MetricsResponse{
		Last:    m.Last(),
		Average: m.Average(),
		Count:   m.Count(),
	})
}

// handleStateWS streams state changes and results. New clients first get
// the current state.
func (s *Server) handleStateWS(c *websocket.Conn) {
	var initial []hub.Message
	if s.orch != nil {
		msg, err := hub.NewEvent(hub.EventState, session.Change{
			From: s.orch.State(),
			To:   s.orch.State(),
			At:   time.Now().UTC(),
		}).Encode()
		if err == nil {
			initial = append(initial, msg)
		}
	}
	hub.NewClient(s.stateHub, c, initial...).Run()
}
