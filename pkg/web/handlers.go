package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-autovoice/pkg/command"
	"github.com/teslashibe/go-autovoice/pkg/history"
	"github.com/teslashibe/go-autovoice/pkg/voice"
)

const (
	defaultSuggestions = 3
	maxSuggestions     = 20
)

// handleHealth reports liveness and a few counters.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:       "ok",
		Commands:     s.classifier.Registry().Len(),
		Interactions: s.orch != nil,
		Clients:      s.stateHub.ClientCount(),
	}
	if s.orch != nil {
		resp.State = s.orch.State()
	}
	if s.cache != nil {
		resp.CachedInputs = s.cache.Len()
	}
	return c.JSON(resp)
}

// handleListCommands returns every registered command and its phrases.
func (s *Server) handleListCommands(c *fiber.Ctx) error {
	entries := s.classifier.Registry().Entries()
	out := make([]CommandInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, CommandInfo{Command: e.Variant, Phrases: e.Phrases})
	}
	return c.JSON(out)
}

// handleClassify recognizes a command in free text.
func (s *Server) handleClassify(c *fiber.Ctx) error {
	var req ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	res := s.recognize(req.Text)
	resp := ClassifyResponse{
		Command:         res.Command,
		Confidence:      res.Confidence,
		Success:         res.IsSuccess(),
		OriginalInput:   req.Text,
		NormalizedInput: res.NormalizedInput,
		Parameters:      res.Parameters(),
		Response:        voice.Confirmation(res.Command, res.Params),
	}
	if res.Command == command.Unknown {
		resp.Suggestions = s.classifier.Registry().Suggest(req.Text, defaultSuggestions)
	}
	return c.JSON(resp)
}

// recognize classifies text through the cache, keyed by normalized input.
func (s *Server) recognize(text string) command.Result {
	if s.cache == nil {
		return s.classifier.Recognize(text)
	}
	key := command.Normalize(text)
	if res, ok := s.cache.Get(key); ok {
		return res
	}
	res := s.classifier.Recognize(text)
	s.cache.Add(key, res)
	return res
}

// handleExtract runs the extractor of a named command over text.
func (s *Server) handleExtract(c *fiber.Ctx) error {
	var req ExtractRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	v, err := command.ParseVariant(req.Command)
	if err != nil {
		return s.fail(c, errUnknownCommand, "extract")
	}
	return c.JSON(ExtractResponse{
		Command:    v,
		Parameters: command.ExtractParameters(req.Text, v),
	})
}

// handleSuggest lists registered phrases close to ?text=.
func (s *Server) handleSuggest(c *fiber.Ctx) error {
	n := c.QueryInt("n", defaultSuggestions)
	if n < 1 {
		n = defaultSuggestions
	}
	if n > maxSuggestions {
		n = maxSuggestions
	}
	out := s.classifier.Registry().Suggest(c.Query("text"), n)
	if out == nil {
		out = []command.Suggestion{}
	}
	return c.JSON(out)
}

// handleHistory lists recent interactions.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	var q history.Query
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, err)
	}
	entries, err := s.history.Recent(c.UserContext(), q)
	if err != nil {
		return s.fail(c, err, "history")
	}
	return c.JSON(entries)
}

// handleHistoryStats returns per-command and per-outcome counts.
func (s *Server) handleHistoryStats(c *fiber.Ctx) error {
	stats, err := s.history.Stats(c.UserContext())
	if err != nil {
		return s.fail(c, err, "history_stats")
	}
	return c.JSON(stats)
}
