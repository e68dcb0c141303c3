package inference

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/teslashibe/go-autovoice/pkg/voice"
)

// DefaultPersona keeps answers short enough to be spoken while driving.
const DefaultPersona = `You are the voice assistant of a car. The driver is talking to you while driving.
Answer in one or two short sentences of plain spoken English. Never use lists, markdown, emoji or URLs.
If the driver asks you to operate the vehicle, say you can do that when they phrase it as a command.`

// DefaultHistoryTurns is how many exchanges the assistant remembers.
const DefaultHistoryTurns = 6

// Assistant holds a conversation with a Provider and implements
// voice.ConversationalFallback.
type Assistant struct {
	provider Provider
	persona  string
	turns    int
	logger   *slog.Logger

	mu      sync.Mutex
	history []Message
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithPersona replaces the system prompt.
func WithPersona(persona string) AssistantOption {
	return func(a *Assistant) { a.persona = persona }
}

// WithHistoryTurns bounds the remembered exchanges. Zero disables memory.
func WithHistoryTurns(n int) AssistantOption {
	return func(a *Assistant) {
		if n >= 0 {
			a.turns = n
		}
	}
}

// WithAssistantLogger sets the logger.
func WithAssistantLogger(l *slog.Logger) AssistantOption {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAssistant creates an assistant over provider.
func NewAssistant(provider Provider, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		provider: provider,
		persona:  DefaultPersona,
		turns:    DefaultHistoryTurns,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "inference.assistant")
	return a
}

// Respond answers text, remembering the exchange on success.
func (a *Assistant) Respond(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoMessages
	}

	a.mu.Lock()
	messages := make([]Message, 0, len(a.history)+2)
	if a.persona != "" {
		messages = append(messages, NewSystemMessage(a.persona))
	}
	messages = append(messages, a.history...)
	a.mu.Unlock()
	messages = append(messages, NewUserMessage(text))

	resp, err := a.provider.Chat(ctx, &ChatRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(resp.Message.Content)
	if reply == "" {
		return "", ErrEmptyResponse
	}

	a.remember(NewUserMessage(text), NewAssistantMessage(reply))
	a.logger.Debug("assistant replied",
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
		"latency_ms", resp.LatencyMs,
	)
	return reply, nil
}

func (a *Assistant) remember(turn ...Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.turns == 0 {
		return
	}
	a.history = append(a.history, turn...)
	if limit := a.turns * 2; len(a.history) > limit {
		a.history = append([]Message(nil), a.history[len(a.history)-limit:]...)
	}
}

// History returns a copy of the remembered dialogue.
func (a *Assistant) History() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Message(nil), a.history...)
}

// Forget clears the remembered dialogue.
func (a *Assistant) Forget() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

// Verify Assistant implements voice.ConversationalFallback at compile time.
var _ voice.ConversationalFallback = (*Assistant)(nil)
