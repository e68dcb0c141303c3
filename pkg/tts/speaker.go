package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-autovoice/pkg/voice"
)

// Speaker synthesizes text with a Provider and plays it with a Player.
// Stop interrupts whichever of the two is in flight.
type Speaker struct {
	provider Provider
	player   Player
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// SpeakerOption configures a Speaker.
type SpeakerOption func(*Speaker)

// WithSpeakerLogger sets the logger used by the speaker.
func WithSpeakerLogger(logger *slog.Logger) SpeakerOption {
	return func(s *Speaker) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpeaker creates a speaker.
func NewSpeaker(provider Provider, player Player, opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		provider: provider,
		player:   player,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "tts.speaker")
	return s
}

// Speak synthesizes and plays text, returning ErrStopped if Stop was called
// before playback finished.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	ctx, cancel := context.WithCancel(ctx)
	gen := s.arm(cancel)
	defer s.disarm(gen)

	audio, err := s.provider.Synthesize(ctx, text)
	if err != nil {
		return s.interrupted(ctx, gen, err)
	}
	s.logger.Debug("playing clip",
		"bytes", len(audio.Audio),
		"encoding", audio.Format.Encoding,
		"latency_ms", audio.LatencyMs,
	)
	if err := s.player.Play(ctx, audio); err != nil {
		return s.interrupted(ctx, gen, err)
	}
	return nil
}

// Stop interrupts the current Speak call, if any.
func (s *Speaker) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (s *Speaker) arm(cancel context.CancelFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	return s.gen
}

func (s *Speaker) disarm(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// interrupted maps errors caused by Stop to ErrStopped. Stop clears the cancel
// func before cancelling, which distinguishes it from the caller's ctx ending.
func (s *Speaker) interrupted(ctx context.Context, gen uint64, err error) error {
	if ctx.Err() == nil {
		return err
	}
	s.mu.Lock()
	stopped := s.gen != gen || s.cancel == nil
	s.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	return err
}

// Console is a Synthesizer that prints responses instead of speaking them.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole writes each spoken line to w.
func NewConsole(w io.Writer) *Console {
	return &Console{out: w}
}

// Speak writes text followed by a newline.
func (c *Console) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if text == "" {
		return ErrEmptyText
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "🔊 %s\n", text)
	return err
}

// Stop is a no-op; console output is instantaneous.
func (c *Console) Stop() error {
	return nil
}

// IsStopped reports whether err came from Speaker.Stop.
func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped)
}

// Verify synthesizers implement voice.Synthesizer at compile time.
var (
	_ voice.Synthesizer = (*Speaker)(nil)
	_ voice.Synthesizer = (*Console)(nil)
)
