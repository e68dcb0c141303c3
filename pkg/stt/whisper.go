package stt

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-autovoice/internal/httpc"
)

const providerWhisper = "whisper"

// Whisper implements Provider with the OpenAI transcription API.
type Whisper struct {
	config *Config
	client *openai.Client
	logger *slog.Logger
}

// NewWhisper creates a Whisper provider.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = httpc.NewClient(cfg.Timeout)

	return &Whisper{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
		logger: cfg.Logger.With("component", "stt.whisper"),
	}, nil
}

// Transcribe uploads the clip and returns its text with a confidence derived
// from the per-segment log probabilities.
func (w *Whisper) Transcribe(ctx context.Context, audio *AudioInput) (*Transcription, error) {
	if audio == nil || len(audio.Data) == 0 {
		return nil, WrapError(providerWhisper, ErrNoAudio)
	}
	start := time.Now()

	lang := audio.Language
	if lang == "" {
		lang = w.config.Language
	}
	name := audio.Filename
	if name == "" {
		name = "clip.wav"
	}

	var (
		resp    openai.AudioResponse
		lastErr error
	)
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}
		var err error
		resp, err = w.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    w.config.ModelID,
			FilePath: name,
			Reader:   bytes.NewReader(audio.Data),
			Prompt:   w.config.Prompt,
			Language: lang,
			Format:   openai.AudioResponseFormatVerboseJSON,
		})
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = fromOpenAI(providerWhisper, err)
		if apiErr, ok := lastErr.(*APIError); !ok || !apiErr.IsRetryable() {
			return nil, lastErr
		}
		w.logger.Warn("retrying request", "attempt", attempt+1, "error", lastErr)
	}
	if lastErr != nil {
		return nil, lastErr
	}

	text := strings.TrimSpace(resp.Text)
	result := &Transcription{
		Text:       text,
		Confidence: segmentConfidence(resp, text),
		Language:   resp.Language,
		Duration:   time.Duration(resp.Duration * float64(time.Second)),
		LatencyMs:  time.Since(start).Milliseconds(),
	}
	if result.Language == "" {
		result.Language = lang
	}

	w.logger.Debug("transcribed clip",
		"bytes", len(audio.Data),
		"chars", len(text),
		"confidence", result.Confidence,
		"latency_ms", result.LatencyMs,
	)
	return result, nil
}

// segmentConfidence averages exp(avg_logprob) across segments, discounted by
// the probability that a segment holds no speech. Without segments a
// non-empty transcript is taken at face value.
func segmentConfidence(resp openai.AudioResponse, text string) float64 {
	if text == "" {
		return 0
	}
	if len(resp.Segments) == 0 {
		return 1
	}
	var sum float64
	for _, seg := range resp.Segments {
		sum += math.Exp(seg.AvgLogprob) * (1 - seg.NoSpeechProb)
	}
	return clamp01(sum / float64(len(resp.Segments)))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Health checks API connectivity by listing models.
func (w *Whisper) Health(ctx context.Context) error {
	if _, err := w.client.ListModels(ctx); err != nil {
		return fromOpenAI(providerWhisper, err)
	}
	return nil
}

// Close releases resources.
func (w *Whisper) Close() error {
	return nil
}

// Verify Whisper implements Provider at compile time.
var _ Provider = (*Whisper)(nil)
