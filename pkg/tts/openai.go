package tts

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-autovoice/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI voice options
const (
	VoiceAlloy   = string(openai.VoiceAlloy)   // Neutral voice
	VoiceEcho    = string(openai.VoiceEcho)    // Male voice
	VoiceFable   = string(openai.VoiceFable)   // British accent
	VoiceOnyx    = string(openai.VoiceOnyx)    // Deep male voice
	VoiceNova    = string(openai.VoiceNova)    // Female voice
	VoiceShimmer = string(openai.VoiceShimmer) // Soft female voice
)

// OpenAI model options
const (
	ModelTTS1   = string(openai.TTSModel1)   // Standard quality, faster
	ModelTTS1HD = string(openai.TTSModel1HD) // Higher quality, slower
)

// OpenAI implements Provider for OpenAI TTS.
type OpenAI struct {
	config *Config
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI TTS provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
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

	return &OpenAI{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
		logger: cfg.Logger.With("component", "tts.openai"),
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyText)
	}
	start := time.Now()

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.config.ModelID),
		Input:          text,
		Voice:          openai.SpeechVoice(o.config.VoiceID),
		ResponseFormat: openai.SpeechResponseFormat(o.config.OutputFormat),
		Speed:          o.config.Speed,
	}

	audio, err := o.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	o.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", o.config.VoiceID,
	)

	return &AudioResult{
		Audio: audio,
		Format: AudioFormat{
			Encoding:   o.config.OutputFormat,
			SampleRate: SampleRateFromEncoding(o.config.OutputFormat),
			Channels:   1,
		},
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health checks API connectivity by listing models.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return fromOpenAI(providerOpenAI, err)
	}
	return nil
}

// Close releases resources.
func (o *OpenAI) Close() error {
	return nil
}

// VoiceID returns the configured voice.
func (o *OpenAI) VoiceID() string {
	return o.config.VoiceID
}

// doWithRetry performs the request, retrying rate limits and server errors.
func (o *OpenAI) doWithRetry(ctx context.Context, req openai.CreateSpeechRequest) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.config.RetryDelay * time.Duration(attempt)):
			}
		}

		resp, err := o.client.CreateSpeech(ctx, req)
		if err != nil {
			lastErr = fromOpenAI(providerOpenAI, err)
			if apiErr, ok := lastErr.(*APIError); ok && apiErr.IsRetryable() {
				o.logger.Warn("retrying request",
					"attempt", attempt+1,
					"status", apiErr.StatusCode,
				)
				continue
			}
			return nil, lastErr
		}

		audio, err := io.ReadAll(resp)
		resp.Close()
		if err != nil {
			return nil, WrapError(providerOpenAI, err)
		}
		return audio, nil
	}

	return nil, lastErr
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
