package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-autovoice/internal/config"
	"github.com/teslashibe/go-autovoice/pkg/command"
	"github.com/teslashibe/go-autovoice/pkg/history"
	"github.com/teslashibe/go-autovoice/pkg/inference"
	"github.com/teslashibe/go-autovoice/pkg/stt"
	"github.com/teslashibe/go-autovoice/pkg/tts"
	"github.com/teslashibe/go-autovoice/pkg/voice"
)

// closers releases resources in reverse order of acquisition.
type closers []io.Closer

func (c *closers) add(cl io.Closer) { *c = append(*c, cl) }

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newClassifier(cfg *config.Config) *command.Classifier {
	return command.NewClassifier(nil, command.WithGate(cfg.Gate))
}

// newHistory opens the configured history backend.
func newHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (history.Store, error) {
	switch cfg.HistoryBackend {
	case config.HistoryRedis:
		rc := history.DefaultRedisConfig()
		rc.Addr = cfg.RedisAddress
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		rc.Capacity = cfg.HistoryCapacity
		rc.Logger = logger
		return history.NewRedisStore(ctx, rc)
	case config.HistoryPostgres:
		store, err := history.OpenPostgres(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return history.NewMemoryStore(cfg.HistoryCapacity), nil
	}
}

// newFallback chains every configured chat provider. It returns nil when
// none is configured.
func newFallback(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*inference.Assistant, io.Closer, error) {
	var providers []inference.Provider

	if cfg.OpenAIAPIKey != "" {
		p, err := inference.NewClient(
			inference.WithAPIKey(cfg.OpenAIAPIKey),
			inference.WithBaseURL(cfg.OpenAIBaseURL),
			inference.WithModel(cfg.ChatModel),
			inference.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("openai chat: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.GeminiAPIKey != "" {
		p, err := inference.NewGemini(ctx,
			inference.WithAPIKey(cfg.GeminiAPIKey),
			inference.WithModel(cfg.GeminiModel),
			inference.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini chat: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.OllamaBaseURL != "" {
		p, err := inference.NewClient(
			inference.WithBaseURL(strings.TrimSuffix(cfg.OllamaBaseURL, "/")+"/v1"),
			inference.WithModel(cfg.OllamaModel),
			inference.WithTimeout(60*time.Second),
			inference.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("ollama chat: %w", err)
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, nil, nil
	}

	chain, err := inference.NewChainWithLogger(logger, providers...)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("conversational fallback enabled", "providers", len(providers))
	return inference.NewAssistant(chain, inference.WithAssistantLogger(logger)), chain, nil
}

// newSynthesizer speaks through OpenAI TTS when a key is set and prints
// responses otherwise.
func newSynthesizer(cfg *config.Config, logger *slog.Logger, console io.Writer) (voice.Synthesizer, io.Closer, error) {
	if cfg.OpenAIAPIKey == "" {
		return tts.NewConsole(console), nil, nil
	}

	provider, err := tts.NewOpenAI(
		tts.WithAPIKey(cfg.OpenAIAPIKey),
		tts.WithBaseURL(cfg.OpenAIBaseURL),
		tts.WithVoice(cfg.TTSVoice),
		tts.WithModel(cfg.TTSModel),
		tts.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("openai tts: %w", err)
	}
	chain, err := tts.NewChain(logger, provider)
	if err != nil {
		return nil, nil, err
	}

	var player tts.Player
	if cfg.AudioDir != "" {
		dp, err := tts.NewDirPlayer(cfg.AudioDir)
		if err != nil {
			return nil, nil, err
		}
		player = dp
	} else {
		name, args := cfg.PlayerArgs()
		if name == "" {
			return nil, nil, errors.New("AUDIO_PLAYER is empty")
		}
		player = tts.NewCommandPlayer(name, args...)
	}
	return tts.NewSpeaker(chain, player, tts.WithSpeakerLogger(logger)), chain, nil
}

// newWhisper returns a Whisper provider, or nil without an OpenAI key.
func newWhisper(cfg *config.Config, logger *slog.Logger) (*stt.Whisper, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, nil
	}
	return stt.NewWhisper(
		stt.WithAPIKey(cfg.OpenAIAPIKey),
		stt.WithBaseURL(cfg.OpenAIBaseURL),
		stt.WithLanguage(cfg.Language),
		stt.WithLogger(logger),
	)
}

// newMicrophone records from AUDIO_DEVICE and transcribes with provider.
func newMicrophone(cfg *config.Config, provider stt.Provider, logger *slog.Logger) *stt.Recorder {
	cc := stt.DefaultCaptureConfig()
	cc.Device = cfg.AudioDevice
	return stt.NewRecorder(stt.NewCommandCapture(cc, logger), provider, logger)
}

// newOrchestrator wires the collaborators with the configured defaults.
func newOrchestrator(cfg *config.Config, t voice.Transcriber, s voice.Synthesizer, fallback *inference.Assistant, logger *slog.Logger) (*voice.Orchestrator, error) {
	vc := voice.DefaultConfig().
		WithDefaultMode(voice.Mode(cfg.DefaultMode)).
		WithListenTimeout(cfg.ListenTimeout)

	opts := []voice.Option{
		voice.WithConfig(vc),
		voice.WithClassifier(newClassifier(cfg)),
		voice.WithLogger(logger),
	}
	if fallback != nil {
		opts = append(opts, voice.WithFallback(fallback))
	}
	return voice.New(t, s, opts...)
}
