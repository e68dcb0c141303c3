package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-autovoice/pkg/stt"
	"github.com/teslashibe/go-autovoice/pkg/voice"
	"github.com/teslashibe/go-autovoice/pkg/web"
)

func (a *app) serveCommand() *cobra.Command {
	var (
		addr string
		mic  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and websocket API",
		Long: `Serve the HTTP and websocket API.

By default transcripts are pushed over HTTP (POST /api/transcripts or an
audio upload to /api/transcripts/audio). With --mic the server records from
AUDIO_DEVICE and transcribes with Whisper instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			return a.serve(cmd.Context(), addr, mic)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides AUTOVOICE_ADDR)")
	cmd.Flags().BoolVar(&mic, "mic", false, "record from the local microphone")
	return cmd
}

func (a *app) serve(ctx context.Context, addr string, mic bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := a.logger
	var res closers
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	store, err := newHistory(ctx, a.cfg, logger)
	if err != nil {
		return err
	}
	res.add(store)
	logger.Info("history backend ready", "backend", a.cfg.HistoryBackend)

	whisper, err := newWhisper(a.cfg, logger)
	if err != nil {
		return err
	}
	fallback, chatCloser, err := newFallback(ctx, a.cfg, logger)
	if err != nil {
		return err
	}
	if chatCloser != nil {
		res.add(chatCloser)
	}
	synth, ttsCloser, err := newSynthesizer(a.cfg, logger, os.Stdout)
	if err != nil {
		return err
	}
	if ttsCloser != nil {
		res.add(ttsCloser)
	}

	opts := []web.Option{
		web.WithHistory(store),
		web.WithCacheSize(a.cfg.CacheSize),
		web.WithLogger(logger),
	}

	var transcriber voice.Transcriber
	switch {
	case mic:
		if whisper == nil {
			return errors.New("--mic requires OPENAI_API_KEY for Whisper")
		}
		transcriber = newMicrophone(a.cfg, whisper, logger)
	default:
		inbox := stt.NewInbox()
		transcriber = inbox
		opts = append(opts, web.WithInbox(inbox))
		if whisper != nil {
			opts = append(opts, web.WithTranscriptionProvider(whisper))
		}
	}
	if whisper != nil {
		res.add(whisper)
	}

	orch, err := newOrchestrator(a.cfg, transcriber, synth, fallback, logger)
	if err != nil {
		return err
	}
	opts = append(opts, web.WithOrchestrator(orch))

	server, err := web.NewServer(opts...)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, addr)
	})
	g.Go(func() error {
		changes, unsubscribe := orch.Subscribe(16)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ch := <-changes:
				logger.Debug("session", "from", ch.From, "to", ch.To, "event", ch.Event)
			}
		}
	})

	logger.Info("🚗 autovoice serving", "addr", addr, "mic", mic, "fallback", fallback != nil)
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
