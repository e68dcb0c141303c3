package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-autovoice/pkg/history"
	"github.com/teslashibe/go-autovoice/pkg/stt"
	"github.com/teslashibe/go-autovoice/pkg/voice"
)

func (a *app) replCommand() *cobra.Command {
	var (
		mode  string
		speak bool
	)
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Type utterances and hear the responses",
		Long: `Run interactions from the terminal. Each line is one utterance.
Responses are printed, or spoken with --speak when OPENAI_API_KEY is set.
Conversational fallback is used when a chat provider is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.repl(cmd.Context(), voice.Mode(mode), speak, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "interaction mode: command, conversational or dictation")
	cmd.Flags().BoolVar(&speak, "speak", false, "speak responses instead of printing them")
	return cmd
}

func (a *app) repl(ctx context.Context, mode voice.Mode, speak bool, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := a.logger
	var res closers
	defer func() { res.Close() }()

	fallback, chatCloser, err := newFallback(ctx, a.cfg, logger)
	if err != nil {
		return err
	}
	if chatCloser != nil {
		res.add(chatCloser)
	}

	cfg := *a.cfg
	if !speak {
		cfg.OpenAIAPIKey = ""
	}
	synth, ttsCloser, err := newSynthesizer(&cfg, logger, out)
	if err != nil {
		return err
	}
	if ttsCloser != nil {
		res.add(ttsCloser)
	}

	// the terminal user decides when they are done
	cfg.ListenTimeout = 0
	orch, err := newOrchestrator(&cfg, stt.NewLineTranscriber(in, out), synth, fallback, logger)
	if err != nil {
		return err
	}

	store := history.NewMemoryStore(a.cfg.HistoryCapacity)
	defer printStats(ctx, store, out)

	for {
		result, err := orch.Start(ctx, voice.Request{Mode: mode, LanguageHint: a.cfg.Language})
		if err != nil {
			return err
		}
		if errors.Is(result.Err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if _, err := history.Record(ctx, store, result); err != nil {
			logger.Warn("failed to record interaction", "error", err)
		}
		describe(out, result)
	}
}

func describe(w io.Writer, res *voice.Result) {
	switch res.Outcome {
	case voice.OutcomeCommand, voice.OutcomeNoMatch:
		fmt.Fprintf(w, "   %s (%.2f) %v\n", res.Command, res.Confidence, res.Parameters())
	case voice.OutcomeTranscriptionFailed, voice.OutcomeStartFailed:
		fmt.Fprintf(w, "   ⚠️  %s\n", res.ErrorText())
	}
	if res.Suggestion != "" {
		fmt.Fprintf(w, "   💡 try %q\n", res.Suggestion)
	}
	if res.SpeechErr != nil {
		fmt.Fprintf(w, "   ⚠️  %v\n", res.SpeechErr)
	}
}

func printStats(ctx context.Context, store history.Store, w io.Writer) {
	stats, err := store.Stats(context.WithoutCancel(ctx))
	if err != nil || stats.Total == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d interactions\n", stats.Total)
	for cmd, n := range stats.ByCommand {
		fmt.Fprintf(w, "   %-22s %d\n", cmd, n)
	}
}
