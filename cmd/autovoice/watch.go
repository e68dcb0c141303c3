package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-autovoice/pkg/hub"
	"github.com/teslashibe/go-autovoice/pkg/session"
	"github.com/teslashibe/go-autovoice/pkg/web"
)

func (a *app) watchCommand() *cobra.Command {
	var (
		url string
		raw bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow session state and results of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return web.Watch(ctx, url, func(ev web.WatchEvent) error {
				return printEvent(os.Stdout, ev, raw)
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws/state", "state stream URL")
	cmd.Flags().BoolVar(&raw, "raw", false, "print events as JSON lines")
	return cmd
}

type resultSummary struct {
	Outcome    string         `json:"outcome"`
	Transcript string         `json:"transcript"`
	Command    string         `json:"command"`
	Confidence float64        `json:"confidence"`
	Parameters map[string]any `json:"parameters"`
	Response   string         `json:"response"`
	Error      string         `json:"error"`
}

func printEvent(w io.Writer, ev web.WatchEvent, raw bool) error {
	ts := ev.Time.Local().Format("15:04:05.000")
	if raw {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	switch ev.Type {
	case hub.EventState:
		var ch session.Change
		if err := json.Unmarshal(ev.Data, &ch); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s  %-10s → %-10s %s\n", ts, ch.From, ch.To, ch.Event)
	case hub.EventResult:
		var r resultSummary
		if err := json.Unmarshal(ev.Data, &r); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s  %s %q\n", ts, r.Outcome, r.Transcript)
		if r.Command != "" {
			fmt.Fprintf(w, "              %s (%.2f) %v\n", r.Command, r.Confidence, r.Parameters)
		}
		if r.Response != "" {
			fmt.Fprintf(w, "              🔊 %s\n", r.Response)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "              ⚠️  %s\n", r.Error)
		}
	default:
		fmt.Fprintf(w, "%s  %s\n", ts, ev.Type)
	}
	return nil
}
