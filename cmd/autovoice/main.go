// autovoice recognizes vehicle voice commands and runs spoken interactions.
//
//	autovoice serve              # HTTP + websocket API
//	autovoice classify <text>    # recognize a command in text
//	autovoice extract <cmd> <text>
//	autovoice repl               # type utterances, hear responses
//	autovoice watch              # follow a server's state stream
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-autovoice/internal/config"
	ilog "github.com/teslashibe/go-autovoice/internal/log"
)

var version = "dev"

// app is the state shared by every subcommand.
type app struct {
	envFile  string
	logLevel string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "autovoice",
		Short:         "Vehicle voice command recognition and interaction",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logCloser != nil {
				a.logCloser.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to load when present")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		a.serveCommand(),
		a.classifyCommand(),
		a.extractCommand(),
		a.replCommand(),
		a.watchCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	a.logger, a.logCloser = ilog.New(ilog.Options{
		Level:  cfg.LogLevel,
		JSON:   cfg.IsProduction(),
		Output: os.Stderr,
		File:   cfg.LogFile,
	})
	slog.SetDefault(a.logger)
	return nil
}
