package main

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-autovoice/pkg/command"
	"github.com/teslashibe/go-autovoice/pkg/voice"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type classifyOutput struct {
	Command         command.Variant      `json:"command"`
	Confidence      float64              `json:"confidence"`
	Success         bool                 `json:"success"`
	NormalizedInput string               `json:"normalizedInput"`
	Parameters      map[string]any       `json:"parameters"`
	Response        string               `json:"response,omitempty"`
	Suggestions     []command.Suggestion `json:"suggestions,omitempty"`
}

func (a *app) classifyCommand() *cobra.Command {
	var suggest int
	cmd := &cobra.Command{
		Use:   "classify <text...>",
		Short: "Recognize a command in text",
		Example: `  autovoice classify "set the temperature to 72 degrees"
  autovoice classify --suggest 3 lok the dors`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			clf := newClassifier(a.cfg)
			res := clf.Recognize(text)

			out := classifyOutput{
				Command:         res.Command,
				Confidence:      res.Confidence,
				Success:         res.IsSuccess(),
				NormalizedInput: res.NormalizedInput,
				Parameters:      res.Parameters(),
				Response:        voice.Confirmation(res.Command, res.Params),
			}
			if res.Command == command.Unknown && suggest > 0 {
				out.Suggestions = clf.Registry().Suggest(text, suggest)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&suggest, "suggest", 3, "closest phrases to list when nothing matches")
	return cmd
}

func (a *app) extractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <command> <text...>",
		Short: "Extract the parameters of a command from text",
		Example: `  autovoice extract navigate "take me to the airport"
  autovoice extract climateControl set it to 68`,
		Args: cobra.MinimumNArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			var names []string
			for _, v := range command.Variants() {
				names = append(names, v.String())
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := command.ParseVariant(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"command":    v,
				"parameters": command.ExtractParameters(strings.Join(args[1:], " "), v),
			})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
