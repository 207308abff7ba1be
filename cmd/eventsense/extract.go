package main

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/eventsense/plugin/ai/router"
)

// addExtractCommands registers one command per parser operation. Each reads
// its text from the arguments, or from stdin when there are none or the only
// argument is "-", and prints JSON.
func addExtractCommands(root *cobra.Command) {
	var clipboard string

	parseCmd := &cobra.Command{
		Use:   "parse [text]",
		Short: "Parse text into a calendar event.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			deps, err := newDependencies(cmd.Context(), instanceProfile, logger)
			if err != nil {
				return err
			}
			defer deps.Close()
			return printJSON(cmd.OutOrStdout(), deps.parser.Parse(cmd.Context(), text, clipboard))
		},
	}
	parseCmd.Flags().StringVar(&clipboard, "clipboard", "", "second fragment to merge with the text")

	mergeCmd := &cobra.Command{
		Use:   "merge [text]",
		Short: "Show how text and a clipboard fragment are prepared for parsing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			deps, err := newDependencies(cmd.Context(), instanceProfile, logger)
			if err != nil {
				return err
			}
			defer deps.Close()
			return printJSON(cmd.OutOrStdout(), deps.parser.EnhanceTextForParsing(cmd.Context(), text, clipboard))
		},
	}
	mergeCmd.Flags().StringVar(&clipboard, "clipboard", "", "second fragment to merge with the text")

	titleCmd := &cobra.Command{
		Use:   "title [text]",
		Short: "Extract the best title.",
		RunE: withParser(func(p *router.HybridParser, text string) any {
			return p.ExtractTitle(text)
		}),
	}

	locationsCmd := &cobra.Command{
		Use:   "locations [text]",
		Short: "Extract ranked locations.",
		RunE: withParser(func(p *router.HybridParser, text string) any {
			return p.ExtractLocations(text)
		}),
	}

	infoCmd := &cobra.Command{
		Use:   "info [text]",
		Short: "Extract title and location candidates.",
		RunE: withParser(func(p *router.HybridParser, text string) any {
			return p.ExtractAllInformation(text)
		}),
	}

	root.AddCommand(parseCmd, mergeCmd, titleCmd, locationsCmd, infoCmd)
}

// withParser runs fn on a parser without cache or LLM collaborators.
func withParser(fn func(p *router.HybridParser, text string) any) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		text, err := readText(cmd, args)
		if err != nil {
			return err
		}
		p, err := router.NewHybridParser(router.NewConfigFromProfile(instanceProfile), router.WithLogger(logger))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), fn(p, text))
	}
}

func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", errors.Wrap(err, "failed to read stdin")
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
