// Package classify identifies the creature in a single photo.
package classify

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/findrapp/findr/internal/classifier"
	"github.com/findrapp/findr/internal/conf"
	"github.com/findrapp/findr/internal/httpclient"
	"github.com/findrapp/findr/internal/logger"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
	nameStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ade80"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#facc15"))
)

// Output is the --json form of a classification.
type Output struct {
	Result  classifier.Result `json:"result"`
	AutoLog bool              `json:"autoLog"`
}

// Command creates the classify command.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify <image>",
		Short: "Identify the creature in a photo",
		Long:  "Classify a local image file or an http(s) URL and print the result and whether it would be logged automatically.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hc := httpclient.New(nil)
			defer hc.Close()

			c, err := classifier.NewFromSettings(cmd.Context(), &settings.Gemini, hc,
				classifier.WithLogger(logger.Global().Module("classifier")))
			if err != nil {
				return err
			}
			result, err := c.Classify(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := Output{Result: result, AutoLog: classifier.ShouldAutoLog(result)}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			Print(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

// Print renders a classification for a terminal.
func Print(w io.Writer, out Output) {
	r := out.Result
	if !r.Detected {
		fmt.Fprintln(w, warnStyle.Render("No animal detected"))
	} else {
		fmt.Fprintln(w, nameStyle.Render(r.Name))
	}

	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value))
	}
	row("Confidence", fmt.Sprintf("%.0f%%", r.Confidence))
	row("Species", classifier.StringValue(r.Species))
	row("Type", classifier.StringValue(r.CreatureType))
	row("Rarity", classifier.StringValue(r.Rarity))
	row("Characteristics", classifier.StringValue(r.KeyCharacteristics))
	row("Description", classifier.StringValue(r.Description))

	if out.AutoLog {
		row("Auto-log", "yes")
	} else {
		row("Auto-log", "no, confirm before logging")
	}
}
