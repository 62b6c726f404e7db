package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/go-voicetech-tts/internal/conditioning"
)

func newLanguagesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List supported languages, accents and styles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")

				return enc.Encode(map[string]any{
					"languages": conditioning.Languages(),
					"accents":   conditioning.Accents(),
					"styles":    conditioning.Styles(),
				})
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tLANGUAGE\tSCRIPT")
			for _, l := range conditioning.Languages() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Code, l.Name, l.Script)
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "ACCENT\tNAME")
			for _, a := range conditioning.Accents() {
				fmt.Fprintf(tw, "%d\t%s\n", a.ID, a.Name)
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "STYLE\tNAME")
			for _, s := range conditioning.Styles() {
				fmt.Fprintf(tw, "%d\t%s\n", s.ID, s.Name)
			}

			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}
