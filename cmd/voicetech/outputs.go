package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-voicetech-tts/internal/store"
)

func newOutputsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Inspect and prune stored synthesis results",
	}

	cmd.AddCommand(newOutputsListCmd())
	cmd.AddCommand(newOutputsPruneCmd())

	return cmd
}

func newOutputsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent stored results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Paths.DBPath, cfg.Paths.OutputsDir)
			if err != nil {
				return err
			}
			defer st.Close()

			arts, err := st.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tLANG\tACCENT\tSTYLE\tFRAMES\tSECONDS\tCREATED")
			for _, a := range arts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%.2f\t%s\n",
					a.Name, a.Kind, a.Language, a.AccentID, a.StyleID, a.Frames, a.Duration,
					a.CreatedAt.Local().Format(time.DateTime))
			}

			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")

	return cmd
}

func newOutputsPruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored results older than a given age",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}

			st, err := store.Open(cfg.Paths.DBPath, cfg.Paths.OutputsDir)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.Prune(cmd.Context(), olderThan)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d result(s)\n", n)
			return err
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Minimum age of results to delete")

	return cmd
}
