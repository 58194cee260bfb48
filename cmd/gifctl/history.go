package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maauso/vid2gif/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear recent conversions",
	}
	cmd.AddCommand(newHistoryListCmd(), newHistoryClearCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent conversions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			entries := a.deps.History.Load(cmd.Context())
			if entries == nil {
				entries = []history.Entry{}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No conversions yet.")
				return nil
			}
			for i, e := range entries {
				fmt.Fprintf(out, "%d. %s (%dx%d)\n", i+1, e.URL, e.Width, e.Height)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if err := a.deps.History.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}
}
