package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/repo-edu/repo-edu-sub001/internal/history"
	"github.com/repo-edu/repo-edu-sub001/internal/style"
)

var (
	historyKind  string
	historyLimit int
	historyAll   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past imports and repository operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		database, store, err := a.openHistory()
		if err != nil {
			return err
		}
		defer database.Close()

		f := history.Filter{Kind: history.Kind(historyKind), Limit: historyLimit}
		if !historyAll {
			f.Profile = a.profile
		}
		entries, err := store.List(cmd.Context(), f)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, style.Dim.Render("no history"))
			return nil
		}
		rows := [][]string{{"WHEN", "PROFILE", "KIND", "SUMMARY", "ID"}}
		for _, e := range entries {
			rows = append(rows, []string{e.CreatedAt.Local().Format(time.DateTime), e.Profile, string(e.Kind), e.Summary, e.ID})
		}
		style.Table(out, rows)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the per-repository errors of a recorded operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		database, store, err := a.openHistory()
		if err != nil {
			return err
		}
		defer database.Close()

		run, err := store.Operation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s %s on %s at %s\n", style.ArrowPrefix, run.Operation,
			style.Bold.Render(run.Assignment), run.Platform, run.CreatedAt.Local().Format(time.DateTime))
		fmt.Fprintf(out, "  %d succeeded, %d failed, %d skipped\n", run.Succeeded, run.Failed, run.Skipped)
		for _, e := range run.Errors {
			fmt.Fprintf(out, "  %s %s: %s\n", style.ErrorPrefix, e.RepoName, e.Message)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "only import or operation runs")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of entries")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "include every profile")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
