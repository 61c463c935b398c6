package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/planloop/internal/journal"
)

func historyCmd(flags *globalFlags) *cobra.Command {
	var limit int
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepareRuntimeEnv(cmd.Context(), flags, envNeeds{journal: true})
			if err != nil {
				return err
			}
			defer env.Close()

			runs, err := env.Journal.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.AddCommand(historyShowCmd(flags))
	return cmd
}

func historyShowCmd(flags *globalFlags) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its steps (a unique id prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepareRuntimeEnv(cmd.Context(), flags, envNeeds{journal: true})
			if err != nil {
				return err
			}
			defer env.Close()

			run, err := env.Journal.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			printRunDetail(cmd.OutOrStdout(), run)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printRunDetail(w io.Writer, run *journal.Run) {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Request:  %s\n", run.Request)
	fmt.Fprintf(w, "Status:   %s (%d/%d steps)\n", run.Status, run.RunMeta.Steps, run.MaxSteps)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Format(time.RFC3339))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.LastError != "" {
		fmt.Fprintf(w, "Error:    %s\n", run.LastError)
	}
	for _, rec := range run.Steps {
		fmt.Fprintln(w, strings.Repeat("-", 20))
		fmt.Fprintf(w, "#%d %s\n", rec.Seq, rec.Result.String())
	}
}

func printRuns(w io.Writer, runs []journal.RunMeta) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSTEPS\tREQUEST")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n",
			shortID(r.ID), r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Steps, r.MaxSteps, truncate(r.Request, 60))
	}
	tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
