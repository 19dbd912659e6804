package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the narration audio cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the narration cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			stats, err := rt.Cache.Stats()
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, stats)
			}
			rows := [][]string{
				{"Directory", rt.Cache.Dir()},
				{"Artifacts", strconv.Itoa(stats.Artifacts)},
				{"Distinct phrases", strconv.Itoa(stats.Keys)},
				{"Duplicates", strconv.Itoa(stats.Duplicates)},
				{"Partial files", strconv.Itoa(stats.Partials)},
				{"Size", formatBytes(stats.Bytes)},
				{"Oldest", formatTime(stats.Oldest)},
				{"Newest", formatTime(stats.Newest)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete cached narration not used within a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			res, err := rt.Cache.Prune(olderThan)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d artifact(s), freed %s\n", res.Removed, formatBytes(res.Freed))
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  %v\n", e)
			}
			if len(res.Errors) > 0 {
				return fmt.Errorf("%d artifact(s) could not be removed", len(res.Errors))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Remove artifacts not modified within this duration")
	return cmd
}
