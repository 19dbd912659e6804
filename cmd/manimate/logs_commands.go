package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"manimate/internal/logging"
	"manimate/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Maintain render logs",
	}
	logsCmd.AddCommand(newLogsConsolidateCommand(ctx))
	logsCmd.AddCommand(newLogsPruneCommand(ctx))
	return logsCmd
}

func newLogsConsolidateCommand(ctx *commandContext) *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Append finished per-job logs to the combined log and delete them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			res, err := logs.Consolidate(cmd.Context(), cfg.Paths.LogDir, cfg.Logging.CombinedLog, pattern, logs.WithLogger(logger))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Consolidated %d log(s) into %s\n", res.Consolidated, res.CombinedPath)
			for _, name := range res.Active {
				fmt.Fprintf(out, "  skipped %s (render in progress)\n", name)
			}
			for _, fe := range res.Errors {
				fmt.Fprintf(out, "  failed %s: %v\n", fe.File, fe.Err)
			}
			if len(res.Errors) > 0 {
				return fmt.Errorf("%d log(s) could not be consolidated", len(res.Errors))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", logs.DefaultPattern, "Glob of per-job logs to merge")
	return cmd
}

func newLogsPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete application and per-job logs older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Logging.RetentionDays
			}
			if days <= 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Log retention disabled (retention_days = 0)")
				return nil
			}
			removed := logging.CleanupOldLogs(nil, days,
				logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "manimate*.log"},
				logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "manim_log_*.txt"},
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d log(s) older than %d day(s)\n", removed, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention window in days (defaults to logging.retention_days)")
	return cmd
}
