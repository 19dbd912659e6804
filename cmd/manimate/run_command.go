package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"manimate/internal/app"
	"manimate/internal/batch"
	"manimate/internal/logs"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var consolidate bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Render every pending script in the work directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			app.LogDependencySnapshot(rt.Logger, rt.Config)

			summary, runErr := rt.Orchestrator.Run(cmd.Context())
			if errors.Is(runErr, batch.ErrAlreadyRunning) {
				return runErr
			}
			out := cmd.OutOrStdout()
			printSummary(out, summary)

			if consolidate && !summary.Cancelled {
				res, err := logs.Consolidate(cmd.Context(), rt.Config.Paths.LogDir, rt.Config.Logging.CombinedLog, logs.DefaultPattern, logs.WithLogger(rt.Logger))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Consolidated %d log(s) into %s\n", res.Consolidated, res.CombinedPath)
			}

			if runErr != nil {
				return runErr
			}
			if failed := summary.Count(batch.OutcomeFailed); failed > 0 {
				return fmt.Errorf("%d job(s) failed; see the logs listed above", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&consolidate, "consolidate", false, "Merge per-job logs into the combined log after the batch")
	return cmd
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var commit bool

	cmd := &cobra.Command{
		Use:   "render <script>",
		Short: "Render one script regardless of whether it was rendered before",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			path, err := resolveScriptPath(rt.Config.Paths.WorkDir, args[0])
			if err != nil {
				return err
			}
			result, err := rt.Orchestrator.RenderOne(cmd.Context(), path, commit)
			if errors.Is(err, batch.ErrAlreadyRunning) {
				return err
			}
			printSummary(cmd.OutOrStdout(), batch.Summary{Pending: 1, Jobs: []batch.JobResult{result}})
			return err
		},
	}
	cmd.Flags().BoolVar(&commit, "commit", false, "Record a successful render in the completion ledger")
	return cmd
}

func printSummary(out io.Writer, summary batch.Summary) {
	if len(summary.Jobs) == 0 {
		if summary.Halted {
			fmt.Fprintln(out, "Batch halted before any job ran")
			return
		}
		fmt.Fprintln(out, "No pending scripts")
		return
	}
	rows := make([][]string, 0, len(summary.Jobs))
	for _, job := range summary.Jobs {
		exit := "-"
		if job.ExitCode >= 0 {
			exit = strconv.Itoa(job.ExitCode)
		}
		rows = append(rows, []string{job.JobID, string(job.Outcome), exit, formatElapsed(job.Elapsed), job.LogPath})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Script", "Outcome", "Exit", "Elapsed", "Log"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "Rendered %d, failed %d, skipped %d of %d pending\n",
		summary.Count(batch.OutcomeRendered),
		summary.Count(batch.OutcomeFailed),
		summary.Count(batch.OutcomeSkipped),
		summary.Pending,
	)
	switch {
	case summary.Cancelled:
		fmt.Fprintln(out, "Batch interrupted; remaining scripts stay pending")
	case summary.Halted:
		fmt.Fprintln(out, "Batch halted; remaining scripts stay pending")
	}
}
