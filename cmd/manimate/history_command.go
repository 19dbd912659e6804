package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"manimate/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runs bool
	var clear bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history [script]",
		Short: "Show recorded batch runs and job attempts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("run history is disabled ([history] enabled = false)")
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if clear {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d run(s)\n", removed)
				return nil
			}

			if runs {
				list, err := store.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, run := range list {
					finished := "-"
					if run.FinishedAt != nil {
						finished = formatTime(*run.FinishedAt)
					}
					rows = append(rows, []string{
						shortID(run.ID),
						string(run.Status),
						strconv.Itoa(run.Pending),
						strconv.Itoa(run.Rendered),
						strconv.Itoa(run.Failed),
						strconv.Itoa(run.Skipped),
						formatTime(run.StartedAt),
						finished,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Status", "Pending", "Rendered", "Failed", "Skipped", "Started", "Finished"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			}

			jobID := ""
			if len(args) == 1 {
				jobID = strings.TrimSpace(args[0])
			}
			attempts, err := store.Attempts(cmd.Context(), jobID, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, attempts)
			}
			if len(attempts) == 0 {
				fmt.Fprintln(out, "No attempts recorded")
				return nil
			}
			rows := make([][]string, 0, len(attempts))
			for _, a := range attempts {
				exit := "-"
				if a.ExitCode != nil {
					exit = strconv.Itoa(*a.ExitCode)
				}
				rows = append(rows, []string{
					a.JobID,
					string(a.Status),
					exit,
					formatElapsed(a.Elapsed()),
					formatTime(a.StartedAt),
					shortID(a.RunID),
					orDash(a.LogPath),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Script", "Status", "Exit", "Elapsed", "Started", "Run", "Log"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of rows")
	cmd.Flags().BoolVar(&runs, "runs", false, "List batch runs instead of job attempts")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete all recorded history")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
