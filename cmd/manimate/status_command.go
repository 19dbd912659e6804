package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"manimate/internal/discovery"
	"manimate/internal/history"
	"manimate/internal/ledger"
	"manimate/internal/script"
)

type scriptStatus struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Done        bool   `json:"done"`
	LastStatus  string `json:"last_status,omitempty"`
	LastExit    *int   `json:"last_exit,omitempty"`
	LastLog     string `json:"last_log,omitempty"`
	LastAttempt string `json:"last_attempt,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var pendingOnly bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List scripts with their rendered state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			jobs, err := discovery.Scan(cfg.Paths.WorkDir, cfg.Scripts.Extension, ledger.New(cfg.LedgerPath()))
			if err != nil {
				return err
			}

			last := map[string]history.Attempt{}
			if cfg.History.Enabled {
				last = lastAttempts(cmd.Context(), cfg.HistoryPath())
			}

			statuses := make([]scriptStatus, 0, len(jobs))
			pending := 0
			for _, job := range jobs {
				if !job.Done {
					pending++
				}
				if pendingOnly && job.Done {
					continue
				}
				st := scriptStatus{Name: job.ID, Title: script.Title(job.ID), Done: job.Done}
				if attempt, ok := last[job.ID]; ok {
					st.LastStatus = string(attempt.Status)
					st.LastExit = attempt.ExitCode
					st.LastLog = attempt.LogPath
					st.LastAttempt = formatTime(attempt.StartedAt)
				}
				statuses = append(statuses, st)
			}

			if jsonOutput {
				return writeJSON(cmd, statuses)
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintf(out, "No scripts in %s\n", cfg.Paths.WorkDir)
				return nil
			}
			rows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				state := "pending"
				if st.Done {
					state = "done"
				}
				exit := "-"
				if st.LastExit != nil {
					exit = strconv.Itoa(*st.LastExit)
				}
				rows = append(rows, []string{st.Name, st.Title, state, orDash(st.LastStatus), exit, orDash(st.LastAttempt)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Script", "Title", "State", "Last Attempt", "Exit", "When"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "%d pending, %d done\n", pending, len(jobs)-pending)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only list scripts that have not been rendered")
	return cmd
}

// lastAttempts reads history for display only; an unavailable database
// yields no attempts.
func lastAttempts(ctx context.Context, path string) map[string]history.Attempt {
	store, err := history.OpenPath(path)
	if err != nil {
		return map[string]history.Attempt{}
	}
	defer store.Close()
	last, err := store.LastAttempts(ctx)
	if err != nil {
		return map[string]history.Attempt{}
	}
	return last
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
