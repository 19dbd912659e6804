package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"manimate/internal/app"
	"manimate/internal/batch"
	"manimate/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Render pending scripts now and again whenever new ones appear",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			app.LogDependencySnapshot(rt.Logger, rt.Config)
			out := cmd.OutOrStdout()
			w, err := watch.New(rt.Orchestrator, watch.Options{
				Dir:       rt.Config.Paths.WorkDir,
				Extension: rt.Config.Scripts.Extension,
				Debounce:  debounce,
				Ignore:    []string{rt.Config.Paths.StagingFile},
				Logger:    rt.Logger,
				OnBatch: func(summary batch.Summary, err error) {
					if len(summary.Jobs) > 0 {
						printSummary(out, summary)
					}
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", rt.Config.Paths.WorkDir)
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Wait for writes to settle before rendering")
	return cmd
}
