package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"manimate/internal/deps"
	"manimate/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, the voice backend and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			lines := renderSectionHeader("Configuration", colorize)
			configLabel := ctx.configPath
			if configLabel == "" {
				configLabel = "defaults"
			}
			lines = append(lines,
				renderStatusLine("Config", statusInfo, configLabel, colorize),
				renderStatusLine("Quality", statusInfo, fmt.Sprintf("%s (%s)", cfg.Render.Quality, cfg.QualityFlag()), colorize),
				renderStatusLine("Voice", statusInfo, fmt.Sprintf("%s via %s", cfg.Voice.Voice, cfg.Voice.Backend), colorize),
				renderStatusLine("Narration", statusInfo, yesNo(cfg.Render.PrepareNarration), colorize),
				renderStatusLine("Run history", statusInfo, yesNo(cfg.History.Enabled), colorize),
				renderStatusLine("Notifications", statusInfo, notificationLabel(cfg.Notifications.NtfyTopic), colorize),
				"",
			)

			statuses := preflight.CheckSystemDeps(cfg)
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(statuses, colorize)...)
			lines = append(lines, "")

			results := preflight.RunAll(cmd.Context(), cfg)
			lines = append(lines, renderSectionHeader("Preflight", colorize)...)
			lines = append(lines, preflightLines(results, colorize)...)

			fmt.Fprintln(out, strings.Join(lines, "\n"))

			missing := deps.Missing(statuses)
			failed := preflight.Failed(results)
			if len(missing) > 0 || len(failed) > 0 {
				return fmt.Errorf("doctor found %d missing tool(s) and %d failed check(s)", len(missing), len(failed))
			}
			return nil
		},
	}
}

func notificationLabel(topic string) string {
	if topic == "" {
		return "disabled"
	}
	return topic
}
