package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"manimate/internal/config"
	"manimate/internal/fileutil"
	"manimate/internal/tts"
)

func newVoiceCommand(ctx *commandContext) *cobra.Command {
	voiceCmd := &cobra.Command{
		Use:   "voice",
		Short: "Inspect and try narration voices",
	}
	voiceCmd.AddCommand(newVoiceListCommand(ctx))
	voiceCmd.AddCommand(newVoiceSayCommand(ctx))
	return voiceCmd
}

func newVoiceListCommand(ctx *commandContext) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List narration voices",
		Long: "List the voices offered by the edge-tts backend. With the http backend the\n" +
			"built-in list of known voices is shown instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			voices := config.KnownVoices
			if cfg.Voice.Backend == "edge-tts" {
				edge, err := tts.NewEdgeTTS(cfg.Voice.Binary, time.Duration(cfg.Voice.TimeoutSeconds)*time.Second)
				if err != nil {
					return err
				}
				if voices, err = edge.ListVoices(cmd.Context()); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			filter = strings.ToLower(strings.TrimSpace(filter))
			for _, voice := range voices {
				if filter != "" && !strings.Contains(strings.ToLower(voice), filter) {
					continue
				}
				marker := "  "
				if voice == cfg.Voice.Voice {
					marker = "* "
				}
				fmt.Fprintln(out, marker+voice)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Only list voices containing this text (for example en-GB)")
	return cmd
}

func newVoiceSayCommand(ctx *commandContext) *cobra.Command {
	var voice string
	var out string

	cmd := &cobra.Command{
		Use:   "say <text>",
		Short: "Synthesize one phrase through the narration cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("text is required")
			}
			if voice = strings.TrimSpace(voice); voice == "" {
				voice = rt.Narrator.Voice()
			}
			artifact, err := rt.Cache.GetOrCreate(cmd.Context(), text, voice)
			if err != nil {
				return err
			}
			path := artifact.Path
			if out = strings.TrimSpace(out); out != "" {
				if path, err = config.ExpandPath(out); err != nil {
					return err
				}
				if err := fileutil.CopyFile(artifact.Path, path); err != nil {
					return fmt.Errorf("copy audio to %s: %w", path, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%.2fs, voice %s)\n", path, artifact.DurationSeconds, voice)
			return nil
		},
	}
	cmd.Flags().StringVar(&voice, "voice", "", "Voice to use instead of the configured one")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Copy the audio to this path instead of printing the cache location")
	return cmd
}
