package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"manimate/internal/script"
)

func newScriptCommand(ctx *commandContext) *cobra.Command {
	scriptCmd := &cobra.Command{
		Use:   "script",
		Short: "Create, check and remove script documents",
	}
	scriptCmd.AddCommand(newScriptNewCommand(ctx))
	scriptCmd.AddCommand(newScriptValidateCommand(ctx))
	scriptCmd.AddCommand(newScriptDeleteCommand(ctx))
	return scriptCmd
}

func newScriptNewCommand(ctx *commandContext) *cobra.Command {
	var name string
	var from string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Write a new script into the work directory",
		Long: "Write a new script into the work directory. Without --name the file is named\n" +
			"after the current time (YYYYMMDD-HHMMSS). Without --from a starter document is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			doc := script.Skeleton()
			if from = strings.TrimSpace(from); from != "" {
				doc, err = script.Load(from)
				if err != nil {
					return err
				}
			}

			var path string
			if name = strings.TrimSpace(name); name != "" {
				if filepath.Ext(name) == "" {
					name += cfg.Scripts.Extension
				}
				path, err = script.SaveAs(cfg.Paths.WorkDir, name, doc, overwrite)
			} else {
				path, err = script.Save(cfg.Paths.WorkDir, cfg.Scripts.Extension, doc, time.Now())
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", path)
			for _, problem := range doc.Problems() {
				fmt.Fprintf(out, "  warning: %s\n", problem)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Filename for the new script")
	cmd.Flags().StringVar(&from, "from", "", "Copy an existing document instead of the starter template")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing script with the same name")
	return cmd
}

func newScriptValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <script>...",
		Short: "Parse scripts and report problems",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			invalid := 0
			for _, arg := range args {
				path, err := resolveScriptPath(cfg.Paths.WorkDir, arg)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", arg, err)
					invalid++
					continue
				}
				doc, err := script.Load(path)
				if err != nil {
					fmt.Fprintf(out, "%s: invalid: %v\n", arg, err)
					invalid++
					continue
				}
				problems := doc.Problems()
				if len(problems) == 0 {
					fmt.Fprintf(out, "%s: ok (%d sections)\n", arg, len(doc.Sections))
					continue
				}
				fmt.Fprintf(out, "%s: ok with %d warning(s)\n", arg, len(problems))
				for _, problem := range problems {
					fmt.Fprintf(out, "  %s\n", problem)
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d script(s) could not be parsed", invalid, len(args))
			}
			return nil
		},
	}
}

func newScriptDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a script from the work directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := script.Remove(cfg.Paths.WorkDir, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
