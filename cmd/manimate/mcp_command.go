package main

import (
	"github.com/spf13/cobra"

	"manimate/internal/mcpserver"
)

func newMCPCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve manimate tools to MCP clients over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			srv, err := mcpserver.New(&mcpserver.Ports{
				WorkDir:     rt.Config.Paths.WorkDir,
				Extension:   rt.Config.Scripts.Extension,
				LogDir:      rt.Config.Paths.LogDir,
				CombinedLog: rt.Config.Logging.CombinedLog,
				Ledger:      rt.Ledger,
				Batch:       rt.Orchestrator,
				Logger:      rt.Logger,
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
}
