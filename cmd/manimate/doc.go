// Package main hosts the manimate CLI entrypoint and command graph.
//
// The Cobra command tree runs the render batch, renders single scripts,
// reports script and run status, manages scripts, logs, the narration cache
// and configuration, and serves the MCP and watch front ends. Configuration
// and runtime wiring are resolved once per invocation in commandContext so
// subcommands stay declarative; the work itself lives in internal packages.
package main
