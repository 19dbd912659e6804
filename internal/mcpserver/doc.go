// Package mcpserver exposes manimate to MCP clients over stdio.
//
// Tools cover saving generated scripts into the work directory, listing them
// with their rendered state, running the batch, rendering one script and
// consolidating render logs. Every tool goes through the same orchestrator and
// ledger as the CLI, so the single-batch lock applies.
package mcpserver
