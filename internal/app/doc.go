// Package app assembles the manimate runtime from configuration: the voice
// backend, audio cache, narrator, render driver, ledger, optional run history
// and the batch orchestrator. The CLI, the MCP server and the watcher share
// this wiring.
package app
