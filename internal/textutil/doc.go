// Package textutil provides filename sanitization and display helpers.
//
// Script documents are identified by their filename, so the CLI and MCP server
// use SanitizeFileName before writing user-supplied names, SanitizeToken when a
// name is embedded in another filename (render logs, output videos), and Title
// when a script name is shown to a person.
package textutil
