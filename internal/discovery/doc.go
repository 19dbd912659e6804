// Package discovery finds script documents waiting to be rendered.
//
// Completion is inferred only from the ledger: both the discovered paths and
// the ledger entries are normalized to absolute, cleaned paths before they are
// compared, so "./a.json" and "a.json" refer to the same job.
package discovery
