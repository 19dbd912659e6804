// Package watch reruns the batch when scripts are added to the work directory.
//
// Events are filtered to visible files carrying the script extension and
// debounced so a burst of writes starts one batch. The ledger keeps reruns
// idempotent: already rendered scripts are skipped by discovery.
package watch
