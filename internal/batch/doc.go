// Package batch renders every pending script in the work directory, one at a
// time.
//
// A run moves through discovering, then rendering and committing (or
// skipping) for each job, and back to idle. Observers see each transition.
// Per-job failures are logged with the job id and its render log path and the
// job stays pending. A missing render engine or an unwritable ledger halts
// the run. Runs take an exclusive lock in the work directory because every
// job shares the same staging file.
package batch
