// Package history keeps a SQLite record of batch runs and the jobs each run
// attempted.
//
// The ledger alone decides whether a script is done; history only explains
// what happened: exit codes, log paths, narration warnings and timings for
// `manimate history` and `manimate status`. The database lives at
// <state_dir>/history.db, uses WAL mode, and retries briefly when another
// process holds the write lock.
package history
