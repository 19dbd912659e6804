// Package ledger persists which scripts have rendered successfully.
//
// The ledger is a plain text file (done.txt by default) inside the work
// directory with one script base filename per line. Commits append under an
// exclusive gofrs/flock lock and fsync before returning, so a job is only
// considered complete once its line is durable. Entries are never removed or
// rewritten; deleting the file is the only way to force every script to
// render again.
package ledger
