// Package logs folds finished per-job render logs into the combined log.
//
// Consolidate appends each matching log under a "--- <file> ---" header and
// removes it. A render holds an exclusive flock on its log while the engine
// runs, so consolidation can run at any time without touching logs that are
// still being written. Concurrent consolidations serialize on a lock of the
// combined log.
package logs
