// Package preflight provides readiness checks for the external tools, services
// and filesystem paths manimate depends on.
//
// `manimate doctor` prints every check. `manimate run` calls CheckSystemDeps
// and RunAll before discovering jobs so a missing engine or unwritable ledger
// is reported once instead of failing every job.
package preflight
