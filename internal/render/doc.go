// Package render stages a prepared script document and drives the external
// render engine for it.
//
// Driver.Render writes the document to the staging file atomically, opens the
// per-job log, holds an exclusive flock on it while the engine runs, and hands
// the invocation to a Backend. CommandBackend launches the engine as
//
//	<binary> -q<quality> <module> <scene> -o <output>
//
// with MANIM_SCRIPT_FILE pointing at the staging file. Cancellation and
// timeouts send SIGTERM first and kill the engine after the configured grace
// period. A missing binary surfaces as ErrEngineNotFound.
package render
