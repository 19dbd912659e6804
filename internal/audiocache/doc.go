// Package audiocache stores synthesized narration keyed by a hash of the text
// and voice, so identical lines are synthesized once across sections, jobs and
// runs.
//
// Artifacts are named <key>-<UTC timestamp>.mp3 inside the cache directory and
// found again by the "<key>-" prefix. The timestamp keeps two processes that
// populate the same key at once from clobbering each other; either artifact
// is a valid answer. New audio is written to a hidden partial file and renamed
// into place, so a reader never sees half an artifact.
package audiocache
