// Package notifications delivers batch outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Events the formatter does not know are
// dropped without error.
package notifications
