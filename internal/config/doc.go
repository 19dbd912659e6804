// Package config loads, normalizes, and validates manimate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the MANIMATE_VOICE and
// MANIMATE_TTS_URL environment fallbacks. The Config type centralizes the work
// directory layout, render engine invocation, voice backend, and section timing
// so the batch runner and CLI resolve them in one pass.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
