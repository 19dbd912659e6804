// Package tts turns narration text into audio files.
//
// Two backends implement Synthesizer: EdgeTTS shells out to the edge-tts
// command line tool, and HTTPClient posts to a speech service exposing
// /v1/generate/speech. Both write the finished audio to a caller-chosen path;
// caching and duration measurement live in the audiocache package.
package tts
