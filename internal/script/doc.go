// Package script models tutorial documents: an intro, ordered sections and an
// outro. Sections form a closed set of variants (code, quiz, real-world)
// discriminated by the JSON "type" field; anything unrecognized decodes as a
// code section.
//
// The same JSON schema is read from the work directory and written to the
// staging file consumed by the render engine. Prepared narration is carried
// per section in an optional "narration" object.
package script
