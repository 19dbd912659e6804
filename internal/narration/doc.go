// Package narration prepares the spoken track for a script document.
//
// For each section it asks the audio cache for one clip per spoken line and
// applies the timing policy, producing cues the render engine plays back
// without measuring anything itself. Code sections speak their explanation
// and quizzes speak the question followed by the answer. Real-world sections
// and sections with nothing to say get the minimum hold. Skipped quizzes get
// no narration at all.
package narration
