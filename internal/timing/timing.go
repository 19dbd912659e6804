// Package timing derives how long a section stays on screen from the
// duration of its narration.
package timing

import (
	"math"

	"manimate/internal/config"
)

// Kind identifies which narrated line a hold applies to.
type Kind int

const (
	// Explanation covers code explanations and quiz questions.
	Explanation Kind = iota
	// Answer is the quiz answer reveal, which uses the shorter answer padding.
	Answer
)

// Policy holds the padding constants. The zero value holds nothing; use
// Default or FromConfig.
type Policy struct {
	Padding       float64
	AnswerPadding float64
	MinHold       float64
}

// Default returns the stock policy: 3s after narration, 1s after a quiz
// answer, and a 2s hold for unnarrated sections.
func Default() Policy {
	return Policy{Padding: 3, AnswerPadding: 1, MinHold: 2}
}

// FromConfig builds a policy from the [timing] section.
func FromConfig(cfg config.Timing) Policy {
	return Policy{
		Padding:       cfg.PaddingSeconds,
		AnswerPadding: cfg.AnswerPaddingSeconds,
		MinHold:       cfg.MinHoldSeconds,
	}
}

// HoldDuration returns the seconds a section is held after narration starts.
// Zero, negative and NaN audio durations count as unnarrated and get MinHold.
// A narrated hold is never shorter than the audio itself.
func (p Policy) HoldDuration(audioSeconds float64, kind Kind) float64 {
	if math.IsNaN(audioSeconds) || audioSeconds <= 0 {
		return sanitize(p.MinHold)
	}
	if math.IsInf(audioSeconds, 1) {
		return audioSeconds
	}
	padding := p.Padding
	if kind == Answer {
		padding = p.AnswerPadding
	}
	return audioSeconds + sanitize(padding)
}

// Unnarrated is the hold for a section with nothing to say.
func (p Policy) Unnarrated() float64 {
	return p.HoldDuration(0, Explanation)
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
