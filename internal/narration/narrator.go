package narration

import (
	"context"
	"log/slog"
	"strings"

	"manimate/internal/audiocache"
	"manimate/internal/logging"
	"manimate/internal/script"
	"manimate/internal/services"
	"manimate/internal/timing"
)

const (
	questionPrefix = "Please try to answer this question - "
	answerPrefix   = "Answer should be - "
)

// ArtifactSource resolves narration text to cached audio. *audiocache.Cache
// satisfies it.
type ArtifactSource interface {
	GetOrCreate(ctx context.Context, text, voice string) (audiocache.Artifact, error)
}

// Warning records a cue that will play silently because its audio could not
// be produced.
type Warning struct {
	Section int
	Text    string
	Err     error
}

// Narrator attaches narration cues and hold times to every section of a
// document.
type Narrator struct {
	source ArtifactSource
	policy timing.Policy
	voice  string
	logger *slog.Logger
}

// New builds a narrator speaking with voice.
func New(source ArtifactSource, policy timing.Policy, voice string, logger *slog.Logger) *Narrator {
	return &Narrator{
		source: source,
		policy: policy,
		voice:  voice,
		logger: logging.NewComponentLogger(logger, "narration"),
	}
}

// Voice returns the voice used for synthesis.
func (n *Narrator) Voice() string {
	return n.voice
}

// Prepare returns a copy of doc with narration attached. Synthesis failures
// never fail the document: the affected cue is left without audio, gets the
// unnarrated hold, and is reported as a Warning.
func (n *Narrator) Prepare(ctx context.Context, doc script.Document) (script.Document, []Warning) {
	prepared := make([]*script.Narration, len(doc.Sections))
	var warnings []Warning
	for i, section := range doc.Sections {
		lines := SpokenLines(section)
		if lines == nil {
			if q, ok := section.(script.QuizSection); ok && q.Skipped() {
				continue
			}
			prepared[i] = &script.Narration{HoldSeconds: n.policy.Unnarrated()}
			continue
		}
		narration := &script.Narration{}
		for _, line := range lines {
			cue, err := n.cue(ctx, line)
			if err != nil {
				warnings = append(warnings, Warning{Section: i, Text: line.Text, Err: err})
				logging.WarnWithContext(logging.WithContext(ctx, n.logger), "narration unavailable; section will play silently",
					"narration_failed",
					logging.Int("section", i+1),
					logging.String("voice", n.voice),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, services.Details(err).Hint),
					logging.String(logging.FieldImpact, "section is held for the minimum time without audio"),
				)
			}
			narration.Cues = append(narration.Cues, cue)
			narration.HoldSeconds += cue.HoldSeconds
		}
		prepared[i] = narration
	}
	return doc.WithNarration(prepared), warnings
}

func (n *Narrator) cue(ctx context.Context, line Line) (script.Cue, error) {
	cue := script.Cue{Text: line.Text}
	artifact, err := n.source.GetOrCreate(ctx, line.Text, n.voice)
	if err != nil || artifact.IsZero() {
		cue.HoldSeconds = n.policy.HoldDuration(0, line.Kind)
		return cue, err
	}
	cue.Audio = artifact.Path
	cue.AudioSeconds = artifact.DurationSeconds
	cue.HoldSeconds = n.policy.HoldDuration(artifact.DurationSeconds, line.Kind)
	return cue, nil
}

// Line is one piece of text spoken for a section.
type Line struct {
	Text string
	Kind timing.Kind
}

// SpokenLines returns the narrated lines for a section in playback order. It
// returns nil for sections that say nothing, including skipped quizzes.
func SpokenLines(section script.Section) []Line {
	switch s := section.(type) {
	case script.CodeSection:
		if strings.TrimSpace(s.Explanation) == "" {
			return nil
		}
		return []Line{{Text: s.Explanation, Kind: timing.Explanation}}
	case script.QuizSection:
		if s.Skipped() {
			return nil
		}
		return []Line{
			{Text: questionPrefix + s.Question, Kind: timing.Explanation},
			{Text: answerPrefix + s.Answer, Kind: timing.Answer},
		}
	default:
		return nil
	}
}
