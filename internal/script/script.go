package script

import (
	"fmt"
	"sort"
)

// Kind discriminates section variants in the staged document.
type Kind string

const (
	KindCode      Kind = "code"
	KindQuiz      Kind = "quiz"
	KindRealWorld Kind = "real_world"
)

// Document is one tutorial. Source records the file it was loaded from and is
// never serialized.
type Document struct {
	Source   string
	Intro    string
	Sections []Section
	Outro    string
}

// Section is implemented only by CodeSection, QuizSection and RealWorldSection.
type Section interface {
	Kind() Kind
	// Prepared returns narration attached by WithNarration, or nil.
	Prepared() *Narration
	sealed()
}

// Cue is one narrated line with its synthesized audio and the time the
// engine holds the frame after starting playback.
type Cue struct {
	Text         string  `json:"text"`
	Audio        string  `json:"audio,omitempty"`
	AudioSeconds float64 `json:"audio_seconds"`
	HoldSeconds  float64 `json:"hold_seconds"`
}

// Narration is the prepared timing for one section. HoldSeconds covers the
// whole section, including sections with no spoken cues.
type Narration struct {
	Cues        []Cue   `json:"cues"`
	HoldSeconds float64 `json:"hold_seconds"`
}

// CodeSection walks through a code snippet.
type CodeSection struct {
	Code           string
	Annotation     string
	HighlightLines []int
	Explanation    string
	Narration      *Narration
}

// QuizSection asks a question and reveals the answer.
type QuizSection struct {
	Question  string
	Answer    string
	Narration *Narration
}

// RealWorldSection shows a practical description with optional code.
type RealWorldSection struct {
	Description string
	Code        string
	Narration   *Narration
}

func (CodeSection) Kind() Kind      { return KindCode }
func (QuizSection) Kind() Kind      { return KindQuiz }
func (RealWorldSection) Kind() Kind { return KindRealWorld }

func (s CodeSection) Prepared() *Narration      { return s.Narration }
func (s QuizSection) Prepared() *Narration      { return s.Narration }
func (s RealWorldSection) Prepared() *Narration { return s.Narration }

func (CodeSection) sealed()      {}
func (QuizSection) sealed()      {}
func (RealWorldSection) sealed() {}

// Skipped reports whether the quiz is missing its question or answer. The
// render engine shows nothing for such a section.
func (s QuizSection) Skipped() bool {
	return s.Question == "" || s.Answer == ""
}

// WithNarration returns a copy of the document with prepared narration
// attached to each section by index. Entries beyond len(Sections) are ignored
// and nil entries clear existing narration.
func (d Document) WithNarration(prepared []*Narration) Document {
	out := d
	out.Sections = make([]Section, len(d.Sections))
	for i, section := range d.Sections {
		var n *Narration
		if i < len(prepared) {
			n = prepared[i]
		}
		switch s := section.(type) {
		case CodeSection:
			s.Narration = n
			out.Sections[i] = s
		case QuizSection:
			s.Narration = n
			out.Sections[i] = s
		case RealWorldSection:
			s.Narration = n
			out.Sections[i] = s
		}
	}
	return out
}

// Problems lists non-fatal issues a reviewer should know about before
// rendering. An empty result means the document is clean.
func (d Document) Problems() []string {
	var problems []string
	if len(d.Sections) == 0 {
		problems = append(problems, "document has no sections")
	}
	for i, section := range d.Sections {
		switch s := section.(type) {
		case CodeSection:
			if s.Code == "" {
				problems = append(problems, sectionProblem(i, "code section has empty code_string"))
			}
			lines := countLines(s.Code)
			for _, line := range s.HighlightLines {
				if line < 1 || line > lines {
					problems = append(problems, sectionProblem(i, "highlight line out of range"))
					break
				}
			}
		case QuizSection:
			if s.Skipped() {
				problems = append(problems, sectionProblem(i, "quiz is missing question or answer and will be skipped"))
			}
		case RealWorldSection:
			if s.Description == "" {
				problems = append(problems, sectionProblem(i, "real_world section has empty description"))
			}
		}
	}
	return problems
}

func sectionProblem(index int, message string) string {
	return fmt.Sprintf("section %d: %s", index+1, message)
}

func countLines(code string) int {
	if code == "" {
		return 0
	}
	n := 1
	for i := 0; i < len(code); i++ {
		if code[i] == '\n' && i < len(code)-1 {
			n++
		}
	}
	return n
}

// normalizeLines turns highlight lines into a sorted set.
func normalizeLines(lines []int) []int {
	if len(lines) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(lines))
	out := make([]int, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	sort.Ints(out)
	return out
}

// Skeleton returns a starter document with one section of each kind.
func Skeleton() Document {
	return Document{
		Intro: "Welcome to this tutorial",
		Sections: []Section{
			CodeSection{
				Code:           "print(\"hello\")",
				Annotation:     "Print a greeting",
				HighlightLines: []int{1},
				Explanation:    "The print function writes text to the console",
			},
			QuizSection{
				Question: "Which function writes text to the console?",
				Answer:   "print",
			},
			RealWorldSection{
				Description: "Logging progress from a long-running script",
			},
		},
		Outro: "Thanks for watching",
	}
}
