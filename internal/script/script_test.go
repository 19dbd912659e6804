package script_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"manimate/internal/script"
	"manimate/internal/services"
)

const sampleDoc = `{
  "intro": "Python lists",
  "sections": [
    {"type": "code", "code_string": "xs = [1, 2]\nxs.append(3)", "annotation": "append", "highlight_lines": [2, 1, 2], "explanation": "Append adds to the end"},
    {"type": "quiz", "question": "What does append return?", "answer": "None"},
    {"type": "quiz", "question": "Unanswered?"},
    {"type": "real_world", "description": "Collecting rows from a CSV", "code_string": "rows.append(r)"},
    {"code_string": "len(xs)", "explanation": "Length"},
    {"type": "diagram", "code_string": "pass"}
  ],
  "outro": "Bye"
}`

func TestParseDecodesVariants(t *testing.T) {
	doc, err := script.Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Intro != "Python lists" || doc.Outro != "Bye" {
		t.Fatalf("unexpected intro/outro: %q %q", doc.Intro, doc.Outro)
	}
	if len(doc.Sections) != 6 {
		t.Fatalf("expected 6 sections, got %d", len(doc.Sections))
	}

	code, ok := doc.Sections[0].(script.CodeSection)
	if !ok {
		t.Fatalf("section 1 is %T", doc.Sections[0])
	}
	if !reflect.DeepEqual(code.HighlightLines, []int{1, 2}) {
		t.Fatalf("expected highlight lines as sorted set, got %v", code.HighlightLines)
	}

	quiz, ok := doc.Sections[1].(script.QuizSection)
	if !ok || quiz.Skipped() {
		t.Fatalf("expected complete quiz, got %#v", doc.Sections[1])
	}
	if incomplete := doc.Sections[2].(script.QuizSection); !incomplete.Skipped() {
		t.Fatal("expected quiz without answer to be skipped")
	}

	rw, ok := doc.Sections[3].(script.RealWorldSection)
	if !ok || rw.Code != "rows.append(r)" {
		t.Fatalf("unexpected real world section: %#v", doc.Sections[3])
	}

	for _, idx := range []int{4, 5} {
		if doc.Sections[idx].Kind() != script.KindCode {
			t.Fatalf("section %d: expected default code kind, got %s", idx+1, doc.Sections[idx].Kind())
		}
	}
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	tests := map[string]string{
		"truncated":         `{"intro": "x", "sections": [`,
		"section not array": `{"sections": {"type": "code"}}`,
		"section scalar":    `{"sections": [42]}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := script.Parse([]byte(input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
		})
	}
}

func TestMarshalRoundTripsThroughEngineSchema(t *testing.T) {
	doc, err := script.Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	data, err := script.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw struct {
		Sections []map[string]any `json:"sections"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("staged JSON invalid: %v", err)
	}
	wantTypes := []string{"code", "quiz", "quiz", "real_world", "code", "code"}
	for i, want := range wantTypes {
		if raw.Sections[i]["type"] != want {
			t.Fatalf("section %d type = %v, want %s", i+1, raw.Sections[i]["type"], want)
		}
	}
	if _, ok := raw.Sections[0]["narration"]; ok {
		t.Fatal("expected narration to be omitted when not prepared")
	}

	again, err := script.Parse(data)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if !reflect.DeepEqual(again.Sections, doc.Sections) {
		t.Fatalf("sections changed across round trip:\n%#v\n%#v", doc.Sections, again.Sections)
	}
}

func TestMarshalKeepsEmptyCodeString(t *testing.T) {
	doc := script.Document{Sections: []script.Section{script.CodeSection{Explanation: "only words"}}}
	data, err := script.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"code_string": ""`) {
		t.Fatalf("expected empty code_string in %s", data)
	}
}

func TestWithNarrationAttachesByIndex(t *testing.T) {
	doc := script.Skeleton()
	prepared := []*script.Narration{
		{Cues: []script.Cue{{Text: "explain", Audio: "/cache/a.mp3", AudioSeconds: 2, HoldSeconds: 5}}, HoldSeconds: 5},
		nil,
		{HoldSeconds: 2},
	}

	narrated := doc.WithNarration(prepared)
	if doc.Sections[0].Prepared() != nil {
		t.Fatal("WithNarration must not modify the original document")
	}
	if got := narrated.Sections[0].Prepared(); got == nil || got.HoldSeconds != 5 {
		t.Fatalf("unexpected narration for section 1: %#v", got)
	}
	if narrated.Sections[1].Prepared() != nil {
		t.Fatal("expected nil narration for section 2")
	}

	data, err := script.Marshal(narrated)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"audio": "/cache/a.mp3"`) {
		t.Fatalf("expected cue audio in staged document: %s", data)
	}
}

func TestProblems(t *testing.T) {
	doc := script.Document{Sections: []script.Section{
		script.CodeSection{Code: "a\nb", HighlightLines: []int{3}},
		script.QuizSection{Question: "q"},
		script.RealWorldSection{},
	}}
	problems := doc.Problems()
	if len(problems) != 3 {
		t.Fatalf("expected 3 problems, got %v", problems)
	}
	if !strings.HasPrefix(problems[1], "section 2:") {
		t.Fatalf("unexpected problem text: %q", problems[1])
	}
	if len(script.Skeleton().Problems()) != 0 {
		t.Fatalf("skeleton should be clean: %v", script.Skeleton().Problems())
	}
	if len((script.Document{}).Problems()) != 1 {
		t.Fatal("expected empty document to be reported")
	}
}

func TestLoadSetsSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := script.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Source != path {
		t.Fatalf("unexpected source %q", doc.Source)
	}

	if _, err := script.Load(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found marker, got %v", err)
	}
}
