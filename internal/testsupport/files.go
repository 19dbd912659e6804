package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"manimate/internal/script"
)

// WriteScript encodes doc into dir/name and returns the full path.
func WriteScript(t testing.TB, dir, name string, doc script.Document) string {
	t.Helper()

	data, err := script.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	return WriteText(t, filepath.Join(dir, name), string(data))
}

// WriteText writes content to path, creating parent directories, and returns path.
func WriteText(t testing.TB, path, content string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteExecutable writes a shell script to dir/name with the executable bit set.
func WriteExecutable(t testing.TB, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// SampleDocument returns a document with one narrated section of each kind.
func SampleDocument() script.Document {
	return script.Document{
		Intro: "Loops in Python",
		Sections: []script.Section{
			script.CodeSection{
				Code:           "for i in range(3):\n    print(i)",
				Annotation:     "A counted loop",
				HighlightLines: []int{1},
				Explanation:    "The loop runs three times",
			},
			script.QuizSection{Question: "How many times does it print?", Answer: "Three"},
			script.RealWorldSection{Description: "Processing every line of a file"},
		},
		Outro: "Happy looping",
	}
}
