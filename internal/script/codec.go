package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"manimate/internal/services"
)

type wireDocument struct {
	Intro    string            `json:"intro"`
	Sections []json.RawMessage `json:"sections"`
	Outro    string            `json:"outro"`
}

type wireSection struct {
	Type           Kind       `json:"type"`
	CodeString     string     `json:"code_string,omitempty"`
	Annotation     string     `json:"annotation,omitempty"`
	HighlightLines []int      `json:"highlight_lines,omitempty"`
	Explanation    string     `json:"explanation,omitempty"`
	Question       string     `json:"question,omitempty"`
	Answer         string     `json:"answer,omitempty"`
	Description    string     `json:"description,omitempty"`
	Narration      *Narration `json:"narration,omitempty"`
}

// Load reads and parses the document at path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, services.Wrap(services.ErrNotFound, "script", "read", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// Parse decodes a document. Malformed JSON or a section that is not an object
// yields an error marked services.ErrValidation.
func Parse(data []byte) (Document, error) {
	var wire wireDocument
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&wire); err != nil {
		return Document{}, services.Wrap(services.ErrValidation, "script", "decode", "invalid document", err)
	}

	doc := Document{Intro: wire.Intro, Outro: wire.Outro}
	for i, raw := range wire.Sections {
		var ws wireSection
		if err := json.Unmarshal(raw, &ws); err != nil {
			return Document{}, services.Wrap(services.ErrValidation, "script", "decode", fmt.Sprintf("section %d", i+1), err)
		}
		doc.Sections = append(doc.Sections, ws.section())
	}
	return doc, nil
}

func (ws wireSection) section() Section {
	switch ws.Type {
	case KindQuiz:
		return QuizSection{Question: ws.Question, Answer: ws.Answer, Narration: ws.Narration}
	case KindRealWorld:
		return RealWorldSection{Description: ws.Description, Code: ws.CodeString, Narration: ws.Narration}
	default:
		return CodeSection{
			Code:           ws.CodeString,
			Annotation:     ws.Annotation,
			HighlightLines: normalizeLines(ws.HighlightLines),
			Explanation:    ws.Explanation,
			Narration:      ws.Narration,
		}
	}
}

func toWire(section Section) (wireSection, error) {
	switch s := section.(type) {
	case QuizSection:
		return wireSection{Type: KindQuiz, Question: s.Question, Answer: s.Answer, Narration: s.Narration}, nil
	case RealWorldSection:
		return wireSection{Type: KindRealWorld, Description: s.Description, CodeString: s.Code, Narration: s.Narration}, nil
	case CodeSection:
		return wireSection{
			Type:           KindCode,
			CodeString:     s.Code,
			Annotation:     s.Annotation,
			HighlightLines: s.HighlightLines,
			Explanation:    s.Explanation,
			Narration:      s.Narration,
		}, nil
	default:
		return wireSection{}, fmt.Errorf("script: unexpected section type %T", section)
	}
}

// Marshal encodes the document in the schema the render engine reads. Code
// sections always carry code_string, even when empty.
func Marshal(doc Document) ([]byte, error) {
	out := struct {
		Intro    string `json:"intro"`
		Sections []any  `json:"sections"`
		Outro    string `json:"outro"`
	}{Intro: doc.Intro, Outro: doc.Outro, Sections: make([]any, 0, len(doc.Sections))}

	for i, section := range doc.Sections {
		ws, err := toWire(section)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i+1, err)
		}
		if ws.Type == KindCode {
			out.Sections = append(out.Sections, codeWire{wireSection: ws, CodeString: ws.CodeString})
			continue
		}
		out.Sections = append(out.Sections, ws)
	}
	return json.MarshalIndent(out, "", "  ")
}

// codeWire shadows code_string so it is emitted even when empty.
type codeWire struct {
	wireSection
	CodeString string `json:"code_string"`
}
