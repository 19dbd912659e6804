package testsupport

import (
	"context"
	"os"
	"sync"
)

// FakeSynthesizer writes a fixed payload instead of speaking. It records
// every call so tests can assert on cache hits.
type FakeSynthesizer struct {
	mu      sync.Mutex
	Payload []byte
	Err     error
	// FailText lists texts that fail with Err while others succeed.
	FailText map[string]bool
	calls    []SynthCall
}

// SynthCall captures one Synthesize invocation.
type SynthCall struct {
	Text  string
	Voice string
	Path  string
}

func (f *FakeSynthesizer) Synthesize(_ context.Context, text, voice, outPath string) error {
	f.mu.Lock()
	f.calls = append(f.calls, SynthCall{Text: text, Voice: voice, Path: outPath})
	err := f.Err
	fail := f.FailText == nil || f.FailText[text]
	payload := f.Payload
	f.mu.Unlock()

	if err != nil && fail {
		return err
	}
	if len(payload) == 0 {
		payload = []byte("ID3fake")
	}
	return os.WriteFile(outPath, payload, 0o644)
}

// Calls returns a copy of the recorded invocations.
func (f *FakeSynthesizer) Calls() []SynthCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SynthCall(nil), f.calls...)
}

// FakeProber reports a fixed duration for every path, or a per-path override.
type FakeProber struct {
	mu       sync.Mutex
	Seconds  float64
	ByPath   map[string]float64
	Err      error
	measured int
}

func (p *FakeProber) Duration(_ context.Context, path string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.measured++
	if p.Err != nil {
		return 0, p.Err
	}
	if seconds, ok := p.ByPath[path]; ok {
		return seconds, nil
	}
	return p.Seconds, nil
}

// Measured returns how many times Duration was called.
func (p *FakeProber) Measured() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.measured
}
