package testsupport

import (
	"context"
	"io"
	"os"
	"sync"

	"manimate/internal/render"
)

// FakeBackend stands in for the render engine. It captures the staged
// document at launch time and writes LogOutput to the job log.
type FakeBackend struct {
	mu sync.Mutex
	// ExitCodes maps output names to the exit code to report; missing entries exit 0.
	ExitCodes map[string]int
	// Errs maps output names to launch errors.
	Errs map[string]error
	// Err, when set, fails every run.
	Err       error
	LogOutput string
	// OnRun runs before the fake returns, with the invocation context.
	OnRun func(ctx context.Context, inv render.Invocation) error
	runs  []FakeRun
}

// FakeRun records one invocation.
type FakeRun struct {
	Invocation render.Invocation
	Staged     []byte
}

func (f *FakeBackend) Run(ctx context.Context, inv render.Invocation, log io.Writer) (int, error) {
	staged, _ := os.ReadFile(inv.ScriptFile)

	f.mu.Lock()
	f.runs = append(f.runs, FakeRun{Invocation: inv, Staged: staged})
	code := f.ExitCodes[inv.Output]
	err := f.Err
	if e, ok := f.Errs[inv.Output]; ok {
		err = e
	}
	output := f.LogOutput
	hook := f.OnRun
	f.mu.Unlock()

	if output != "" {
		_, _ = io.WriteString(log, output)
	}
	if hook != nil {
		if hookErr := hook(ctx, inv); hookErr != nil {
			return -1, hookErr
		}
	}
	if err != nil {
		return -1, err
	}
	return code, nil
}

// Runs returns a copy of the recorded invocations.
func (f *FakeBackend) Runs() []FakeRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeRun(nil), f.runs...)
}

// Outputs returns the output names in launch order.
func (f *FakeBackend) Outputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, run.Invocation.Output)
	}
	return out
}
