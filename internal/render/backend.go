package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"manimate/internal/services"
)

// ScriptFileEnv names the variable the engine reads the staged document from.
const ScriptFileEnv = "MANIM_SCRIPT_FILE"

// ErrEngineNotFound reports that the render engine binary is not installed.
// It is fatal to a batch.
var ErrEngineNotFound = errors.New("render engine not found")

// Invocation describes one engine launch.
type Invocation struct {
	Binary      string
	QualityFlag string
	Module      string
	Scene       string
	Output      string
	ScriptFile  string
	Dir         string
	// GracePeriod is how long the engine may run after SIGTERM before it is killed.
	GracePeriod time.Duration
}

// Args returns the engine arguments: -q<x> <module> <scene> -o <output>.
func (inv Invocation) Args() []string {
	return []string{inv.QualityFlag, inv.Module, inv.Scene, "-o", inv.Output}
}

// Backend launches the engine and reports its exit status. A non-zero exit
// is returned as an exit code with a nil error; errors mean the engine could
// not be run to completion.
type Backend interface {
	Run(ctx context.Context, inv Invocation, log io.Writer) (int, error)
}

// CommandBackend runs the engine as a subprocess.
type CommandBackend struct {
	// LookPath resolves the binary; nil uses exec.LookPath.
	LookPath func(string) (string, error)
}

// Run executes the engine with stdout and stderr sent to log. Cancelling ctx
// sends SIGTERM and kills the process once the grace period lapses.
func (b CommandBackend) Run(ctx context.Context, inv Invocation, log io.Writer) (int, error) {
	lookPath := b.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	binary, err := lookPath(inv.Binary)
	if err != nil {
		return -1, fmt.Errorf("%w: %s: %w", ErrEngineNotFound, inv.Binary, err)
	}

	cmd := exec.CommandContext(ctx, binary, inv.Args()...) //nolint:gosec
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), ScriptFileEnv+"="+inv.ScriptFile)
	cmd.Stdout = log
	cmd.Stderr = log
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = inv.GracePeriod

	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return -1, services.Wrap(services.ErrTimeout, "render", "run", "Render engine exceeded its timeout", ctxErr)
		}
		return -1, fmt.Errorf("render interrupted: %w", ctxErr)
	}
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, services.Wrap(services.ErrExternalTool, "render", "run", "Failed to run render engine", err)
}
