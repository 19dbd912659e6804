package tts

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"manimate/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures an EdgeTTS backend.
type Option func(*EdgeTTS)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(e *EdgeTTS) {
		if exec != nil {
			e.exec = exec
		}
	}
}

// EdgeTTS wraps the edge-tts command line tool.
type EdgeTTS struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// NewEdgeTTS constructs an edge-tts backend. A zero timeout waits indefinitely.
func NewEdgeTTS(binary string, timeout time.Duration, opts ...Option) (*EdgeTTS, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("edge-tts binary required")
	}
	e := &EdgeTTS{binary: binary, timeout: timeout, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Synthesize runs `edge-tts --voice V --text=T --write-media outPath`. The
// text is joined to its flag so narration starting with "-" is not read as an
// option.
func (e *EdgeTTS) Synthesize(ctx context.Context, text, voice, outPath string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("edge-tts: text cannot be empty")
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	args := []string{"--voice", voice, "--text=" + text, "--write-media", outPath}
	output, err := e.exec.Run(ctx, e.binary, args)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "tts", "edge-tts", fmt.Sprintf("no result after %s", e.timeout), err)
		}
		return services.Wrap(services.ErrExternalTool, "tts", "edge-tts", lastLine(output), err)
	}
	return nil
}

// ListVoices returns the short names reported by `edge-tts --list-voices`.
func (e *EdgeTTS) ListVoices(ctx context.Context) ([]string, error) {
	output, err := e.exec.Run(ctx, e.binary, []string{"--list-voices"})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "tts", "list voices", lastLine(output), err)
	}
	return parseVoiceList(output), nil
}

// parseVoiceList accepts both the "Name: xx-XX-FooNeural" listing and the
// tabular listing where the short name is the first column.
func parseVoiceList(output []byte) []string {
	var voices []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "Name:"); ok {
			voices = append(voices, strings.TrimSpace(rest))
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 0 && strings.HasSuffix(fields[0], "Neural") {
			voices = append(voices, fields[0])
		}
	}
	return voices
}

func lastLine(output []byte) string {
	trimmed := strings.TrimSpace(string(output))
	if idx := strings.LastIndexByte(trimmed, '\n'); idx >= 0 {
		return strings.TrimSpace(trimmed[idx+1:])
	}
	return trimmed
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
