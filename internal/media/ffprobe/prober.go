package ffprobe

import (
	"context"
	"fmt"
	"math"
)

// Prober measures the playable duration of an audio file. Tests substitute a
// fake so cache behaviour does not depend on real synthesis timing.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// CommandProber runs the ffprobe binary.
type CommandProber struct {
	Binary string
}

// NewProber returns a Prober backed by the given ffprobe binary.
func NewProber(binary string) CommandProber {
	return CommandProber{Binary: binary}
}

// Duration returns the file's duration in seconds. Files reporting no usable
// duration are an error so callers never schedule a zero-length hold for real audio.
func (p CommandProber) Duration(ctx context.Context, path string) (float64, error) {
	result, err := Inspect(ctx, p.Binary, path)
	if err != nil {
		return 0, err
	}
	seconds := result.DurationSeconds()
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0, fmt.Errorf("ffprobe: %s reports no usable duration (%q)", path, result.Format.Duration)
	}
	return seconds, nil
}
