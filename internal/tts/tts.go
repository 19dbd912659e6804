package tts

import (
	"context"
	"fmt"
	"time"

	"manimate/internal/config"
)

// Synthesizer writes spoken audio for text in the given voice to outPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, outPath string) error
}

// New builds the backend selected by the [voice] config section.
func New(cfg config.Voice) (Synthesizer, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Backend {
	case "", "edge-tts":
		return NewEdgeTTS(cfg.Binary, timeout)
	case "http":
		return NewHTTPClient(cfg.ServiceURL, timeout, cfg.RequestsPerSecond)
	default:
		return nil, fmt.Errorf("unsupported voice backend %q", cfg.Backend)
	}
}
