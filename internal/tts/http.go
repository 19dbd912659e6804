package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"manimate/internal/services"
)

const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"

	contentTypeJSON = "application/json"
	contentTypeMP3  = "audio/mpeg"
)

// SpeechRequest is the JSON payload for /v1/generate/speech.
type SpeechRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Format string `json:"format"`
}

// errorResponse is the structured error body returned by the service.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// HTTPClient talks to a speech service over HTTP. Requests are paced by a
// token bucket so a batch of short sections does not flood the service.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewHTTPClient creates a client for baseURL (e.g. "http://localhost:8000").
// requestsPerSecond <= 0 disables pacing.
func NewHTTPClient(baseURL string, timeout time.Duration, requestsPerSecond float64) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tts service url required")
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

// Synthesize requests MP3 audio and streams the body to outPath.
func (c *HTTPClient) Synthesize(ctx context.Context, text, voice, outPath string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("tts service: text cannot be empty")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return services.Wrap(services.ErrTransient, "tts", "rate limit", "", err)
	}

	body, err := json.Marshal(SpeechRequest{Text: text, Voice: voice, Format: "mp3"})
	if err != nil {
		return fmt.Errorf("marshal speech request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiGenerateSpeech, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create speech request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeMP3)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "tts", "request", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrExternalTool, "tts", "request", describeFailure(resp), nil)
	}

	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	written, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		return services.Wrap(services.ErrTransient, "tts", "read audio", "", copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close audio file: %w", closeErr)
	}
	if written == 0 {
		return services.Wrap(services.ErrExternalTool, "tts", "read audio", "received empty audio data", nil)
	}
	return nil
}

// Health checks the service's /health endpoint.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tts service unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tts service health: %s", describeFailure(resp))
	}
	return nil
}

func describeFailure(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Detail != "" {
		if parsed.ErrorCode != "" {
			return fmt.Sprintf("%s: %s (code: %s)", resp.Status, parsed.Detail, parsed.ErrorCode)
		}
		return fmt.Sprintf("%s: %s", resp.Status, parsed.Detail)
	}
	return fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(raw)))
}
