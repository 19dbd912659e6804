package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScripts(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateVoice(); err != nil {
		return err
	}
	if err := c.validateTiming(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.CacheDir == "" {
		return errors.New("paths.cache_dir must be set")
	}
	return nil
}

func (c *Config) validateScripts() error {
	if strings.ContainsAny(c.Scripts.LedgerFile, `/\`) {
		return fmt.Errorf("scripts.ledger_file must be a bare filename, got %q", c.Scripts.LedgerFile)
	}
	if filepath.Ext(c.Scripts.LedgerFile) == c.Scripts.Extension {
		return fmt.Errorf("scripts.ledger_file %q must not use the script extension %q", c.Scripts.LedgerFile, c.Scripts.Extension)
	}
	staging := filepath.Clean(c.Paths.StagingFile)
	if filepath.Dir(staging) == filepath.Clean(c.Paths.WorkDir) && strings.ToLower(filepath.Ext(staging)) == c.Scripts.Extension {
		return fmt.Errorf("paths.staging_file %q must not be a %s file inside paths.work_dir", c.Paths.StagingFile, c.Scripts.Extension)
	}
	return nil
}

func (c *Config) validateRender() error {
	if _, ok := qualityFlags[c.Render.Quality]; !ok {
		return fmt.Errorf("render.quality must be one of low, medium, high, production, 4k (got %q)", c.Render.Quality)
	}
	return ensurePositiveMap(map[string]int{
		"render.grace_seconds":  c.Render.GraceSeconds,
		"voice.timeout_seconds": c.Voice.TimeoutSeconds,
	})
}

func (c *Config) validateVoice() error {
	switch c.Voice.Backend {
	case "edge-tts":
	case "http":
		if c.Voice.ServiceURL == "" {
			return errors.New("voice.service_url must be set when voice.backend is \"http\" (or set MANIMATE_TTS_URL)")
		}
		if !strings.HasPrefix(c.Voice.ServiceURL, "http://") && !strings.HasPrefix(c.Voice.ServiceURL, "https://") {
			return fmt.Errorf("voice.service_url must be an http(s) URL, got %q", c.Voice.ServiceURL)
		}
	default:
		return fmt.Errorf("voice.backend must be \"edge-tts\" or \"http\" (got %q)", c.Voice.Backend)
	}
	return nil
}

func (c *Config) validateTiming() error {
	values := map[string]float64{
		"timing.padding_seconds":        c.Timing.PaddingSeconds,
		"timing.answer_padding_seconds": c.Timing.AnswerPaddingSeconds,
		"timing.min_hold_seconds":       c.Timing.MinHoldSeconds,
	}
	for key, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
			return fmt.Errorf("%s must be a non-negative number", key)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	if strings.ContainsAny(c.Logging.CombinedLog, `/\`) {
		return fmt.Errorf("logging.combined_log must be a bare filename, got %q", c.Logging.CombinedLog)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) topic URL, got %q", topic)
	}
	return nil
}
