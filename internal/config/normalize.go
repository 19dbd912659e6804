package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScripts()
	if err := c.normalizeRender(); err != nil {
		return err
	}
	c.normalizeVoice()
	c.normalizeTiming()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingFile) == "" {
		c.Paths.StagingFile = defaultStagingFile
	}
	if c.Paths.StagingFile, err = expandPath(c.Paths.StagingFile); err != nil {
		return fmt.Errorf("paths.staging_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeScripts() {
	c.Scripts.Extension = strings.ToLower(strings.TrimSpace(c.Scripts.Extension))
	if c.Scripts.Extension == "" {
		c.Scripts.Extension = defaultScriptExtension
	}
	if !strings.HasPrefix(c.Scripts.Extension, ".") {
		c.Scripts.Extension = "." + c.Scripts.Extension
	}
	c.Scripts.LedgerFile = strings.TrimSpace(c.Scripts.LedgerFile)
	if c.Scripts.LedgerFile == "" {
		c.Scripts.LedgerFile = defaultLedgerFile
	}
}

func (c *Config) normalizeRender() error {
	c.Render.Binary = strings.TrimSpace(c.Render.Binary)
	if c.Render.Binary == "" {
		c.Render.Binary = defaultRenderBinary
	}
	c.Render.Module = strings.TrimSpace(c.Render.Module)
	if c.Render.Module == "" {
		c.Render.Module = defaultRenderModule
	}
	c.Render.Scene = strings.TrimSpace(c.Render.Scene)
	if c.Render.Scene == "" {
		c.Render.Scene = defaultRenderScene
	}
	c.Render.Quality = strings.ToLower(strings.TrimSpace(c.Render.Quality))
	if c.Render.Quality == "" {
		c.Render.Quality = defaultRenderQuality
	}
	if c.Render.TimeoutSeconds < 0 {
		c.Render.TimeoutSeconds = 0
	}
	if c.Render.GraceSeconds <= 0 {
		c.Render.GraceSeconds = defaultRenderGraceSeconds
	}
	c.Render.ProjectDir = strings.TrimSpace(c.Render.ProjectDir)
	if c.Render.ProjectDir == "" {
		return nil
	}
	var err error
	if c.Render.ProjectDir, err = expandPath(c.Render.ProjectDir); err != nil {
		return fmt.Errorf("render.project_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeVoice() {
	c.Voice.Voice = strings.TrimSpace(c.Voice.Voice)
	if value, ok := os.LookupEnv("MANIMATE_VOICE"); ok && strings.TrimSpace(value) != "" {
		c.Voice.Voice = strings.TrimSpace(value)
	}
	if c.Voice.Voice == "" {
		c.Voice.Voice = defaultVoice
	}
	c.Voice.Backend = strings.ToLower(strings.TrimSpace(c.Voice.Backend))
	if c.Voice.Backend == "" {
		c.Voice.Backend = defaultVoiceBackend
	}
	c.Voice.Binary = strings.TrimSpace(c.Voice.Binary)
	if c.Voice.Binary == "" {
		c.Voice.Binary = defaultEdgeTTSBinary
	}
	c.Voice.ServiceURL = strings.TrimSpace(c.Voice.ServiceURL)
	if c.Voice.ServiceURL == "" {
		if value, ok := os.LookupEnv("MANIMATE_TTS_URL"); ok {
			c.Voice.ServiceURL = strings.TrimSpace(value)
		}
	}
	c.Voice.ServiceURL = strings.TrimRight(c.Voice.ServiceURL, "/")
	if c.Voice.TimeoutSeconds <= 0 {
		c.Voice.TimeoutSeconds = defaultVoiceTimeoutSeconds
	}
	if c.Voice.RequestsPerSecond <= 0 {
		c.Voice.RequestsPerSecond = defaultVoiceRequestsPerSec
	}
}

func (c *Config) normalizeTiming() {
	if c.Timing.MinHoldSeconds <= 0 {
		c.Timing.MinHoldSeconds = defaultMinHoldSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	c.Logging.CombinedLog = strings.TrimSpace(c.Logging.CombinedLog)
	if c.Logging.CombinedLog == "" {
		c.Logging.CombinedLog = defaultCombinedLog
	}
}
