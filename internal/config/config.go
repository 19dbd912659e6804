package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir     string `toml:"work_dir"`
	LogDir      string `toml:"log_dir"`
	CacheDir    string `toml:"cache_dir"`
	OutputDir   string `toml:"output_dir"`
	StateDir    string `toml:"state_dir"`
	StagingFile string `toml:"staging_file"`
}

// Scripts describes how script documents are recognised in the work directory.
type Scripts struct {
	Extension  string `toml:"extension"`
	LedgerFile string `toml:"ledger_file"`
}

// Render contains configuration for the external render engine.
type Render struct {
	Binary         string `toml:"binary"`
	Module         string `toml:"module"`
	Scene          string `toml:"scene"`
	Quality        string `toml:"quality"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	GraceSeconds   int    `toml:"grace_seconds"`
	// ProjectDir is the engine working directory; empty means the directory
	// manimate is started from.
	ProjectDir string `toml:"project_dir"`
	// PrepareNarration synthesizes section narration before the engine runs
	// and embeds audio paths and hold times into the staged document.
	PrepareNarration bool `toml:"prepare_narration"`
}

// Voice contains speech-synthesis settings.
type Voice struct {
	Voice             string  `toml:"voice"`
	Backend           string  `toml:"backend"`
	Binary            string  `toml:"binary"`
	ServiceURL        string  `toml:"service_url"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Timing contains the section hold-time policy.
type Timing struct {
	PaddingSeconds       float64 `toml:"padding_seconds"`
	AnswerPaddingSeconds float64 `toml:"answer_padding_seconds"`
	MinHoldSeconds       float64 `toml:"min_hold_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	CombinedLog   string `toml:"combined_log"`
}

// History controls the SQLite run history.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Notifications configures ntfy delivery of batch outcomes. An empty topic
// disables notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	// NotifyFailures sends one message per failed render in addition to the
	// batch summary.
	NotifyFailures bool `toml:"notify_failures"`
}

// Config encapsulates all configuration values for manimate.
//
// Configuration sections by subsystem:
//   - Paths: work, log, cache, output and state directories
//   - Scripts: script extension and ledger filename
//   - Render: render engine invocation and timeouts
//   - Voice: speech-synthesis backend and voice
//   - Timing: section hold-time padding
//   - Logging: log format, level, retention and combined log name
//   - History: run history database
//   - Notifications: ntfy topic for batch outcomes
type Config struct {
	Paths   Paths   `toml:"paths"`
	Scripts Scripts `toml:"scripts"`
	Render  Render  `toml:"render"`
	Voice   Voice   `toml:"voice"`
	Timing  Timing  `toml:"timing"`
	Logging Logging `toml:"logging"`
	History History `toml:"history"`

	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/manimate/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("manimate.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a batch run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.LogDir, c.Paths.CacheDir, c.Paths.OutputDir, c.Paths.StateDir}
	if staging := strings.TrimSpace(c.Paths.StagingFile); staging != "" {
		dirs = append(dirs, filepath.Dir(staging))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the absolute path of the completion ledger.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.WorkDir, c.Scripts.LedgerFile)
}

// CombinedLogPath returns the absolute path of the consolidated log.
func (c *Config) CombinedLogPath() string {
	return filepath.Join(c.Paths.LogDir, c.Logging.CombinedLog)
}

// HistoryPath returns the SQLite run history location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// BatchLockPath returns the single-instance lock guarding the staging file.
func (c *Config) BatchLockPath() string {
	return filepath.Join(c.Paths.WorkDir, ".manimate.lock")
}

// FFprobeBinary returns the ffprobe executable name used for duration measurement.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// QualityFlag maps the configured quality name onto the render engine flag.
func (c *Config) QualityFlag() string {
	return QualityFlag(c.Render.Quality)
}

// QualityFlag maps a quality name ("low", "medium", ...) onto the render
// engine's -q flag. Unknown names fall back to low quality.
func QualityFlag(quality string) string {
	if flag, ok := qualityFlags[strings.ToLower(strings.TrimSpace(quality))]; ok {
		return flag
	}
	return qualityFlags[defaultRenderQuality]
}

// QualityDir returns the directory the render engine names after the
// configured quality, such as "480p15" for low.
func (c *Config) QualityDir() string {
	if dir, ok := qualityDirs[c.Render.Quality]; ok {
		return dir
	}
	return qualityDirs[defaultRenderQuality]
}

var qualityDirs = map[string]string{
	"low":        "480p15",
	"medium":     "720p30",
	"high":       "1080p60",
	"production": "1440p60",
	"4k":         "2160p60",
}

var qualityFlags = map[string]string{
	"low":        "-ql",
	"medium":     "-qm",
	"high":       "-qh",
	"production": "-qp",
	"4k":         "-qk",
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
