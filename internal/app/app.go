package app

import (
	"errors"
	"fmt"
	"log/slog"

	"manimate/internal/audiocache"
	"manimate/internal/batch"
	"manimate/internal/config"
	"manimate/internal/deps"
	"manimate/internal/history"
	"manimate/internal/ledger"
	"manimate/internal/logging"
	"manimate/internal/media/ffprobe"
	"manimate/internal/narration"
	"manimate/internal/notifications"
	"manimate/internal/preflight"
	"manimate/internal/render"
	"manimate/internal/textutil"
	"manimate/internal/timing"
	"manimate/internal/tts"
)

// Options overrides pieces of the runtime, mainly for tests.
type Options struct {
	Backend     render.Backend
	Synthesizer tts.Synthesizer
	Prober      ffprobe.Prober
	Observer    batch.Observer
	Notifier    notifications.Service
}

// Runtime holds the components a batch or single render needs.
type Runtime struct {
	Config       *config.Config
	Logger       *slog.Logger
	Ledger       *ledger.Ledger
	Cache        *audiocache.Cache
	Narrator     *narration.Narrator
	Driver       *render.Driver
	History      *history.Store
	Orchestrator *batch.Orchestrator
}

// Build wires the runtime from cfg. History is optional: when it cannot be
// opened a warning is logged and runs are not recorded.
func Build(cfg *config.Config, logger *slog.Logger, opts Options) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	rt := &Runtime{
		Config: cfg,
		Logger: logger,
		Ledger: ledger.New(cfg.LedgerPath()),
	}

	synth := opts.Synthesizer
	if synth == nil {
		var err error
		synth, err = tts.New(cfg.Voice)
		if err != nil {
			return nil, fmt.Errorf("init voice backend: %w", err)
		}
	}
	prober := opts.Prober
	if prober == nil {
		prober = ffprobe.NewProber(cfg.FFprobeBinary())
	}
	cache, err := audiocache.New(cfg.Paths.CacheDir, synth, prober, audiocache.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	rt.Cache = cache
	rt.Narrator = narration.New(cache, timing.FromConfig(cfg.Timing), cfg.Voice.Voice, logger)

	settings := render.SettingsFromConfig(cfg)
	rt.Driver = render.NewDriver(opts.Backend, settings, logger)

	if cfg.History.Enabled {
		store, err := history.Open(cfg)
		if err != nil {
			logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
				logging.Error(err),
				logging.String("path", cfg.HistoryPath()),
				logging.String(logging.FieldErrorHint, "check paths.state_dir or disable [history]"),
				logging.String(logging.FieldImpact, "runs are not recorded"),
			)
		} else {
			rt.History = store
		}
	}

	batchCfg := batch.Config{
		WorkDir:   cfg.Paths.WorkDir,
		Extension: cfg.Scripts.Extension,
		LogDir:    cfg.Paths.LogDir,
		LockPath:  cfg.BatchLockPath(),
		Renderer:  rt.Driver,
		Ledger:    rt.Ledger,
		Observer:  opts.Observer,
		Logger:    logger,
	}
	if cfg.Render.PrepareNarration {
		batchCfg.Narrator = rt.Narrator
	}
	if rt.History != nil {
		batchCfg.History = rt.History
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if notifications.Enabled(notifier) {
		batchCfg.Notifier = batchNotifier{svc: notifier, failures: cfg.Notifications.NotifyFailures, logger: logger}
	}
	orch, err := batch.New(batchCfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Orchestrator = orch
	return rt, nil
}

// Close releases the history database.
func (r *Runtime) Close() error {
	if r == nil || r.History == nil {
		return nil
	}
	return r.History.Close()
}

// LogDependencySnapshot records which external tools are resolvable and warns
// about missing required ones before a batch starts.
func LogDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	statuses := preflight.CheckSystemDeps(cfg)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("voice_backend", cfg.Voice.Backend),
		logging.String("voice", cfg.Voice.Voice),
		logging.String("quality", cfg.Render.Quality),
		logging.Bool("narration_enabled", cfg.Render.PrepareNarration),
	}
	for _, status := range statuses {
		attrs = append(attrs, logging.Bool(textutil.SanitizeToken(status.Name)+"_available", status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	for _, missing := range deps.Missing(statuses) {
		logging.WarnWithContext(logger, "required tool missing", "dependency_missing",
			logging.String("tool", missing.Name),
			logging.String("command", missing.Command),
			logging.String(logging.FieldErrorHint, "install it or fix the path in the config, then run manimate doctor"),
			logging.String(logging.FieldImpact, missing.Description+" will fail"),
		)
	}
}

// CleanupLogs applies log retention to the application log and combined log.
// Per-job render logs are left for consolidation.
func CleanupLogs(logger *slog.Logger, cfg *config.Config) int {
	return logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "manimate*.log"},
	)
}
