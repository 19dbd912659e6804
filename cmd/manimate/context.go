package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"manimate/internal/app"
	"manimate/internal/config"
	"manimate/internal/logging"
)

type commandContext struct {
	configFlag  *string
	qualityFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	runtime *app.Runtime
	// runtimeOptions replaces default collaborators; tests use it to inject fakes.
	runtimeOptions app.Options
}

func newCommandContext(configFlag, qualityFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		qualityFlag: qualityFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.qualityFlag != nil && strings.TrimSpace(*c.qualityFlag) != "" {
			cfg.Render.Quality = strings.ToLower(strings.TrimSpace(*c.qualityFlag))
			if err := cfg.Validate(); err != nil {
				c.configErr = fmt.Errorf("--quality: %w", err)
				return
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// ensureRuntime builds the shared runtime on first use and applies log retention.
func (c *commandContext) ensureRuntime() (*app.Runtime, error) {
	if c.runtime != nil {
		return c.runtime, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	rt, err := app.Build(cfg, logger, c.runtimeOptions)
	if err != nil {
		return nil, err
	}
	app.CleanupLogs(logger, cfg)
	c.runtime = rt
	return rt, nil
}

func (c *commandContext) close() {
	if c.runtime != nil {
		_ = c.runtime.Close()
		c.runtime = nil
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
