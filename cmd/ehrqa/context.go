package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ehrqa/internal/app"
	"ehrqa/internal/config"
	"ehrqa/internal/infrastructure"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	logFile    *os.File
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

// ensureConfig loads the configuration once. --log-level overrides the
// logging level of the file and environment.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the JSON logger once, writing console output to w
func (c *commandContext) ensureLogger(w io.Writer) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.logFile, c.loggerErr = infrastructure.NewLogger(cfg.Logging, w)
	})
	return c.logger, c.loggerErr
}

// withApplication builds the application container for cmd and closes it
// once fn returns
func (c *commandContext) withApplication(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := infrastructure.EnsureTraceID(cmd.Context())
	a, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a)
	if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	return runErr
}

func (c *commandContext) close() error {
	if c.logFile == nil {
		return nil
	}
	err := c.logFile.Close()
	c.logFile = nil
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
