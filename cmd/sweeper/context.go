package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"sweeper/internal/api"
	"sweeper/internal/config"
	"sweeper/internal/daemonrun"
	"sweeper/internal/events"
	"sweeper/internal/immich"
	"sweeper/internal/logging"
	"sweeper/internal/notifications"
	"sweeper/internal/results"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.MergeSavedConnection(); err != nil {
			c.configErr = fmt.Errorf("load saved connection: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// logLevel returns the --log-level override, or fallback when none was given.
func (c *commandContext) logLevel(fallback string) string {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	return fallback
}

// commandLogger writes warnings to stderr and, at the configured level, to the
// shared log file so foreground runs leave the same trail as the daemon.
func (c *commandContext) commandLogger(cfg *config.Config) (*slog.Logger, error) {
	console, err := logging.New(logging.Options{
		Level:       c.logLevel("warn"),
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, err
	}
	file, err := logging.New(logging.Options{
		Level:       c.logLevel(cfg.Logging.Level),
		Format:      cfg.Logging.Format,
		OutputPaths: []string{cfg.LogPath()},
	})
	if err != nil {
		return nil, err
	}
	return logging.TeeLogger(console, file.Handler()), nil
}

// withService opens the result store and builds a dashboard service for the
// duration of fn.
func (c *commandContext) withService(fn func(*api.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.commandLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	store, err := results.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := api.NewService(cfg, store,
		api.WithHub(events.NewHub(64)),
		api.WithNotifier(notifications.NewService(cfg)),
		api.WithLogger(logger),
		api.WithClientOptions(immich.WithUserAgent("sweeper/"+daemonrun.Version)),
	)
	if err != nil {
		return err
	}
	defer svc.Shutdown()
	return fn(svc)
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
