package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"sweeper/internal/config"
	"sweeper/internal/daemonrun"
)

type launchOptions struct {
	configPath  string
	logLevel    string
	development bool
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (launchOptions, error) {
	var opts launchOptions
	fs := pflag.NewFlagSet("sweeperd", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")
	fs.BoolVar(&opts.development, "development", false, "Include source locations in log output")
	fs.BoolVar(&opts.version, "version", false, "Print the version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func loadConfig(opts launchOptions) (*config.Config, error) {
	cfg, _, _, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runOptions(opts launchOptions) daemonrun.Options {
	return daemonrun.Options{
		LogLevel:    opts.logLevel,
		Development: opts.development,
	}
}
