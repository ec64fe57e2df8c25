package scan

import (
	"time"

	"sweeper/internal/config"
)

// Options tunes a run.
type Options struct {
	// SkipAnalyzed skips assets already present in the analysis ledger.
	SkipAnalyzed bool
	// ConfidenceFloor is the inclusive minimum confidence a verdict needs to be stored.
	ConfidenceFloor float64
	PageSize        int
	ProgressEvery   int
	ItemDelay       time.Duration
}

// DefaultOptions returns the stock run options.
func DefaultOptions() Options {
	return Options{
		SkipAnalyzed:    true,
		ConfidenceFloor: 0.4,
		PageSize:        250,
		ProgressEvery:   50,
	}
}

// OptionsFromConfig maps the scan configuration section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	if cfg == nil {
		return opts
	}
	opts.SkipAnalyzed = cfg.Scan.SkipAnalyzed
	opts.ConfidenceFloor = cfg.Scan.ConfidenceFloor
	if cfg.Scan.PageSize > 0 {
		opts.PageSize = cfg.Scan.PageSize
	}
	if cfg.Scan.ProgressEvery > 0 {
		opts.ProgressEvery = cfg.Scan.ProgressEvery
	}
	opts.ItemDelay = cfg.ItemDelay()
	return opts
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.PageSize <= 0 {
		o.PageSize = def.PageSize
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = def.ProgressEvery
	}
	if o.ConfidenceFloor < 0 {
		o.ConfidenceFloor = 0
	}
	if o.ItemDelay < 0 {
		o.ItemDelay = 0
	}
	return o
}
