package classify

import "sweeper/internal/config"

// Rules holds the tunable thresholds for the rule families.
type Rules struct {
	// ThumbnailCeiling is the pixel size at or below which both dimensions mark low quality.
	ThumbnailCeiling int
	MinFileSize      int64
	MaxFileSize      int64
	// InspectCeiling bounds the asset size eligible for visual inspection.
	InspectCeiling int64
	LineThreshold  int
	UniformRatio   float64
}

// DefaultRules returns the stock thresholds.
func DefaultRules() Rules {
	return Rules{
		ThumbnailCeiling: 200,
		MinFileSize:      10000,
		MaxFileSize:      50 * 1000 * 1000,
		InspectCeiling:   10 * 1000 * 1000,
		LineThreshold:    10,
		UniformRatio:     0.8,
	}
}

// RulesFromConfig maps the configuration rule and scan sections onto Rules.
// Zero values fall back to DefaultRules.
func RulesFromConfig(cfg *config.Config) Rules {
	rules := DefaultRules()
	if cfg == nil {
		return rules
	}
	if cfg.Rules.ThumbnailCeiling > 0 {
		rules.ThumbnailCeiling = cfg.Rules.ThumbnailCeiling
	}
	if cfg.Rules.MinFileSize > 0 {
		rules.MinFileSize = cfg.Rules.MinFileSize
	}
	if cfg.Rules.MaxFileSize > 0 {
		rules.MaxFileSize = cfg.Rules.MaxFileSize
	}
	if cfg.Scan.InspectMaxBytes > 0 {
		rules.InspectCeiling = cfg.Scan.InspectMaxBytes
	}
	if cfg.Rules.LineThreshold > 0 {
		rules.LineThreshold = cfg.Rules.LineThreshold
	}
	if cfg.Rules.UniformRatio > 0 {
		rules.UniformRatio = cfg.Rules.UniformRatio
	}
	return rules
}

const (
	weightScreenshot = 0.4
	weightWebCache   = 0.3
	weightRecovery   = 0.3
	weightDuplicate  = 0.3
	weightLowQuality = 0.2
	weightCorrupt    = 0.5
	weightFaces      = -0.1

	evidenceStep     = 0.05
	evidenceCap      = 0.3
	smallFileBonus   = 0.1
	largeFileBonus   = 0.05
	minAspectRatio   = 0.2
	maxAspectRatio   = 5.0
	highConfidence   = 0.8
	mediumConfidence = 0.6
	lowConfidence    = 0.4
)
