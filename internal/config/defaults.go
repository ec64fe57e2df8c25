package config

const (
	defaultDataDir           = "~/.local/share/sweeper"
	defaultLogDir            = "~/.local/share/sweeper/logs"
	defaultAPIBind           = "127.0.0.1:7490"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultConfidenceFloor   = 0.4
	defaultPageSize          = 250
	defaultProgressEvery     = 50
	defaultInspectMaxBytes   = 10 * 1000 * 1000
	defaultThumbnailMaxBytes = 4 * 1024 * 1024
	defaultThumbnailCeiling  = 200
	defaultMinFileSize       = 10000
	defaultMaxFileSize       = 50 * 1000 * 1000
	defaultLineThreshold     = 10
	defaultUniformRatio      = 0.8
	defaultNtfyTimeout       = 10
	maxPageSize              = 1000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Scan: Scan{
			ConfidenceFloor:   defaultConfidenceFloor,
			SkipAnalyzed:      true,
			PageSize:          defaultPageSize,
			ProgressEvery:     defaultProgressEvery,
			VisualInspection:  true,
			InspectMaxBytes:   defaultInspectMaxBytes,
			ThumbnailMaxBytes: defaultThumbnailMaxBytes,
		},
		Rules: Rules{
			ThumbnailCeiling: defaultThumbnailCeiling,
			MinFileSize:      defaultMinFileSize,
			MaxFileSize:      defaultMaxFileSize,
			LineThreshold:    defaultLineThreshold,
			UniformRatio:     defaultUniformRatio,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			RunCompleted:   true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
