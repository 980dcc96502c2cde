package app

import (
	"errors"
	"time"
)

// Config holds everything an App instance needs to run one build.
type Config struct {
	// WorkspaceRoot is the directory walked for BUILD.hcl rule files.
	WorkspaceRoot string
	// OutDir receives build artifacts, partitioned per target.
	OutDir string
	// CacheDir holds the incremental-build index.
	CacheDir string
	// SummaryPath receives the JSON build summary; empty writes it to
	// the app's output writer.
	SummaryPath string

	// CC and AR override the toolchain programs; empty selects the
	// defaults.
	CC string
	AR string

	WorkerCount   int
	TargetTimeout time.Duration

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkspaceRoot == "" {
		return nil, errors.New("WorkspaceRoot is a required configuration field and cannot be empty")
	}
	if cfg.OutDir == "" {
		return nil, errors.New("OutDir is a required configuration field and cannot be empty")
	}
	if cfg.CacheDir == "" {
		return nil, errors.New("CacheDir is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 1 {
		return nil, errors.New("WorkerCount must be at least 1")
	}
	if cfg.TargetTimeout < 0 {
		return nil, errors.New("TargetTimeout cannot be negative")
	}
	return &cfg, nil
}
